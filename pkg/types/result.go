package types

// RankedEvent is an event plus the scores that placed it in a result list.
// Scores are used for ordering only and never persisted.
type RankedEvent struct {
	Event Event

	FinalScore        float64 // wv*(1-distance) + wl*lexical
	VectorSimilarity  float64 // 1 - cosine distance, clamped to [0,1]
	LexicalSimilarity float64 // trigram similarity in [0,1]
	Contained         bool    // query is a substring of the search text
	HasVector         bool    // vector term took part in scoring
}

// Validate checks if the ranked event is well formed
func (r *RankedEvent) Validate() error {
	if r.Event.ID == 0 {
		return ErrInvalidEventID
	}
	if r.FinalScore < 0 || r.FinalScore > 1 {
		return ErrInvalidScore
	}
	return nil
}

// Unranked wraps events returned by structured lookups, which carry no score
func Unranked(events []*Event) []RankedEvent {
	out := make([]RankedEvent, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		out = append(out, RankedEvent{Event: *e})
	}
	return out
}
