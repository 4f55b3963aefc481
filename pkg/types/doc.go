// Package types provides shared type definitions for eventsage.
//
// Event is the unit of retrieval. Besides its catalog fields it carries two
// derived values that are rebuilt on every write: a normalized SearchText
// used for trigram matching and an Embedding used for vector similarity.
//
//	ev := &types.Event{
//	    Name:        "AI Summit",
//	    Domain:      "AI",
//	    Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
//	    Mode:        types.ModeOnline,
//	    Description: "Talks on applied machine learning",
//	}
//	ev.ApplyDefaults()
//	if err := ev.Validate(); err != nil {
//	    // errors.Is(err, types.ErrInvalidEvent)
//	}
//
// Classification is the per-request result of the query classifier and
// Intent is its closed set of retrieval intents. DateFilter expresses the
// date constraints the router derives from year and month signals;
// MonthRange always ends on the real last day of the month.
//
// RankedEvent pairs an event with the scores the hybrid ranker assigned it.
package types
