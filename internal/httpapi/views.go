package httpapi

import (
	"github.com/dshills/eventsage/pkg/types"
)

// eventView is the JSON shape of an event in API responses
type eventView struct {
	ID                  int64    `json:"id"`
	Name                string   `json:"name"`
	Domain              string   `json:"domain"`
	Date                string   `json:"date"`
	Time                string   `json:"time,omitempty"`
	Venue               string   `json:"venue,omitempty"`
	Mode                string   `json:"mode"`
	FacultyCoordinators string   `json:"faculty_coordinators,omitempty"`
	StudentCoordinators string   `json:"student_coordinators,omitempty"`
	Speakers            string   `json:"speakers,omitempty"`
	RegistrationFee     float64  `json:"registration_fee"`
	Perks               string   `json:"perks,omitempty"`
	Collaboration       string   `json:"collaboration,omitempty"`
	Description         string   `json:"description"`
	Score               *float64 `json:"score,omitempty"`
}

func optional(s string) string {
	if types.IsBlank(s) {
		return ""
	}
	return s
}

func newEventView(ev *types.Event) eventView {
	return eventView{
		ID:                  ev.ID,
		Name:                ev.Name,
		Domain:              ev.Domain,
		Date:                ev.DateString(),
		Time:                optional(ev.Time),
		Venue:               optional(ev.Venue),
		Mode:                string(ev.Mode),
		FacultyCoordinators: optional(ev.FacultyCoordinators),
		StudentCoordinators: optional(ev.StudentCoordinators),
		Speakers:            optional(ev.Speakers),
		RegistrationFee:     ev.RegistrationFee,
		Perks:               optional(ev.Perks),
		Collaboration:       optional(ev.Collaboration),
		Description:         ev.Description,
	}
}

func rankedViews(events []types.RankedEvent) []eventView {
	out := make([]eventView, len(events))
	for i, re := range events {
		v := newEventView(&re.Event)
		if re.FinalScore > 0 {
			score := re.FinalScore
			v.Score = &score
		}
		out[i] = v
	}
	return out
}
