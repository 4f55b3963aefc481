// Package formatter renders retrieved events as the markdown context block
// handed to the answer generator.
package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/eventsage/pkg/types"
)

// Separator joins event blocks
const Separator = "\n\n---\n\n"

// FormatFee renders a registration fee; 0 is "Free"
func FormatFee(fee float64) string {
	if fee == 0 {
		return "Free"
	}
	return strconv.FormatFloat(fee, 'f', -1, 64)
}

// Event renders one event block. The relevance line is included only when
// withScore is set and the score is positive.
func Event(re types.RankedEvent, withScore bool) string {
	ev := re.Event

	var b strings.Builder
	b.WriteString("## ")
	b.WriteString(ev.Name)

	field := func(label, value string) {
		if types.IsBlank(value) {
			return
		}
		fmt.Fprintf(&b, "\n**%s:** %s", label, strings.TrimSpace(value))
	}

	field("Domain", ev.Domain)
	field("Date", ev.DateString())
	field("Time", ev.Time)
	field("Venue", ev.Venue)
	field("Mode", string(ev.Mode))
	field("Registration Fee", FormatFee(ev.RegistrationFee))
	field("Speakers", ev.Speakers)
	field("Faculty Coordinators", ev.FacultyCoordinators)
	field("Student Coordinators", ev.StudentCoordinators)
	field("Perks", ev.Perks)
	field("Collaboration", ev.Collaboration)
	field("Description", ev.Description)
	if withScore && re.FinalScore > 0 {
		field("Relevance Score", fmt.Sprintf("%.2f", re.FinalScore))
	}

	return b.String()
}

// Format renders every event and joins the blocks with Separator
func Format(events []types.RankedEvent, withScore bool) string {
	blocks := make([]string, len(events))
	for i, re := range events {
		blocks[i] = Event(re, withScore)
	}
	return strings.Join(blocks, Separator)
}

// FormatCount renders the context for a count answer
func FormatCount(n int, year *int) string {
	noun := "events"
	if n == 1 {
		noun = "event"
	}
	if year != nil {
		return fmt.Sprintf("**Total Events:** %d %s in %d", n, noun, *year)
	}
	return fmt.Sprintf("**Total Events:** %d %s", n, noun)
}
