package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and wire format for event dates
const DateLayout = "2006-01-02"

// Mode represents how an event is delivered
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
	ModeHybrid  Mode = "hybrid"
)

// KnownModes lists the delivery modes the classifier recognizes, in match order
var KnownModes = []Mode{ModeOnline, ModeOffline, ModeHybrid}

// NotAvailable is the placeholder stored for optional free-text fields left blank
const NotAvailable = "N/A"

// Event is the unit of retrieval: one catalog entry plus its derived index data
type Event struct {
	ID int64

	// Identity and scheduling
	Name   string
	Domain string
	Date   time.Time
	Time   string
	Venue  string
	Mode   Mode

	// People, each serialized as a single string
	FacultyCoordinators string
	StudentCoordinators string
	Speakers            string

	// Commercial and descriptive
	RegistrationFee float64 // 0 = free
	Perks           string
	Collaboration   string
	Description     string

	// Derived on every write
	SearchText string
	Embedding  []float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFree reports whether the event has no registration fee
func (e *Event) IsFree() bool {
	return e.RegistrationFee == 0
}

// DateString returns the event date in DateLayout, or "" when unset
func (e *Event) DateString() string {
	if e.Date.IsZero() {
		return ""
	}
	return e.Date.Format(DateLayout)
}

// ApplyDefaults fills optional fields the same way the add-event form does
func (e *Event) ApplyDefaults() {
	for _, f := range []*string{
		&e.Time, &e.FacultyCoordinators, &e.StudentCoordinators,
		&e.Venue, &e.Speakers, &e.Perks, &e.Collaboration,
	} {
		if strings.TrimSpace(*f) == "" {
			*f = NotAvailable
		}
	}
	if strings.TrimSpace(string(e.Mode)) == "" {
		e.Mode = ModeOffline
	}
	e.Mode = Mode(strings.ToLower(strings.TrimSpace(string(e.Mode))))
}

// Validate checks the fields required before an event can be indexed
func (e *Event) Validate() error {
	var errs []error
	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(e.Domain) == "" {
		errs = append(errs, errors.New("domain is required"))
	}
	if e.Date.IsZero() {
		errs = append(errs, errors.New("date is required"))
	}
	if strings.TrimSpace(e.Description) == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if e.RegistrationFee < 0 {
		errs = append(errs, errors.New("registration fee cannot be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, errors.Join(errs...))
	}
	return nil
}

// IsBlank reports whether a free-text field carries no information
func IsBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, NotAvailable)
}

// ParseDate parses a date in DateLayout
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", ErrInvalidEvent, s)
	}
	return t, nil
}
