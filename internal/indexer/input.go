package indexer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/eventsage/pkg/types"
)

// EventInput is the wire form of a new event, shared by the import files,
// the HTTP add-event endpoint and the MCP add_event tool.
type EventInput struct {
	Name                string  `json:"name" yaml:"name"`
	Domain              string  `json:"domain" yaml:"domain"`
	Date                string  `json:"date" yaml:"date"` // YYYY-MM-DD
	Time                string  `json:"time,omitempty" yaml:"time,omitempty"`
	Venue               string  `json:"venue,omitempty" yaml:"venue,omitempty"`
	Mode                string  `json:"mode,omitempty" yaml:"mode,omitempty"`
	FacultyCoordinators string  `json:"faculty_coordinators,omitempty" yaml:"faculty_coordinators,omitempty"`
	StudentCoordinators string  `json:"student_coordinators,omitempty" yaml:"student_coordinators,omitempty"`
	Speakers            string  `json:"speakers,omitempty" yaml:"speakers,omitempty"`
	RegistrationFee     float64 `json:"registration_fee,omitempty" yaml:"registration_fee,omitempty"`
	Perks               string  `json:"perks,omitempty" yaml:"perks,omitempty"`
	Collaboration       string  `json:"collaboration,omitempty" yaml:"collaboration,omitempty"`
	Description         string  `json:"description" yaml:"description"`
}

// eventWire is the decoded shape of EventInput. The long names are the
// ones the web form posts and are used when the short name is empty.
// Unknown JSON fields are rejected.
type eventWire struct {
	Name                string   `json:"name" yaml:"name"`
	NameOfEvent         string   `json:"name_of_event" yaml:"name_of_event"`
	Domain              string   `json:"domain" yaml:"domain"`
	EventDomain         string   `json:"event_domain" yaml:"event_domain"`
	Date                string   `json:"date" yaml:"date"`
	DateOfEvent         string   `json:"date_of_event" yaml:"date_of_event"`
	Time                string   `json:"time" yaml:"time"`
	Venue               string   `json:"venue" yaml:"venue"`
	Mode                string   `json:"mode" yaml:"mode"`
	FacultyCoordinators string   `json:"faculty_coordinators" yaml:"faculty_coordinators"`
	StudentCoordinators string   `json:"student_coordinators" yaml:"student_coordinators"`
	Speakers            string   `json:"speakers" yaml:"speakers"`
	RegistrationFee     feeValue `json:"registration_fee" yaml:"registration_fee"`
	Perks               string   `json:"perks" yaml:"perks"`
	Collaboration       string   `json:"collaboration" yaml:"collaboration"`
	Description         string   `json:"description" yaml:"description"`
	DescriptionInsights string   `json:"description_insights" yaml:"description_insights"`
}

func (w *eventWire) input() EventInput {
	return EventInput{
		Name:                firstSet(w.Name, w.NameOfEvent),
		Domain:              firstSet(w.Domain, w.EventDomain),
		Date:                firstSet(w.Date, w.DateOfEvent),
		Time:                w.Time,
		Venue:               w.Venue,
		Mode:                w.Mode,
		FacultyCoordinators: w.FacultyCoordinators,
		StudentCoordinators: w.StudentCoordinators,
		Speakers:            w.Speakers,
		RegistrationFee:     float64(w.RegistrationFee),
		Perks:               w.Perks,
		Collaboration:       w.Collaboration,
		Description:         firstSet(w.Description, w.DescriptionInsights),
	}
}

func firstSet(primary, alias string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return alias
}

// UnmarshalJSON accepts the long field names and a fee given as a string
func (in *EventInput) UnmarshalJSON(data []byte) error {
	var w eventWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return err
	}
	*in = w.input()
	return nil
}

// UnmarshalYAML is the import file counterpart of UnmarshalJSON
func (in *EventInput) UnmarshalYAML(node *yaml.Node) error {
	var w eventWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*in = w.input()
	return nil
}

// feeValue is a registration fee written as a number or a string. Blank,
// N/A and "free" mean no fee.
type feeValue float64

func (f *feeValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return f.parse(s)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: registration_fee: %w", types.ErrInvalidEvent, err)
	}
	*f = feeValue(v)
	return nil
}

func (f *feeValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*f = 0
		return nil
	}
	return f.parse(node.Value)
}

func (f *feeValue) parse(s string) error {
	s = strings.TrimSpace(s)
	if types.IsBlank(s) || strings.EqualFold(s, "free") {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: registration_fee %q is not a number", types.ErrInvalidEvent, s)
	}
	*f = feeValue(v)
	return nil
}

// ToEvent converts the input into a validated event with defaults applied
func (in EventInput) ToEvent() (*types.Event, error) {
	if strings.TrimSpace(in.Date) == "" {
		return nil, fmt.Errorf("%w: date is required", types.ErrInvalidEvent)
	}
	date, err := types.ParseDate(in.Date)
	if err != nil {
		return nil, err
	}

	ev := &types.Event{
		Name:                strings.TrimSpace(in.Name),
		Domain:              strings.TrimSpace(in.Domain),
		Date:                date,
		Time:                in.Time,
		Venue:               in.Venue,
		Mode:                types.Mode(in.Mode),
		FacultyCoordinators: in.FacultyCoordinators,
		StudentCoordinators: in.StudentCoordinators,
		Speakers:            in.Speakers,
		RegistrationFee:     in.RegistrationFee,
		Perks:               in.Perks,
		Collaboration:       in.Collaboration,
		Description:         strings.TrimSpace(in.Description),
	}
	ev.ApplyDefaults()
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// importFile accepts either a bare list of events or a document with an
// events key. JSON parses as YAML, so both formats share one decoder.
type importFile struct {
	Events []EventInput `yaml:"events"`
}

// ParseEvents decodes an import document into event inputs
func ParseEvents(r io.Reader) ([]EventInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read import: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse import: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		var list []EventInput
		if err := node.Content[0].Decode(&list); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
		return list, nil
	case yaml.MappingNode:
		var doc importFile
		if err := node.Content[0].Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
		return doc.Events, nil
	default:
		return nil, fmt.Errorf("import must be a list of events or a document with an events key")
	}
}
