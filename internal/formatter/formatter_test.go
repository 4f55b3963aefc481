package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/eventsage/pkg/types"
)

func sampleEvent() types.RankedEvent {
	return types.RankedEvent{
		Event: types.Event{
			ID:                  1,
			Name:                "AI Summit",
			Domain:              "AI",
			Date:                time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC),
			Time:                "10:00 AM",
			Venue:               "Main Hall",
			Mode:                types.ModeHybrid,
			Speakers:            "Dr. Rao",
			FacultyCoordinators: "N/A",
			StudentCoordinators: "",
			Perks:               "Certificates",
			Collaboration:       "n/a",
			Description:         "A day of talks.",
		},
		FinalScore: 0.876,
	}
}

func TestEvent(t *testing.T) {
	got := Event(sampleEvent(), false)
	want := strings.Join([]string{
		"## AI Summit",
		"**Domain:** AI",
		"**Date:** 2025-03-14",
		"**Time:** 10:00 AM",
		"**Venue:** Main Hall",
		"**Mode:** hybrid",
		"**Registration Fee:** Free",
		"**Speakers:** Dr. Rao",
		"**Perks:** Certificates",
		"**Description:** A day of talks.",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestEventScore(t *testing.T) {
	re := sampleEvent()
	assert.True(t, strings.HasSuffix(Event(re, true), "\n**Relevance Score:** 0.88"))

	re.FinalScore = 0
	assert.NotContains(t, Event(re, true), "Relevance Score")
}

func TestFormatFee(t *testing.T) {
	assert.Equal(t, "Free", FormatFee(0))
	assert.Equal(t, "500", FormatFee(500))
	assert.Equal(t, "99.5", FormatFee(99.5))
}

func TestFormatJoinsBlocks(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()
	b.Event.Name = "Robotics Expo"
	b.Event.RegistrationFee = 250

	out := Format([]types.RankedEvent{a, b}, false)
	parts := strings.Split(out, Separator)
	assert.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[1], "## Robotics Expo"))
	assert.Contains(t, parts[1], "**Registration Fee:** 250")

	assert.Empty(t, Format(nil, true))
}

func TestFormatCount(t *testing.T) {
	year := 2024
	assert.Equal(t, "**Total Events:** 3 events in 2024", FormatCount(3, &year))
	assert.Equal(t, "**Total Events:** 1 event", FormatCount(1, nil))
	assert.Equal(t, "**Total Events:** 0 events", FormatCount(0, nil))
}
