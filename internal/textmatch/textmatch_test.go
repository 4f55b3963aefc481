package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "   \t ", want: ""},
		{name: "lowercase and trim", in: "  AI Summit ", want: "ai sumit"},
		{name: "collapse repeats", in: "coolll", want: "col"},
		{name: "collapse spaces", in: "robotics    expo", want: "robotics expo"},
		{name: "mixed case repeats", in: "HeLLo", want: "helo"},
		{name: "unicode", in: "Café  Meetup", want: "café metup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "free coffee meetup", Fold("  Free\tCoffee   MEETUP "))
	assert.Equal(t, "", Fold("   "))
	assert.Equal(t, "fre cofe metup", Normalize(Fold("Free Coffee Meetup")))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"AI Summit 2025",
		"  Hackathon!!!   Finals  ",
		"who coordinates the Hackathon",
		"aaaa bbbb cccc",
		"ÅÅngström  ",
		"free AI events in March 2025",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("AI Summit on machine learning", "summit"))
	assert.True(t, Contains("Robotics Expo", "ROBOTICS"))
	assert.False(t, Contains("Robotics Expo", "cloud"))
	assert.False(t, Contains("anything", ""))
	assert.False(t, Contains("anything", "   "))
}

func TestTrigrams(t *testing.T) {
	got := Trigrams("cat")
	assert.Len(t, got, 4)
	for _, g := range []string{"  c", " ca", "cat", "at "} {
		assert.Contains(t, got, g)
	}

	assert.Empty(t, Trigrams(""))
	assert.Empty(t, Trigrams("!!! ---"))
}

func TestSimilarity(t *testing.T) {
	t.Run("identical text scores one", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("ai summit", "ai summit"))
	})

	t.Run("case and punctuation do not matter", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("AI Summit!", "ai summit"))
	})

	t.Run("disjoint text scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Similarity("robotics", "xyz"))
	})

	t.Run("empty text scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Similarity("", "ai summit"))
		assert.Equal(t, 0.0, Similarity("ai summit", ""))
	})

	t.Run("symmetric and bounded", func(t *testing.T) {
		a, b := "hackathon finals", "hackaton"
		s := Similarity(a, b)
		assert.Equal(t, s, Similarity(b, a))
		assert.Greater(t, s, 0.0)
		assert.Less(t, s, 1.0)
	})

	t.Run("typo is closer than unrelated word", func(t *testing.T) {
		assert.Greater(t, Similarity("robotcs", "robotics"), Similarity("cloud", "robotics"))
	})
}
