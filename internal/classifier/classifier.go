// Package classifier extracts structured retrieval signals from a question.
//
// Classification is keyword based and pure: the same question always yields
// the same signals and intent.
package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dshills/eventsage/internal/textmatch"
	"github.com/dshills/eventsage/pkg/types"
)

var yearPattern = regexp.MustCompile(`(19|20)\d{2}`)

// months in calendar order; the first name found wins
var months = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// Domains lists the recognized domain keywords, longest first so that
// "blockchain" is tried before the "ai" inside it
var Domains = []string{"blockchain", "robotics", "cloud", "cyber", "web", "iot", "ai", "ml"}

// keywords this short must match a whole word: "html" is not "ml"
const wordOnlyLen = 2

// Precedence lists the intents from highest to lowest. The first one that
// Applies to a classification is its intent.
var Precedence = []types.Intent{
	types.IntentCount,
	types.IntentReport,
	types.IntentDateRange,
	types.IntentPersonLookup,
	types.IntentMode,
	types.IntentDomain,
	types.IntentHybridSearch,
}

var (
	personTriggers = []string{"who", "coordinate", "coordinator", "speaker"}
	// removed in this order, so "coordinator" loses "coordinate" first
	personStrip = []string{"who", "coordinate", "coordinator", "speaker", "events", "do"}
)

// fallbackStopwords are dropped from the query before vector-only search
var fallbackStopwords = map[string]struct{}{
	"event": {}, "workshop": {}, "happen": {}, "when": {}, "what": {}, "where": {}, "who": {},
	"tell": {}, "me": {}, "about": {}, "the": {}, "a": {}, "an": {}, "of": {}, "in": {},
	"on": {}, "is": {}, "was": {}, "did": {}, "for": {},
}

// Normalize lowercases the question, trims it and collapses whitespace
// runs. Repeated letters are kept: "free" and "offline" must survive.
func Normalize(question string) string {
	return textmatch.Fold(question)
}

// Classify extracts every signal from question and derives its intent
func Classify(question string) types.Classification {
	text := Normalize(question)
	c := types.Classification{Text: text}

	if m := yearPattern.FindString(text); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			c.Year = &y
		}
	}
	for i, name := range months {
		if strings.Contains(text, name) {
			m := i + 1
			c.Month = &m
			break
		}
	}

	if strings.Contains(text, "free") {
		fee := 0.0
		c.FeeCeiling = &fee
	}

	for _, mode := range types.KnownModes {
		if strings.Contains(text, string(mode)) {
			c.Mode = mode
			break
		}
	}
	c.Domain = matchDomain(text)

	if containsAny(text, personTriggers...) {
		c.PersonLookup = true
		c.Person = PersonFragment(text)
	}

	c.Count = strings.Contains(text, "how many") && strings.Contains(text, "event")
	c.Report = containsAny(text, "report", "summary")
	c.WantsAll = containsAny(text, "all", "summary")

	c.Intent = intentFor(&c)
	return c
}

// PersonFragment strips the person-query keywords from text and returns
// what remains as the name fragment
func PersonFragment(text string) string {
	for _, kw := range personStrip {
		text = strings.ReplaceAll(text, kw, "")
	}
	return strings.TrimSpace(text)
}

// Applies reports whether intent's filter can answer c. The structured
// filters below Report cannot carry a fee ceiling, so a fee sends the
// question to hybrid search.
func Applies(intent types.Intent, c *types.Classification) bool {
	switch intent {
	case types.IntentCount:
		return c.Count
	case types.IntentReport:
		return c.Report
	case types.IntentDateRange:
		return !c.HasFee() && c.HasMonthYear()
	case types.IntentPersonLookup:
		return !c.HasFee() && c.PersonLookup && c.Person != ""
	case types.IntentMode:
		return !c.HasFee() && c.Mode != ""
	case types.IntentDomain:
		return !c.HasFee() && c.Domain != ""
	case types.IntentHybridSearch:
		return true
	default:
		return false
	}
}

func intentFor(c *types.Classification) types.Intent {
	for _, intent := range Precedence {
		if Applies(intent, c) {
			return intent
		}
	}
	return types.IntentHybridSearch
}

func matchDomain(text string) string {
	var words map[string]struct{}
	for _, d := range Domains {
		if len(d) > wordOnlyLen {
			if strings.Contains(text, d) {
				return d
			}
			continue
		}
		if words == nil {
			words = wordSet(text)
		}
		if _, ok := words[d]; ok {
			return d
		}
	}
	return ""
}

func wordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// CleanQuery prepares a question for vector-only search: punctuation
// becomes space and stopwords are removed. If nothing is left the
// punctuation-stripped text is returned instead.
func CleanQuery(question string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(question))

	words := strings.Fields(stripped)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := fallbackStopwords[w]; !stop {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return strings.Join(words, " ")
	}
	return strings.Join(kept, " ")
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
