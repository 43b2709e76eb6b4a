// Package plan implements the query planner: person-prefix parsing,
// language detection, intent classification, and visual-intent routing.
package plan

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

type Intent string

const (
	IntentLookup   Intent = "lookup"
	IntentSemantic Intent = "semantic"
)

type SuggestedVisualMode string

const (
	SuggestRecall SuggestedVisualMode = "recall"
	SuggestRerank SuggestedVisualMode = "rerank"
	SuggestSkip   SuggestedVisualMode = "skip"
)

// Person is the minimal shape the planner needs from the person subsystem.
type Person struct {
	ID             string
	DisplayName    string
	QueryEmbedding []float32
}

type PersonMatch struct {
	PersonID       string
	QueryEmbedding []float32
	Rest           string
}

// ParsePersonPrefix tries the `person:<name>[, rest]` and `<name> <rest>`
// patterns, case-insensitive, longest tenant person name first so that
// "Jane Doe" wins over "Jane" when both are enrolled.
func ParsePersonPrefix(query string, persons []Person) (*PersonMatch, string) {
	sorted := append([]Person(nil), persons...)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].DisplayName) > len(sorted[j].DisplayName)
	})

	lowerQuery := strings.ToLower(query)

	if idx := strings.Index(lowerQuery, "person:"); idx == 0 {
		rest := strings.TrimSpace(query[len("person:"):])
		if m := matchLongestName(rest, sorted); m != nil {
			return m, query
		}
	}

	if m := matchLongestName(query, sorted); m != nil {
		return m, query
	}

	return nil, query
}

// matchLongestName finds the longest person display name (sorted already
// longest-first) that prefixes text up to a word boundary (end-of-string,
// space, or comma), case-insensitively.
func matchLongestName(text string, sorted []Person) *PersonMatch {
	lowerText := strings.ToLower(text)
	for _, p := range sorted {
		lowerName := strings.ToLower(p.DisplayName)
		if !strings.HasPrefix(lowerText, lowerName) {
			continue
		}
		after := text[len(p.DisplayName):]
		if after == "" || after[0] == ' ' || after[0] == ',' {
			return &PersonMatch{
				PersonID:       p.ID,
				QueryEmbedding: p.QueryEmbedding,
				Rest:           strings.TrimSpace(strings.TrimLeft(after, " ,")),
			}
		}
	}
	return nil
}

// DetectLanguage is a simple script-based detector: presence of Hangul or
// CJK characters selects Korean; otherwise English. It only influences
// lexical analyzer selection.
func DetectLanguage(text string) string {
	for _, r := range text {
		if isHangul(r) || isCJK(r) {
			return "ko"
		}
	}
	return "en"
}

func isHangul(r rune) bool {
	return (r >= 0xAC00 && r <= 0xD7A3) || (r >= 0x1100 && r <= 0x11FF) || (r >= 0x3130 && r <= 0x318F)
}

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// ClassifyIntent labels a query "lookup" when it reads like a name or
// keyword probe: few short tokens, a spaceless Hangul name, or uppercase
// in a one-or-two-token query. Everything else is semantic.
func ClassifyIntent(query string) Intent {
	cleaned := strings.TrimSpace(query)
	tokens := strings.Fields(cleaned)

	if len(tokens) <= 2 {
		allShort := true
		for _, t := range tokens {
			if len([]rune(t)) > 6 {
				allShort = false
				break
			}
		}
		if allShort && len(tokens) > 0 {
			return IntentLookup
		}
	}

	if isHangulNameNoSpaces(cleaned) {
		return IntentLookup
	}

	if len(tokens) >= 1 && len(tokens) <= 2 && hasUppercase(cleaned) {
		return IntentLookup
	}

	return IntentSemantic
}

func isHangulNameNoSpaces(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	runes := []rune(s)
	if len(runes) < 2 || len(runes) > 4 {
		return false
	}
	for _, r := range runes {
		if !isHangul(r) {
			return false
		}
	}
	return true
}

func hasUppercase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

var (
	objectLexicon  = regexp.MustCompile(`(?i)\b(car|dog|cat|phone|laptop|chair|table|tree|building|person|face|sign|logo)\b`)
	actionLexicon  = regexp.MustCompile(`(?i)\b(walking|running|jumping|sitting|standing|pointing|holding|wearing|driving)\b`)
	attributeLex   = regexp.MustCompile(`(?i)\b(red|blue|green|yellow|black|white|wearing|colored)\b`)
	speechLexicon  = regexp.MustCompile(`(?i)\b(says?|mentions?|talks? about|explains?|asks?)\b`)
	quotedPhrase   = regexp.MustCompile(`"[^"]+"`)
)

type RouterResult struct {
	SuggestedMode   SuggestedVisualMode
	WeightAdjustment float64 // in [-0.20, +0.15]
	Confidence      float64
}

// RouteVisualIntent scores visual vs speech signals from lexicon and
// regex matches. Only consulted when the request's visual_mode is "auto";
// an explicit visual_mode always wins at the call site.
func RouteVisualIntent(query string, boostWeight, reduceWeight float64) RouterResult {
	visualHits := 0
	if objectLexicon.MatchString(query) {
		visualHits++
	}
	if actionLexicon.MatchString(query) {
		visualHits++
	}
	if attributeLex.MatchString(query) {
		visualHits++
	}

	speechHits := 0
	if speechLexicon.MatchString(query) {
		speechHits++
	}
	if quotedPhrase.MatchString(query) {
		speechHits++
	}

	switch {
	case visualHits > 0 && speechHits == 0:
		conf := confidenceFor(visualHits)
		return RouterResult{SuggestedMode: SuggestRerank, WeightAdjustment: clampAdj(boostWeight), Confidence: conf}
	case speechHits > 0 && visualHits == 0:
		conf := confidenceFor(speechHits)
		return RouterResult{SuggestedMode: SuggestSkip, WeightAdjustment: clampAdj(reduceWeight), Confidence: conf}
	default:
		return RouterResult{SuggestedMode: SuggestRecall, WeightAdjustment: 0, Confidence: 0.5}
	}
}

func confidenceFor(hits int) float64 {
	conf := 0.5 + 0.15*float64(hits)
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

func clampAdj(v float64) float64 {
	if v > 0.15 {
		return 0.15
	}
	if v < -0.20 {
		return -0.20
	}
	return v
}
