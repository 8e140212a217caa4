package internal

import (
	"regexp"
	"sort"
	"strings"
)

// RecentWindow is an explicit snapshot of recent entry texts used for
// recurrence scoring. Passing it in keeps Score deterministic: no
// hidden mutable state.
type RecentWindow struct {
	tokens map[string]int
}

func NewRecentWindow(texts []string) RecentWindow {
	tokens := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, tok := range tokenize(text) {
			if stopwords[tok] || seen[tok] {
				continue
			}
			seen[tok] = true
			tokens[tok]++
		}
	}
	return RecentWindow{tokens: tokens}
}

// occurrences returns in how many window texts the token appeared.
func (w RecentWindow) occurrences(tok string) int {
	return w.tokens[tok]
}

var (
	personalFactPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmy name is\b`),
		regexp.MustCompile(`(?i)\bcall me\b`),
		regexp.MustCompile(`(?i)\bi(?:'m| am) (?:a|an|from)\b`),
		regexp.MustCompile(`(?i)\bi live in\b`),
		regexp.MustCompile(`(?i)\bi work (?:at|for|as)\b`),
		regexp.MustCompile(`(?i)\bmy (?:wife|husband|partner|son|daughter|dog|cat|birthday|job)\b`),
	}

	preferencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bi (?:love|like|enjoy|prefer|hate|dislike|can't stand)\b`),
		regexp.MustCompile(`(?i)\bmy favou?rite\b`),
		regexp.MustCompile(`(?i)\bi(?:'d| would) rather\b`),
	}

	dateBoundPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december) \d{1,2}\b`),
		regexp.MustCompile(`(?i)\b(?:tomorrow|tonight|next (?:week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`),
		regexp.MustCompile(`(?i)\b(?:deadline|appointment|meeting) (?:is |on )`),
	}

	emphasisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:remember|don't forget|important|make sure|note that)\b`),
	}

	negativeAffectWords = map[string]bool{
		"sad": true, "tired": true, "exhausted": true, "stressed": true,
		"anxious": true, "worried": true, "frustrated": true, "angry": true,
		"lonely": true, "overwhelmed": true, "depressed": true, "upset": true,
	}

	stopwords = map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true,
		"but": true, "i": true, "me": true, "my": true, "you": true,
		"it": true, "is": true, "am": true, "are": true, "was": true,
		"to": true, "of": true, "in": true, "on": true, "for": true,
		"with": true, "that": true, "this": true, "at": true, "be": true,
		"have": true, "has": true, "had": true, "do": true, "did": true,
		"so": true, "we": true, "they": true, "he": true, "she": true,
		"not": true, "no": true, "yes": true, "what": true, "how": true,
	}

	tokenPattern = regexp.MustCompile(`[a-z0-9']+`)
)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Per-signal contributions to the importance score.
const (
	weightPersonalFact = 0.35
	weightPreference   = 0.25
	weightDateBound    = 0.20
	weightEmphasis     = 0.15
	weightRecurrence   = 0.10
	recurrenceMinHits  = 2
)

// ScoreImportance rates text in [0,1] and tags the signals that fired.
// Deterministic given the same text and the same window snapshot.
func ScoreImportance(text string, window RecentWindow) (float64, []string) {
	var score float64
	tagSet := make(map[string]bool)

	match := func(patterns []*regexp.Regexp, weight float64, tag string) {
		for _, p := range patterns {
			if p.MatchString(text) {
				score += weight
				tagSet[tag] = true
				return
			}
		}
	}

	match(personalFactPatterns, weightPersonalFact, TagPersonalFact)
	match(preferencePatterns, weightPreference, TagPreference)
	match(dateBoundPatterns, weightDateBound, TagDateBound)
	match(emphasisPatterns, weightEmphasis, TagEmphasis)

	for _, tok := range tokenize(text) {
		if negativeAffectWords[tok] {
			tagSet[TagNegativeAffect] = true
		}
		if stopwords[tok] || tagSet[TagRecurringTopic] {
			continue
		}
		if window.occurrences(tok) >= recurrenceMinHits {
			score += weightRecurrence
			tagSet[TagRecurringTopic] = true
		}
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return score, tags
}

// FindPersonalDetails scans stored user entries for self-introductions
// and returns what it found, e.g. {"name": "Chris"}.
func FindPersonalDetails(entries []*MemoryEntry) map[string]string {
	details := make(map[string]string)
	namePattern := regexp.MustCompile(`(?i)\b(?:my name is|call me)\s+([A-Z][a-zA-Z'-]{1,19})`)

	for _, entry := range entries {
		if entry.Role != RoleUser {
			continue
		}
		if m := namePattern.FindStringSubmatch(entry.Text); m != nil {
			details["name"] = strings.TrimRight(m[1], ".,!?;:")
			break
		}
	}
	return details
}
