package internal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Insight is advisory output mined from the memory store. It never
// blocks the chat path; generation failures degrade to no insights.
type Insight struct {
	Kind   string // "suggestion" or "reflection"
	Text   string
	Topics []string
}

const (
	defaultLookback     = 7 * 24 * time.Hour
	topicFreqThreshold  = 3
	negativeAffectRun   = 3
	insightWindowLimit  = 200
	suggestionMaxTopics = 2
)

// InsightGenerator mines the recent memory window for recurring topics
// and affect patterns. The provider is optional; without it the
// generator emits template text instead of model-written suggestions.
type InsightGenerator struct {
	store    *VectorStore
	provider Provider
	lookback time.Duration
}

func NewInsightGenerator(store *VectorStore, provider Provider) *InsightGenerator {
	return &InsightGenerator{
		store:    store,
		provider: provider,
		lookback: defaultLookback,
	}
}

// Generate returns current insights: at most one topic suggestion and
// one reflective prompt.
func (g *InsightGenerator) Generate(ctx context.Context) []Insight {
	entries, err := g.store.Recent(ctx, insightWindowLimit, g.lookback)
	if err != nil {
		log.Warn("insight scan failed", "err", err)
		return nil
	}

	var insights []Insight
	if s := g.topicSuggestion(ctx, entries); s != nil {
		insights = append(insights, *s)
	}
	if r := g.reflectivePrompt(entries); r != nil {
		insights = append(insights, *r)
	}
	return insights
}

type topicCount struct {
	topic string
	count int
}

// topicSuggestion fires when at least two topics recur past the
// threshold inside the window.
func (g *InsightGenerator) topicSuggestion(ctx context.Context, entries []*MemoryEntry) *Insight {
	counts := make(map[string]int)
	for _, entry := range entries {
		if entry.Role != RoleUser {
			continue
		}
		for tok := range contentTokens(entry.Text) {
			counts[tok]++
		}
	}

	var frequent []topicCount
	for topic, count := range counts {
		if count >= topicFreqThreshold {
			frequent = append(frequent, topicCount{topic, count})
		}
	}
	if len(frequent) < suggestionMaxTopics {
		return nil
	}

	sort.Slice(frequent, func(i, j int) bool {
		if frequent[i].count != frequent[j].count {
			return frequent[i].count > frequent[j].count
		}
		return frequent[i].topic < frequent[j].topic
	})
	top := frequent[:suggestionMaxTopics]
	topics := []string{top[0].topic, top[1].topic}

	text := fmt.Sprintf("You've been coming back to %q and %q lately. Worth connecting the two?",
		topics[0], topics[1])

	if g.provider != nil {
		prompt := fmt.Sprintf(
			"The user mentioned %q %d times and %q %d times in recent conversations. "+
				"Write one brief, friendly, non-intrusive suggestion that connects these topics. "+
				"Do not assume the user's intentions.",
			topics[0], top[0].count, topics[1], top[1].count)

		var draft InsightDraft
		if err := g.provider.GenerateObject(ctx, prompt, &draft); err == nil && strings.TrimSpace(draft.Suggestion) != "" {
			text = strings.TrimSpace(draft.Suggestion)
		} else if generated, cerr := g.provider.Complete(ctx, prompt); cerr == nil && strings.TrimSpace(generated) != "" {
			text = strings.TrimSpace(generated)
		} else if cerr != nil {
			log.Warn("suggestion generation failed, using template", "err", cerr)
		}
	}

	return &Insight{Kind: "suggestion", Text: text, Topics: topics}
}

// reflectivePrompt fires on a run of negative-affect tags across
// consecutive days.
func (g *InsightGenerator) reflectivePrompt(entries []*MemoryEntry) *Insight {
	days := make(map[string]bool)
	for _, entry := range entries {
		if entry.HasTag(TagNegativeAffect) {
			days[entry.CreatedAt.Format("2006-01-02")] = true
		}
	}
	if len(days) < negativeAffectRun {
		return nil
	}

	var sorted []string
	for day := range days {
		sorted = append(sorted, day)
	}
	sort.Strings(sorted)

	run := 1
	for i := 1; i < len(sorted); i++ {
		prev, _ := time.Parse("2006-01-02", sorted[i-1])
		cur, _ := time.Parse("2006-01-02", sorted[i])
		if cur.Sub(prev) == 24*time.Hour {
			run++
			if run >= negativeAffectRun {
				return &Insight{
					Kind: "reflection",
					Text: "The last few days have sounded heavy. Would it help to talk through what's been weighing on you?",
				}
			}
		} else {
			run = 1
		}
	}
	return nil
}

// Welcome assembles a short contextual greeting from yesterday's
// memories and any personal details on file.
func (g *InsightGenerator) Welcome(ctx context.Context) string {
	parts := []string{"Welcome back."}

	entries, err := g.store.List(ctx)
	if err != nil {
		return parts[0]
	}

	if details := FindPersonalDetails(entries); details["name"] != "" {
		parts[0] = fmt.Sprintf("Welcome back, %s.", details["name"])
	}

	if quote := yesterdayQuote(entries); quote != "" {
		parts = append(parts, fmt.Sprintf("Yesterday you said: %q", quote))
	}

	return strings.Join(parts, " ")
}

// yesterdayQuote picks yesterday's highest-importance user utterance.
func yesterdayQuote(entries []*MemoryEntry) string {
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	var best *MemoryEntry
	for _, entry := range entries {
		if entry.Role != RoleUser || entry.CreatedAt.Format("2006-01-02") != yesterday {
			continue
		}
		if best == nil || entry.Importance > best.Importance {
			best = entry
		}
	}
	if best == nil {
		return ""
	}

	quote := best.Text
	if len(quote) > 120 {
		quote = strings.TrimSpace(quote[:120]) + "…"
	}
	return quote
}
