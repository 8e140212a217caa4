package internal

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// RetrievalOptions are the recognized ranking knobs. They come from
// configuration, not code.
type RetrievalOptions struct {
	SemanticWeight   float64       `yaml:"semantic_weight"`
	ImportanceWeight float64       `yaml:"importance_weight"`
	RecencyHalfLife  time.Duration `yaml:"recency_half_life"`
}

func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		SemanticWeight:   0.6,
		ImportanceWeight: 0.25,
		RecencyHalfLife:  72 * time.Hour,
	}
}

// RankedEntry is one retrieved memory with its composite score parts.
type RankedEntry struct {
	Entry      *MemoryEntry
	Semantic   float64
	Importance float64
	Recency    float64
	Composite  float64
}

// Retriever composes vector search with importance and recency into a
// final ranked context. When the embedding backend is unavailable it
// degrades to keyword overlap plus importance and recency, never
// failing the query.
type Retriever struct {
	store    *VectorStore
	embedder Embedder
	opts     RetrievalOptions

	// recencyWeight is derived so the three terms stay normalized.
	recencyWeight float64
}

func NewRetriever(store *VectorStore, embedder Embedder, opts RetrievalOptions) *Retriever {
	if opts.RecencyHalfLife <= 0 {
		opts.RecencyHalfLife = DefaultRetrievalOptions().RecencyHalfLife
	}
	recency := 1 - opts.SemanticWeight - opts.ImportanceWeight
	if recency < 0 {
		recency = 0
	}
	return &Retriever{
		store:         store,
		embedder:      embedder,
		opts:          opts,
		recencyWeight: recency,
	}
}

const (
	// Fetch headroom over k so re-ranking has candidates to promote.
	candidateMultiplier = 4

	// Candidates closer than this cosine similarity to an already
	// retained entry are considered repeats.
	dedupSimilarity = 0.995

	recurrenceWindowSize = 50
)

type degradable interface {
	Degraded() bool
}

// Retrieve returns at most k entries ranked by composite score.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]RankedEntry, error) {
	if k <= 0 {
		k = 5
	}

	candidates, _ := r.candidates(ctx, query, k)
	if len(candidates) == 0 {
		return nil, nil
	}

	window := r.recentWindow(ctx)
	now := time.Now()

	ranked := make([]RankedEntry, 0, len(candidates))
	for _, cand := range candidates {
		// Importance is recomputed at ranking time so it is never
		// stale relative to the current recent window, and written
		// back so the stored score tracks the latest ranking.
		imp, tags := ScoreImportance(cand.Entry.Text, window)
		if imp != cand.Entry.Importance {
			if err := r.store.Rescore(ctx, cand.Entry.ID, imp, tags); err != nil {
				log.Warn("persisting rescored importance failed", "id", cand.Entry.ID, "err", err)
			}
		}

		age := now.Sub(cand.Entry.CreatedAt)
		rec := recencyDecay(age, r.opts.RecencyHalfLife)

		// In degraded mode cand.Semantic holds keyword overlap, which
		// substitutes for similarity at the same weight so topical
		// queries still steer the ranking.
		composite := r.opts.SemanticWeight*cand.Semantic +
			r.opts.ImportanceWeight*imp +
			r.recencyWeight*rec

		ranked = append(ranked, RankedEntry{
			Entry:      cand.Entry,
			Semantic:   cand.Semantic,
			Importance: imp,
			Recency:    rec,
			Composite:  composite,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		return ranked[i].Entry.CreatedAt.After(ranked[j].Entry.CreatedAt)
	})

	ranked = dedupe(ranked)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

type candidate struct {
	Entry    *MemoryEntry
	Semantic float64
}

// candidates fetches 4k nearest neighbors, or every entry scored by
// keyword overlap when the embedder is down. The bool reports whether
// the semantic term is live.
func (r *Retriever) candidates(ctx context.Context, query string, k int) ([]candidate, bool) {
	if r.embedder != nil {
		if d, ok := r.embedder.(degradable); !ok || !d.Degraded() {
			vec, err := r.embedder.Embed(ctx, query)
			if err == nil {
				hits, serr := r.store.Search(ctx, vec, k*candidateMultiplier)
				if serr == nil {
					cands := make([]candidate, 0, len(hits))
					for _, hit := range hits {
						// Angular distance lives in [0,2].
						cands = append(cands, candidate{
							Entry:    hit.Entry,
							Semantic: 1 - float64(hit.Distance)/2,
						})
					}
					return cands, true
				}
				log.Warn("vector search failed, degrading to keyword ranking", "err", serr)
			} else if !errors.Is(err, ErrBackendUnavailable) {
				log.Warn("query embedding failed", "err", err)
			}
		}
	}

	entries, err := r.store.List(ctx)
	if err != nil {
		log.Warn("listing entries for degraded retrieval failed", "err", err)
		return nil, false
	}

	queryToks := contentTokens(query)
	cands := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		cands = append(cands, candidate{
			Entry:    entry,
			Semantic: keywordOverlap(queryToks, entry.Text),
		})
	}
	return cands, false
}

func (r *Retriever) recentWindow(ctx context.Context) RecentWindow {
	recent, err := r.store.Recent(ctx, recurrenceWindowSize, 0)
	if err != nil {
		return NewRecentWindow(nil)
	}
	texts := make([]string, 0, len(recent))
	for _, entry := range recent {
		texts = append(texts, entry.Text)
	}
	return NewRecentWindow(texts)
}

// recencyDecay is exponential with the configured half-life, so an
// entry one half-life old scores 0.5 and decay is monotone in age.
func recencyDecay(age, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age.Seconds() / halfLife.Seconds())
}

func contentTokens(text string) map[string]bool {
	toks := make(map[string]bool)
	for _, tok := range tokenize(text) {
		if !stopwords[tok] {
			toks[tok] = true
		}
	}
	return toks
}

func keywordOverlap(queryToks map[string]bool, text string) float64 {
	if len(queryToks) == 0 {
		return 0
	}
	matched := 0
	for tok := range contentTokens(text) {
		if queryToks[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryToks))
}

// dedupe drops entries that repeat an already retained one: same source
// chunk, identical normalized text, or near-identical embeddings.
func dedupe(ranked []RankedEntry) []RankedEntry {
	kept := ranked[:0]
	seenChunks := make(map[string]bool)
	seenTexts := make(map[string]bool)

	for _, cand := range ranked {
		if cand.Entry.ChunkID != "" && seenChunks[cand.Entry.ChunkID] {
			continue
		}
		norm := strings.Join(tokenize(cand.Entry.Text), " ")
		if seenTexts[norm] {
			continue
		}

		repeat := false
		for _, prev := range kept {
			if len(cand.Entry.Embedding) > 0 && len(prev.Entry.Embedding) > 0 &&
				CosineSimilarity(cand.Entry.Embedding, prev.Entry.Embedding) >= dedupSimilarity {
				repeat = true
				break
			}
		}
		if repeat {
			continue
		}

		if cand.Entry.ChunkID != "" {
			seenChunks[cand.Entry.ChunkID] = true
		}
		seenTexts[norm] = true
		kept = append(kept, cand)
	}
	return kept
}
