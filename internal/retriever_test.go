package internal

import (
	"context"
	"testing"
	"time"
)

// fakeEmbedder serves canned vectors keyed by exact text, with a
// fallback for anything unknown.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	degraded bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.degraded {
		return nil, ErrBackendUnavailable
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return f.fallback, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return testDimension }
func (f *fakeEmbedder) Degraded() bool { return f.degraded }

var _ Embedder = (*fakeEmbedder)(nil)

func TestRetrieveRanksSemanticNeighborsFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	trip := addEntry(t, store, "planning the Colorado trip", []float32{1, 0, 0, 0})
	addEntry(t, store, "watered the plants", []float32{0, 1, 0, 0})
	addEntry(t, store, "fixed the bike chain", []float32{0, 0, 1, 0})

	embedder := &fakeEmbedder{
		vectors:  map[string][]float32{"colorado": {1, 0, 0, 0}},
		fallback: []float32{0, 0, 0, 1},
	}
	r := NewRetriever(store, embedder, DefaultRetrievalOptions())

	ranked, err := r.Retrieve(ctx, "colorado", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("len = %d, want 2", len(ranked))
	}
	if ranked[0].Entry.ID != trip.ID {
		t.Errorf("top result = %q", ranked[0].Entry.Text)
	}
	if ranked[0].Composite < ranked[1].Composite {
		t.Error("results not sorted by composite score")
	}
}

func TestRetrievePersistsRecomputedImportance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	entry := addEntry(t, store, "I love hiking in the mountains", []float32{1, 0, 0, 0})
	if entry.Importance != 0 {
		t.Fatalf("precondition: stored importance = %v", entry.Importance)
	}

	r := NewRetriever(store, nil, DefaultRetrievalOptions())
	if _, err := r.Retrieve(ctx, "hiking", 1); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	stored, err := store.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Importance <= 0 {
		t.Errorf("importance not written back: %v", stored.Importance)
	}
	if !stored.HasTag(TagPreference) {
		t.Errorf("tags not written back: %v", stored.Tags)
	}
}

func TestRetrieveCapsAtK(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	vectors := [][]float32{
		{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1},
		{1, 1, 0, 0}, {0, 1, 1, 0},
	}
	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	for i, text := range texts {
		addEntry(t, store, text, vectors[i])
	}

	embedder := &fakeEmbedder{fallback: []float32{1, 0, 0, 0}}
	r := NewRetriever(store, embedder, DefaultRetrievalOptions())

	ranked, err := r.Retrieve(ctx, "anything", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(ranked) > 3 {
		t.Errorf("len = %d, want at most 3", len(ranked))
	}
}

func TestRetrieveDeduplicatesRepeatedText(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addEntry(t, store, "I love hiking", []float32{1, 0, 0, 0})
	addEntry(t, store, "i love HIKING", []float32{0.99, 0.01, 0, 0})
	addEntry(t, store, "something else entirely", []float32{0, 1, 0, 0})

	embedder := &fakeEmbedder{fallback: []float32{1, 0, 0, 0}}
	r := NewRetriever(store, embedder, DefaultRetrievalOptions())

	ranked, err := r.Retrieve(ctx, "hiking", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	hikes := 0
	for _, re := range ranked {
		if tokenizeJoined(re.Entry.Text) == "i love hiking" {
			hikes++
		}
	}
	if hikes != 1 {
		t.Errorf("near-duplicate surfaced %d times, want 1", hikes)
	}
}

func tokenizeJoined(text string) string {
	out := ""
	for i, tok := range tokenize(text) {
		if i > 0 {
			out += " "
		}
		out += tok
	}
	return out
}

func TestRetrieveDegradedModeKeywordRanking(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	garden := addEntry(t, store, "the garden needs watering", []float32{1, 0, 0, 0})
	addEntry(t, store, "practiced scales on the piano", []float32{0, 1, 0, 0})

	embedder := &fakeEmbedder{degraded: true}
	r := NewRetriever(store, embedder, DefaultRetrievalOptions())

	ranked, err := r.Retrieve(ctx, "garden watering", 2)
	if err != nil {
		t.Fatalf("Retrieve in degraded mode: %v", err)
	}
	if len(ranked) == 0 {
		t.Fatal("degraded retrieval returned nothing")
	}
	if ranked[0].Entry.ID != garden.ID {
		t.Errorf("top degraded result = %q", ranked[0].Entry.Text)
	}
}

func TestRetrieveNilEmbedderStillWorks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addEntry(t, store, "remember the dentist appointment", []float32{1, 0, 0, 0})

	r := NewRetriever(store, nil, DefaultRetrievalOptions())
	ranked, err := r.Retrieve(ctx, "dentist", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(ranked) != 1 {
		t.Errorf("len = %d, want 1", len(ranked))
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	store := newTestStore(t)
	r := NewRetriever(store, &fakeEmbedder{fallback: []float32{1, 0, 0, 0}}, DefaultRetrievalOptions())

	ranked, err := r.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ranked != nil {
		t.Errorf("ranked = %v, want nil", ranked)
	}
}

func TestRecencyDecay(t *testing.T) {
	half := 72 * time.Hour

	if got := recencyDecay(0, half); got != 1 {
		t.Errorf("zero age = %v", got)
	}
	if got := recencyDecay(half, half); got < 0.49 || got > 0.51 {
		t.Errorf("one half-life = %v, want ~0.5", got)
	}
	older := recencyDecay(10*half, half)
	newer := recencyDecay(half, half)
	if older >= newer {
		t.Errorf("decay not monotone: %v >= %v", older, newer)
	}
}

func TestNewRetrieverDerivesRecencyWeight(t *testing.T) {
	r := NewRetriever(nil, nil, RetrievalOptions{
		SemanticWeight:   0.5,
		ImportanceWeight: 0.3,
		RecencyHalfLife:  time.Hour,
	})
	if r.recencyWeight < 0.199 || r.recencyWeight > 0.201 {
		t.Errorf("recencyWeight = %v, want 0.2", r.recencyWeight)
	}

	clamped := NewRetriever(nil, nil, RetrievalOptions{
		SemanticWeight:   0.9,
		ImportanceWeight: 0.9,
		RecencyHalfLife:  time.Hour,
	})
	if clamped.recencyWeight != 0 {
		t.Errorf("recencyWeight = %v, want 0", clamped.recencyWeight)
	}
}

func TestKeywordOverlap(t *testing.T) {
	query := contentTokens("garden watering schedule")
	if got := keywordOverlap(query, "the garden needs watering"); got < 0.6 {
		t.Errorf("overlap = %v, want >= 2/3", got)
	}
	if got := keywordOverlap(query, "completely unrelated"); got != 0 {
		t.Errorf("overlap = %v, want 0", got)
	}
	if got := keywordOverlap(contentTokens(""), "anything"); got != 0 {
		t.Errorf("empty query overlap = %v, want 0", got)
	}
}
