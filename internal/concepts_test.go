package internal

import (
	"testing"
)

func newTestConcepts(pairs ...string) *ConceptIndex {
	ci := NewConceptIndex()
	for i := 0; i+1 < len(pairs); i += 2 {
		ci.Upsert(pairs[i], pairs[i+1])
	}
	return ci
}

func TestLinkifyFirstOccurrenceOnly(t *testing.T) {
	ci := newTestConcepts("Garden", "Garden.md")
	got := ci.Linkify("the garden is growing, love the garden")
	want := "the [[garden]] is growing, love the garden"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLinkifyIdempotent(t *testing.T) {
	ci := newTestConcepts("Garden", "Garden.md", "Piano", "Piano.md")
	text := "practiced piano near the garden"

	once := ci.Linkify(text)
	twice := ci.Linkify(once)
	if once != twice {
		t.Errorf("second pass changed output:\n once: %q\ntwice: %q", once, twice)
	}
}

func TestLinkifyCaseInsensitiveKeepsOriginalCasing(t *testing.T) {
	ci := newTestConcepts("Machine Learning", "ML.md")
	got := ci.Linkify("reading about machine learning today")
	want := "reading about [[machine learning]] today"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLinkifyLongestMatchWins(t *testing.T) {
	ci := newTestConcepts("Garden", "Garden.md", "Garden Shed", "Shed.md")
	got := ci.Linkify("cleaned out the garden shed")
	want := "cleaned out the [[garden shed]]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLinkifyWordBoundary(t *testing.T) {
	ci := newTestConcepts("Art", "Art.md")
	got := ci.Linkify("started the project")
	if got != "started the project" {
		t.Errorf("substring inside a word was linked: %q", got)
	}
}

func TestLinkifySkipsExistingLinks(t *testing.T) {
	ci := newTestConcepts("Garden", "Garden.md")
	text := "see [[Garden]] for details"
	if got := ci.Linkify(text); got != text {
		t.Errorf("existing link rewritten: %q", got)
	}
}

func TestLinkifyNoConcepts(t *testing.T) {
	ci := NewConceptIndex()
	text := "nothing to link here"
	if got := ci.Linkify(text); got != text {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestUpsertLastWriterWins(t *testing.T) {
	ci := newTestConcepts("Garden", "old.md", "garden", "new.md")
	path, ok := ci.Lookup("GARDEN")
	if !ok {
		t.Fatal("concept not found")
	}
	if path != "new.md" {
		t.Errorf("path = %q, want new.md", path)
	}
}

func TestRemoveByPath(t *testing.T) {
	ci := newTestConcepts("Garden", "a.md", "Piano", "b.md", "Soil", "a.md")
	ci.RemoveByPath("a.md")
	if ci.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ci.Len())
	}
	if _, ok := ci.Lookup("Piano"); !ok {
		t.Error("unrelated concept removed")
	}
}
