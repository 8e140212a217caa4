package internal

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"
)

// ConceptIndex maps case-normalized concept names (note titles) to note
// paths. Last writer wins on collision. Rebuilt in bulk at startup and
// incrementally by the vault watcher.
type ConceptIndex struct {
	mu       sync.RWMutex
	concepts map[string]conceptEntry
}

type conceptEntry struct {
	display string // original casing for wiki links
	path    string
}

func NewConceptIndex() *ConceptIndex {
	return &ConceptIndex{concepts: make(map[string]conceptEntry)}
}

func normalizeConcept(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (ci *ConceptIndex) Upsert(name, notePath string) {
	key := normalizeConcept(name)
	if key == "" {
		return
	}
	ci.mu.Lock()
	ci.concepts[key] = conceptEntry{display: strings.TrimSpace(name), path: notePath}
	ci.mu.Unlock()
}

// RemoveByPath drops every concept that points at the given note.
func (ci *ConceptIndex) RemoveByPath(notePath string) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	for key, entry := range ci.concepts {
		if entry.path == notePath {
			delete(ci.concepts, key)
		}
	}
}

func (ci *ConceptIndex) Lookup(name string) (string, bool) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	entry, ok := ci.concepts[normalizeConcept(name)]
	return entry.path, ok
}

func (ci *ConceptIndex) Len() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.concepts)
}

// names returns concept display names longest first, so longer concepts
// win over their substrings during linking.
func (ci *ConceptIndex) names() []string {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	out := make([]string, 0, len(ci.concepts))
	for _, entry := range ci.concepts {
		out = append(out, entry.display)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// Rebuild repopulates the index from every note title in the vault.
func (ci *ConceptIndex) Rebuild(ctx context.Context, vault Vault) error {
	infos, err := vault.ListNotes(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]conceptEntry, len(infos))
	for _, info := range infos {
		note, err := vault.GetNote(ctx, info.Path)
		if err != nil {
			log.Warn("skipping unreadable note while indexing concepts", "path", info.Path, "err", err)
			continue
		}
		title := NoteTitle(note)
		if key := normalizeConcept(title); key != "" {
			fresh[key] = conceptEntry{display: strings.TrimSpace(title), path: info.Path}
		}
	}

	ci.mu.Lock()
	ci.concepts = fresh
	ci.mu.Unlock()
	return nil
}

var wikiLinkPattern = regexp.MustCompile(`\[\[[^\[\]]*\]\]`)

// Linkify wraps the first occurrence of each known concept in a wiki
// link. Matching is case-insensitive and longest-match-first; spans
// already inside a link are never rewrapped, so the function is
// idempotent.
func (ci *ConceptIndex) Linkify(text string) string {
	for _, name := range ci.names() {
		if conceptAlreadyLinked(text, name) {
			continue
		}
		text = linkFirstOccurrence(text, name)
	}
	return text
}

func conceptAlreadyLinked(text, name string) bool {
	lower := strings.ToLower(text)
	needle := strings.ToLower(name)
	for _, span := range wikiLinkPattern.FindAllStringIndex(lower, -1) {
		if strings.Contains(lower[span[0]:span[1]], needle) {
			return true
		}
	}
	return false
}

func linkFirstOccurrence(text, name string) string {
	lower := strings.ToLower(text)
	needle := strings.ToLower(name)
	links := wikiLinkPattern.FindAllStringIndex(text, -1)

	from := 0
	for {
		idx := strings.Index(lower[from:], needle)
		if idx < 0 {
			return text
		}
		start := from + idx
		end := start + len(needle)

		if insideAny(links, start, end) || !wordBounded(text, start, end) {
			from = end
			continue
		}

		return text[:start] + "[[" + text[start:end] + "]]" + text[end:]
	}
}

func insideAny(spans [][]int, start, end int) bool {
	for _, span := range spans {
		if start < span[1] && end > span[0] {
			return true
		}
	}
	return false
}

func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r := rune(text[start-1])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r := rune(text[end])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
