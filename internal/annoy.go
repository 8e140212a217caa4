package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"
)

const (
	IndexFilename   = "index.ann"
	MappingFilename = "mapping.json"
	defaultNumTrees = 16
)

// AnnoyIndex maps entry ids onto an approximate nearest-neighbor index
// using angular distance, which is equivalent to cosine similarity on
// normalized vectors. The on-disk index is a derived cache; the journal
// holds the raw entries it is rebuilt from.
//
// The underlying trees are build-once and load-immutable: a built or
// loaded index must never receive another AddItem or Build. Vectors are
// therefore kept here as well, and any mutation marks the trees stale;
// the next Search or Save constructs a fresh index from the live
// vectors and builds it exactly once.
type AnnoyIndex struct {
	mu        sync.RWMutex
	idx       interfaces.AnnoyIndex[float32, uint32]
	dimension int
	vectors   map[string][]float32
	idToSlot  map[string]uint32
	slotToID  map[uint32]string
	basePath  string
	fresh     bool // trees match vectors
	dirty     bool // in-memory state differs from disk
}

type indexMapping struct {
	IDToSlot map[string]uint32    `json:"id_to_slot"`
	SlotToID map[uint32]string    `json:"slot_to_id"`
	Vectors  map[string][]float32 `json:"vectors"`
}

type IndexHit struct {
	EntryID  string
	Distance float32
}

func NewAnnoyIndex(basePath string, dimension int) (*AnnoyIndex, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create vectors directory: %w", err)
	}

	return &AnnoyIndex{
		dimension: dimension,
		vectors:   make(map[string][]float32),
		idToSlot:  make(map[string]uint32),
		slotToID:  make(map[uint32]string),
		basePath:  basePath,
	}, nil
}

func newAngularIndex(dimension int) interfaces.AnnoyIndex[float32, uint32] {
	return builder.Index[float32, uint32]().
		AngularDistance(dimension).
		UseMultiWorkerPolicy().
		MmapIndexAllocator().
		Build()
}

func (a *AnnoyIndex) Dimension() int { return a.dimension }

// Add registers an embedding under an entry id. The trees go stale;
// Search and Save reconstruct them from the live vectors.
func (a *AnnoyIndex) Add(ctx context.Context, entryID string, vec []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(vec) != a.dimension {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", a.dimension, len(vec))
	}

	a.vectors[entryID] = vec
	a.fresh = false
	a.dirty = true
	return nil
}

// Remove forgets an entry's vector. The trees go stale and the vector
// disappears from results on the next reconstruction.
func (a *AnnoyIndex) Remove(ctx context.Context, entryID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.vectors[entryID]; !exists {
		return
	}
	delete(a.vectors, entryID)
	if slot, ok := a.idToSlot[entryID]; ok {
		delete(a.idToSlot, entryID)
		delete(a.slotToID, slot)
	}
	a.fresh = false
	a.dirty = true
}

// refreshLocked replaces stale trees with a fresh index over the live
// vectors, built exactly once. Never touches a previously built or
// loaded index. Caller holds the write lock.
func (a *AnnoyIndex) refreshLocked() {
	if a.fresh {
		return
	}

	a.idToSlot = make(map[string]uint32, len(a.vectors))
	a.slotToID = make(map[uint32]string, len(a.vectors))
	if len(a.vectors) == 0 {
		a.idx = nil
		a.fresh = true
		return
	}

	idx := newAngularIndex(a.dimension)
	var slot uint32
	for entryID, vec := range a.vectors {
		a.idToSlot[entryID] = slot
		a.slotToID[slot] = entryID
		idx.AddItem(slot, vec)
		slot++
	}
	idx.Build(defaultNumTrees, -1)
	a.idx = idx
	a.fresh = true
}

func (a *AnnoyIndex) Search(ctx context.Context, query []float32, k int) ([]IndexHit, error) {
	if len(query) != a.dimension {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d", a.dimension, len(query))
	}

	a.mu.Lock()
	a.refreshLocked()
	a.mu.Unlock()

	a.mu.RLock()
	defer a.mu.RUnlock()

	if k > len(a.idToSlot) {
		k = len(a.idToSlot)
	}
	if k == 0 || a.idx == nil {
		return nil, nil
	}

	searchCtx := a.idx.CreateContext()
	slots, distances := a.idx.GetNnsByVector(query, k, -1, searchCtx)

	hits := make([]IndexHit, 0, len(slots))
	for i, slot := range slots {
		entryID, exists := a.slotToID[slot]
		if !exists {
			continue // removed since the trees were built
		}
		var dist float32
		if i < len(distances) {
			dist = distances[i]
		}
		hits = append(hits, IndexHit{EntryID: entryID, Distance: dist})
	}

	return hits, nil
}

func (a *AnnoyIndex) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.vectors)
}

// Reset discards every vector and mapping, ready for a rebuild from the
// raw entries.
func (a *AnnoyIndex) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.idx = nil
	a.vectors = make(map[string][]float32)
	a.idToSlot = make(map[string]uint32)
	a.slotToID = make(map[uint32]string)
	a.fresh = false
	a.dirty = true
}

func (a *AnnoyIndex) Save(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.dirty {
		return nil
	}
	a.refreshLocked()

	if a.idx != nil {
		if err := a.idx.Save(filepath.Join(a.basePath, IndexFilename)); err != nil {
			return fmt.Errorf("save index: %w", err)
		}
	}

	mapping := indexMapping{
		IDToSlot: a.idToSlot,
		SlotToID: a.slotToID,
		Vectors:  a.vectors,
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.basePath, MappingFilename), data, 0644); err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}

	a.dirty = false
	return nil
}

// Load restores the index and mapping from disk. A missing or
// unreadable file surfaces ErrIndexCorrupt so the caller rebuilds from
// the journal instead of silently dropping data. The loaded trees are
// immutable; a later mutation swaps in fresh ones built from the
// restored vectors.
func (a *AnnoyIndex) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(a.basePath, MappingFilename))
	if err != nil {
		return fmt.Errorf("%w: read mapping: %v", ErrIndexCorrupt, err)
	}

	var mapping indexMapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		return fmt.Errorf("%w: parse mapping: %v", ErrIndexCorrupt, err)
	}

	indexPath := filepath.Join(a.basePath, IndexFilename)
	if _, err := os.Stat(indexPath); err != nil {
		return fmt.Errorf("%w: stat index: %v", ErrIndexCorrupt, err)
	}
	idx := newAngularIndex(a.dimension)
	if err := idx.Load(indexPath); err != nil {
		return fmt.Errorf("%w: load index: %v", ErrIndexCorrupt, err)
	}

	a.idx = idx
	a.idToSlot = mapping.IDToSlot
	a.slotToID = mapping.SlotToID
	a.vectors = mapping.Vectors
	if a.vectors == nil {
		a.vectors = make(map[string][]float32)
	}
	if a.idToSlot == nil {
		a.idToSlot = make(map[string]uint32)
	}
	if a.slotToID == nil {
		a.slotToID = make(map[uint32]string)
	}
	a.fresh = true
	a.dirty = false
	return nil
}
