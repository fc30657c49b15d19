package index

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	// ErrDimensionMismatch rejects a whole append batch when any vector's
	// dimensionality disagrees with the index's established one.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrPersistFailed reports that entries were appended in memory but the
	// snapshot write failed. The in-memory state is kept; a crash before the
	// next successful persist loses the batch.
	ErrPersistFailed = errors.New("index persist failed")
)

// Entry is the unit of storage: one embedded chunk. ID is assigned by the
// index on append and is monotonic across the index's lifetime.
type Entry struct {
	ID       uint64
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Result is one search hit, highest-similarity first.
type Result struct {
	Text     string
	Score    float64
	Metadata map[string]string
}

// Index is an append-only vector store with brute-force cosine search and a
// gob snapshot on disk. Append-and-persist is one critical section: readers
// see either the pre-append or the fully appended state.
type Index struct {
	mu          sync.RWMutex
	path        string
	dims        int
	nextID      uint64
	entries     []Entry
	initialized bool
}

// snapshot is the on-disk representation.
type snapshot struct {
	Dims    int
	NextID  uint64
	Entries []Entry
}

// LoadOrEmpty loads a persisted index from path. Any read or decode failure
// is logged and an empty index is returned instead of failing startup.
func LoadOrEmpty(path string) *Index {
	idx := &Index{path: path}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("index: no snapshot at %s, starting empty", path)
		} else {
			log.Printf("index: opening snapshot %s failed, starting empty: %v", path, err)
		}
		return idx
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		log.Printf("index: snapshot %s unreadable, starting empty: %v", path, err)
		return idx
	}
	defer zr.Close()

	var snap snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		log.Printf("index: decoding snapshot %s failed, starting empty: %v", path, err)
		return idx
	}

	idx.dims = snap.Dims
	idx.nextID = snap.NextID
	idx.entries = snap.Entries
	idx.initialized = true
	log.Printf("index: loaded %d entries (%d dims) from %s", len(snap.Entries), snap.Dims, path)
	return idx
}

// Append adds a batch of entries and persists the index before returning.
// The batch is atomic: any dimension mismatch rejects all of it. The first
// batch ever appended establishes the index dimensionality.
func (idx *Index) Append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	dims := idx.dims
	if !idx.initialized {
		dims = len(entries[0].Vector)
	}
	for i := range entries {
		if len(entries[i].Vector) != dims {
			return fmt.Errorf("%w: entry %d has %d dims, index has %d",
				ErrDimensionMismatch, i, len(entries[i].Vector), dims)
		}
	}

	for i := range entries {
		entries[i].ID = idx.nextID
		idx.nextID++
	}
	idx.dims = dims
	idx.entries = append(idx.entries, entries...)
	idx.initialized = true

	if err := idx.persistLocked(); err != nil {
		// In-memory state stays mutated; the caller decides how loudly to
		// report the durability gap.
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return nil
}

// Search returns up to k entries by descending cosine similarity. Ties are
// broken by insertion order, earlier entries first. An empty index returns
// an empty result.
func (idx *Index) Search(vector []float32, k int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 {
		return nil, nil
	}
	if len(vector) != idx.dims {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(vector), idx.dims)
	}
	if k <= 0 {
		k = 5
	}
	if k > len(idx.entries) {
		k = len(idx.entries)
	}

	order := make([]int, len(idx.entries))
	scores := make([]float64, len(idx.entries))
	for i := range idx.entries {
		order[i] = i
		scores[i] = cosine(vector, idx.entries[i].Vector)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	results := make([]Result, 0, k)
	for _, i := range order[:k] {
		results = append(results, Result{
			Text:     idx.entries[i].Text,
			Score:    scores[i],
			Metadata: idx.entries[i].Metadata,
		})
	}
	return results, nil
}

// IsInitialized distinguishes "no index yet" from "loaded but empty".
func (idx *Index) IsInitialized() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.initialized
}

func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dims
}

// persistLocked writes the snapshot via a temp file and rename so a crash
// mid-write never corrupts the previous snapshot. Caller holds the lock.
func (idx *Index) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp := idx.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	zw := gzip.NewWriter(f)
	err = gob.NewEncoder(zw).Encode(snapshot{
		Dims:    idx.dims,
		NextID:  idx.nextID,
		Entries: idx.entries,
	})
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := os.Rename(tmp, idx.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
