package index

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	return LoadOrEmpty(filepath.Join(t.TempDir(), "index.gob.gz"))
}

func entry(text string, vector ...float32) Entry {
	return Entry{Vector: vector, Text: text, Metadata: map[string]string{"source": text + ".txt"}}
}

func TestLoadOrEmpty_MissingFile(t *testing.T) {
	idx := testIndex(t)
	if idx.IsInitialized() {
		t.Error("fresh index reports initialized")
	}
	if idx.Count() != 0 {
		t.Errorf("fresh index has %d entries", idx.Count())
	}
}

func TestLoadOrEmpty_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.gob.gz")
	if err := os.WriteFile(path, []byte("not a gzip stream"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := LoadOrEmpty(path)
	if idx.IsInitialized() || idx.Count() != 0 {
		t.Error("corrupt snapshot should yield an empty uninitialized index")
	}
}

func TestAppend_EstablishesDimensionality(t *testing.T) {
	idx := testIndex(t)

	if err := idx.Append([]Entry{entry("a", 1, 0, 0)}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if !idx.IsInitialized() {
		t.Error("index not initialized after first append")
	}
	if idx.Dimensions() != 3 {
		t.Errorf("dims = %d, want 3", idx.Dimensions())
	}
}

func TestAppend_RejectsDimensionMismatchAtomically(t *testing.T) {
	idx := testIndex(t)
	if err := idx.Append([]Entry{entry("a", 1, 0, 0)}); err != nil {
		t.Fatal(err)
	}

	err := idx.Append([]Entry{
		entry("b", 0, 1, 0),
		entry("c", 0, 1), // wrong dims
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	if idx.Count() != 1 {
		t.Errorf("count = %d after rejected batch, want 1 (no partial insert)", idx.Count())
	}
}

func TestAppend_AssignsMonotonicIDs(t *testing.T) {
	idx := testIndex(t)
	if err := idx.Append([]Entry{entry("a", 1, 0), entry("b", 0, 1)}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Append([]Entry{entry("c", 1, 1)}); err != nil {
		t.Fatal(err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for i, e := range idx.entries {
		if e.ID != uint64(i) {
			t.Errorf("entry %d has ID %d", i, e.ID)
		}
	}
}

func TestSearch_EmptyIndexReturnsEmpty(t *testing.T) {
	idx := testIndex(t)
	results, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty index", len(results))
	}
}

func TestSearch_ExactMatchRanksFirst(t *testing.T) {
	idx := testIndex(t)
	err := idx.Append([]Entry{
		entry("north", 1, 0, 0),
		entry("east", 0, 1, 0),
		entry("up", 0, 0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search([]float32{0, 1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Text != "east" {
		t.Errorf("rank 1 = %q, want east", results[0].Text)
	}
	if math.Abs(results[0].Score-1.0) > 1e-6 {
		t.Errorf("rank 1 score = %f, want 1.0", results[0].Score)
	}
	if results[0].Metadata["source"] != "east.txt" {
		t.Errorf("metadata not carried through search: %v", results[0].Metadata)
	}
}

func TestSearch_DescendingOrderTiesByInsertion(t *testing.T) {
	idx := testIndex(t)
	err := idx.Append([]Entry{
		entry("first", 1, 0),
		entry("off-axis", 0.5, 0.5),
		entry("second", 1, 0), // identical direction to "first"
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending order at %d", i)
		}
	}
	if results[0].Text != "first" || results[1].Text != "second" {
		t.Errorf("tie not broken by insertion order: got %q, %q", results[0].Text, results[1].Text)
	}
}

func TestSearch_FewerEntriesThanK(t *testing.T) {
	idx := testIndex(t)
	if err := idx.Append([]Entry{entry("a", 1, 0), entry("b", 0, 1)}); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search([]float32{1, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want all 2 entries", len(results))
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx := testIndex(t)
	if err := idx.Append([]Entry{entry("a", 1, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.gob.gz")

	idx := LoadOrEmpty(path)
	err := idx.Append([]Entry{
		entry("alpha", 0.9, 0.1, 0),
		entry("beta", 0.1, 0.9, 0),
		entry("gamma", 0, 0.1, 0.9),
	})
	if err != nil {
		t.Fatal(err)
	}

	query := []float32{0.8, 0.2, 0}
	before, err := idx.Search(query, 3)
	if err != nil {
		t.Fatal(err)
	}

	// Fresh process: load the snapshot from disk.
	reloaded := LoadOrEmpty(path)
	if !reloaded.IsInitialized() {
		t.Fatal("reloaded index not initialized")
	}
	if reloaded.Count() != idx.Count() {
		t.Fatalf("reloaded count = %d, want %d", reloaded.Count(), idx.Count())
	}
	if reloaded.Dimensions() != idx.Dimensions() {
		t.Fatalf("reloaded dims = %d, want %d", reloaded.Dimensions(), idx.Dimensions())
	}

	after, err := reloaded.Search(query, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("result counts differ: %d vs %d", len(after), len(before))
	}
	for i := range before {
		if after[i].Text != before[i].Text {
			t.Errorf("rank %d text differs after reload: %q vs %q", i, after[i].Text, before[i].Text)
		}
		if math.Abs(after[i].Score-before[i].Score) > 1e-9 {
			t.Errorf("rank %d score differs after reload: %f vs %f", i, after[i].Score, before[i].Score)
		}
	}
}

func TestPersistence_IDsContinueAfterReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.gob.gz")

	idx := LoadOrEmpty(path)
	if err := idx.Append([]Entry{entry("a", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	reloaded := LoadOrEmpty(path)
	if err := reloaded.Append([]Entry{entry("b", 0, 1)}); err != nil {
		t.Fatal(err)
	}

	reloaded.mu.RLock()
	defer reloaded.mu.RUnlock()
	if reloaded.entries[1].ID != 1 {
		t.Errorf("ID after reload = %d, want 1", reloaded.entries[1].ID)
	}
}

func TestSearch_NeverObservesPartialAppend(t *testing.T) {
	idx := testIndex(t)
	if err := idx.Append([]Entry{entry("seed", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	const batches = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < batches; i++ {
			err := idx.Append([]Entry{entry("a", 1, 0), entry("b", 0, 1)})
			if err != nil {
				t.Errorf("append batch %d: %v", i, err)
				return
			}
		}
	}()

	// Every search must see the seed entry plus a whole number of
	// two-entry batches, never half a batch.
	for i := 0; i < 500; i++ {
		results, err := idx.Search([]float32{1, 1}, batches*2+1)
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if n := len(results); n%2 != 1 || n > batches*2+1 {
			t.Fatalf("search %d saw %d entries, not a whole number of batches", i, n)
		}
	}
	<-done
}

func TestAppend_PersistFailureKeepsMemoryState(t *testing.T) {
	// Point the snapshot inside a path segment that is a file, so persist
	// cannot create the directory.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := LoadOrEmpty(filepath.Join(blocker, "index.gob.gz"))
	err := idx.Append([]Entry{entry("a", 1, 0)})
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("err = %v, want ErrPersistFailed", err)
	}
	if idx.Count() != 1 {
		t.Errorf("count = %d, want 1 (in-memory append kept)", idx.Count())
	}
	if !idx.IsInitialized() {
		t.Error("index should report initialized after in-memory append")
	}
}
