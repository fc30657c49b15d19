package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/davidemeka/ragserve/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) Recognize(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, string, []byte) (string, error) {
	return f.text, f.err
}

func TestKindFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     models.DocumentKind
	}{
		{"notes.txt", models.KindPlainText},
		{"README.md", models.KindPlainText},
		{"report.PDF", models.KindPDF},
		{"contract.docx", models.KindDocx},
		{"legacy.doc", models.KindDocx},
		{"table.csv", models.KindCSV},
		{"scan.png", models.KindImage},
		{"photo.JPEG", models.KindImage},
		{"meeting.mp3", models.KindAudio},
		{"voice.m4a", models.KindAudio},
		{"page.html", models.KindHTML},
		{"archive.tar.gz", models.KindUnknown},
		{"noextension", models.KindUnknown},
	}
	for _, tt := range tests {
		if got := KindFromFilename(tt.filename); got != tt.want {
			t.Errorf("KindFromFilename(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

var processedKeyPattern = regexp.MustCompile(`^notes_[0-9a-f]{8}\.txt$`)

func TestExtract_PlainTextArchivesProcessedCopy(t *testing.T) {
	store := newMemStore()
	d := NewDispatcher(nil, nil, store)

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "notes.txt",
		Kind:     models.KindPlainText,
		Data:     []byte("The quick brown fox jumps over the lazy dog.\n"),
	}
	units, err := d.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].SourceID != "doc-1" || units[0].Source != "notes.txt" {
		t.Errorf("unit provenance wrong: %+v", units[0])
	}
	if !strings.Contains(units[0].Text, "quick brown fox") {
		t.Errorf("unit text = %q", units[0].Text)
	}

	if !processedKeyPattern.MatchString(units[0].ProcessedPath) {
		t.Errorf("processed key %q does not match <stem>_<8 hex>.txt", units[0].ProcessedPath)
	}
	archived, err := store.Get(context.Background(), units[0].ProcessedPath)
	if err != nil {
		t.Fatalf("archived copy missing: %v", err)
	}
	if !strings.Contains(string(archived), "quick brown fox") {
		t.Errorf("archived text = %q", archived)
	}
}

func TestExtract_WhitespaceOnlyYieldsZeroUnits(t *testing.T) {
	store := newMemStore()
	d := NewDispatcher(nil, nil, store)

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "blank.txt",
		Kind:     models.KindPlainText,
		Data:     []byte("   \n\t\n"),
	}
	units, err := d.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if units != nil {
		t.Errorf("got %d units, want none", len(units))
	}
	if len(store.objects) != 0 {
		t.Errorf("empty extraction should not be archived, store has %d objects", len(store.objects))
	}
}

func TestExtract_ArchiveFailureDoesNotFailExtraction(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("bucket unavailable")
	d := NewDispatcher(nil, nil, store)

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "notes.txt",
		Kind:     models.KindPlainText,
		Data:     []byte("still extractable"),
	}
	units, err := d.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].ProcessedPath != "" {
		t.Errorf("ProcessedPath = %q, want empty when archiving fails", units[0].ProcessedPath)
	}
}

func TestExtract_CSVOneUnitPerRow(t *testing.T) {
	d := NewDispatcher(nil, nil, newMemStore())

	data := "name,role\nada,engineer\ngrace,admiral\n"
	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "people.csv",
		Kind:     models.KindCSV,
		Data:     []byte(data),
	}
	units, err := d.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if units[0].Text != "name: ada\nrole: engineer" {
		t.Errorf("row 1 = %q", units[0].Text)
	}
	if units[1].Text != "name: grace\nrole: admiral" {
		t.Errorf("row 2 = %q", units[1].Text)
	}
}

func TestExtract_CSVHeaderOnly(t *testing.T) {
	d := NewDispatcher(nil, nil, newMemStore())

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "empty.csv",
		Kind:     models.KindCSV,
		Data:     []byte("name,role\n"),
	}
	units, err := d.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if units != nil {
		t.Errorf("got %d units from header-only csv, want none", len(units))
	}
}

func TestExtract_ImageWithoutOCRYieldsZeroUnits(t *testing.T) {
	d := NewDispatcher(nil, nil, newMemStore())

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "scan.png",
		Kind:     models.KindImage,
		Data:     []byte{0x89, 0x50, 0x4e, 0x47},
	}
	units, err := d.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if units != nil {
		t.Errorf("got %d units without an OCR engine, want none", len(units))
	}
}

func TestExtract_ImageWithOCR(t *testing.T) {
	d := NewDispatcher(&fakeOCR{text: "recognized text"}, nil, newMemStore())

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "scan.png",
		Kind:     models.KindImage,
		Data:     []byte{0x89, 0x50, 0x4e, 0x47},
	}
	units, err := d.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(units) != 1 || units[0].Text != "recognized text" {
		t.Errorf("units = %+v", units)
	}
}

func TestExtract_AudioWithoutTranscriberFails(t *testing.T) {
	d := NewDispatcher(nil, nil, newMemStore())

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "meeting.mp3",
		Kind:     models.KindAudio,
		Data:     []byte("audio bytes"),
	}
	_, err := d.Extract(context.Background(), doc)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestExtract_AudioTranscribed(t *testing.T) {
	d := NewDispatcher(nil, &fakeTranscriber{text: "meeting notes"}, newMemStore())

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "meeting.mp3",
		Kind:     models.KindAudio,
		Data:     []byte("audio bytes"),
	}
	units, err := d.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(units) != 1 || units[0].Text != "meeting notes" {
		t.Errorf("units = %+v", units)
	}
}

func TestExtract_TranscriberErrorPropagates(t *testing.T) {
	wantErr := errors.New("rate limited")
	d := NewDispatcher(nil, &fakeTranscriber{err: wantErr}, newMemStore())

	doc := &models.SourceDocument{
		ID:       "doc-1",
		Filename: "meeting.wav",
		Kind:     models.KindAudio,
		Data:     []byte("audio bytes"),
	}
	if _, err := d.Extract(context.Background(), doc); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
