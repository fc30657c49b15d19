package models

// DocumentKind classifies an upload by its file extension so the extraction
// dispatcher can pick a strategy.
type DocumentKind string

const (
	KindPlainText DocumentKind = "plain-text"
	KindPDF       DocumentKind = "pdf"
	KindDocx      DocumentKind = "docx"
	KindCSV       DocumentKind = "csv"
	KindImage     DocumentKind = "image"
	KindAudio     DocumentKind = "audio"
	KindHTML      DocumentKind = "html"
	KindUnknown   DocumentKind = "unknown"
)

// SourceDocument is one uploaded file. It lives only for the duration of the
// ingestion call that created it; the raw bytes are archived as-is and never
// persisted anywhere else.
type SourceDocument struct {
	ID       string
	Filename string
	Kind     DocumentKind
	Data     []byte
}

// ExtractedUnit is one block of normalized text produced from a source
// document. Text is always non-empty; empty extraction results are dropped
// before they reach the chunker.
type ExtractedUnit struct {
	SourceID      string
	Text          string
	Source        string // original filename
	ProcessedPath string // archive key of the flattened processed text, if archived
}

// Chunk is the retrieval unit: a bounded window of one extracted unit's text.
// Start and End are rune offsets into the unit's text.
type Chunk struct {
	SourceID string
	Seq      int
	Text     string
	Start    int
	End      int
}

// FailedDocument records why one document in a batch was not ingested.
type FailedDocument struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// IngestionReport is the outcome of one upload batch. IndexError is set when
// extraction succeeded for at least one document but the combined index write
// failed; those documents are then not counted as succeeded.
type IngestionReport struct {
	Succeeded  int              `json:"succeeded"`
	Failed     []FailedDocument `json:"failed,omitempty"`
	IndexError string           `json:"index_error,omitempty"`
}
