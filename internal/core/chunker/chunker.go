package chunker

import (
	"github.com/davidemeka/ragserve/internal/models"
)

// boundarySearch is how far back (in runes) from a raw window cut we look
// for a natural break before giving up and cutting mid-word.
const boundarySearch = 100

// Chunker splits extracted text into overlapping fixed-size windows. Cuts
// prefer paragraph breaks, then sentence ends, then word boundaries within
// boundarySearch of the raw window edge. Output is deterministic for a given
// input and configuration.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks each unit's text independently; no chunk crosses a unit
// boundary. Offsets are rune offsets into the unit's text.
func (c *Chunker) Split(units []models.ExtractedUnit) []models.Chunk {
	var chunks []models.Chunk
	for _, u := range units {
		chunks = append(chunks, c.splitUnit(u)...)
	}
	return chunks
}

func (c *Chunker) splitUnit(u models.ExtractedUnit) []models.Chunk {
	runes := []rune(u.Text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []models.Chunk
	pos := 0
	seq := 0
	prevEnd := 0
	for pos < len(runes) {
		end := pos + c.size
		if end >= len(runes) {
			chunks = append(chunks, models.Chunk{
				SourceID: u.SourceID,
				Seq:      seq,
				Text:     string(runes[pos:]),
				Start:    pos,
				End:      len(runes),
			})
			break
		}

		cut := findCut(runes, pos, end)
		if cut <= prevEnd {
			// The only boundary in this window sits inside the previous
			// chunk; fall back to a hard cut so coverage keeps advancing.
			cut = end
		}
		prevEnd = cut
		chunks = append(chunks, models.Chunk{
			SourceID: u.SourceID,
			Seq:      seq,
			Text:     string(runes[pos:cut]),
			Start:    pos,
			End:      cut,
		})
		seq++

		next := cut - c.overlap
		if next <= pos {
			// Always make forward progress even with pathological overlap.
			next = pos + 1
		}
		pos = next
	}
	return chunks
}

// findCut picks the cut position for a window ending at end, searching
// backward for a paragraph break, a sentence end, then a word boundary.
// The returned position always satisfies pos < cut <= end.
func findCut(runes []rune, pos, end int) int {
	limit := end - boundarySearch
	if limit <= pos {
		limit = pos + 1
	}

	// Paragraph: cut right after "\n\n".
	for i := end - 1; i > limit; i-- {
		if runes[i-1] == '\n' && runes[i] == '\n' {
			return i + 1
		}
	}
	// Sentence: punctuation followed by whitespace, cut after the whitespace.
	for i := end - 1; i > limit; i-- {
		if isSpace(runes[i]) && isSentenceEnd(runes[i-1]) {
			return i + 1
		}
	}
	// Word: cut after the last space.
	for i := end - 1; i > limit; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
