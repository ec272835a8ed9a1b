package ingest

import "strings"

// Chunking defaults, sized for short embedding inputs.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter cuts text into overlapping chunks, preferring paragraph and
// sentence boundaries over hard cuts.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a splitter. Non-positive values use the defaults;
// overlap is clamped below chunk size.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// separators in preference order, coarsest first.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split returns the chunks of text. Empty and whitespace-only chunks are
// dropped; a text within the chunk size comes back as a single chunk.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+s.chunkSize, len(runes))

		// Prefer a natural boundary in the second half of the window.
		if end < len(runes) {
			window := string(runes[start:end])
			for _, sep := range separators {
				if idx := strings.LastIndex(window, sep); idx > len(window)/2 {
					end = start + len([]rune(window[:idx+len(sep)]))
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
		start = max(end-s.overlap, start+1)
	}

	return chunks
}
