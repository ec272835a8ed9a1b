package ingest

import (
	"strings"
	"testing"
)

func TestSplitShortText(t *testing.T) {
	s := NewSplitter(1000, 200)

	got := s.Split("We pump septic tanks on weekdays and weekends.")
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(1000, 200)

	if got := s.Split("   \n\n  "); got != nil {
		t.Errorf("whitespace text produced %d chunks", len(got))
	}
}

func TestSplitLongTextOverlaps(t *testing.T) {
	s := NewSplitter(100, 20)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Sentence about septic tank maintenance. ")
	}

	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Errorf("chunk %d has %d runes, budget 100", i, len([]rune(c)))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}

	// Consecutive chunks share text from the overlap region.
	first, second := chunks[0], chunks[1]
	tail := first[len(first)-10:]
	if !strings.Contains(second, strings.TrimSpace(tail)) {
		t.Errorf("no overlap between %q and %q", first, second)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(120, 10)

	text := strings.Repeat("a", 80) + "\n\n" + strings.Repeat("b", 80)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if strings.Contains(chunks[0], "b") {
		t.Errorf("first chunk crossed the paragraph boundary: %q", chunks[0])
	}
}

func TestNewSplitterClampsOverlap(t *testing.T) {
	s := NewSplitter(100, 500)
	if s.overlap >= s.chunkSize {
		t.Errorf("overlap %d not clamped below chunk size %d", s.overlap, s.chunkSize)
	}

	s = NewSplitter(0, -1)
	if s.chunkSize != DefaultChunkSize || s.overlap != DefaultChunkOverlap {
		t.Errorf("defaults = (%d, %d)", s.chunkSize, s.overlap)
	}
}
