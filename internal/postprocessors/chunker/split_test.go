package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func sectionText(words int) string {
	var b strings.Builder
	b.WriteString("Section 1 covers access control.")
	n := 5
	for i := 0; n < words/2; i++ {
		fmt.Fprintf(&b, " Staff badge access is logged daily item%d.", i)
		n += 6
	}
	b.WriteString("\n\nSection 2 covers data retention.")
	n += 5
	for i := 0; n < words; i++ {
		fmt.Fprintf(&b, " Records older than seven years get purged%d.", i)
		n += 7
	}
	return b.String()
}

func TestSplit_Empty(t *testing.T) {
	if got := Split("", 100, 5); len(got) != 0 {
		t.Errorf("expected no chunks, got %v", got)
	}
	if got := Split("\n\n \n\n", 100, 5); len(got) != 0 {
		t.Errorf("expected no chunks for whitespace, got %v", got)
	}
}

func TestSplit_SmallTextSingleChunk(t *testing.T) {
	got := Split("  A short policy.  ", 100, 5)
	if !reflect.DeepEqual(got, []string{"A short policy."}) {
		t.Errorf("unexpected chunks: %q", got)
	}
}

func TestSplit_ParagraphsAccumulate(t *testing.T) {
	text := "Alpha one.\n\nBeta two.\n\nGamma three."
	got := Split(text, 100, 0)
	if len(got) != 1 {
		t.Fatalf("expected paragraphs to share a chunk, got %q", got)
	}
	if got[0] != "Alpha one.\n\nBeta two.\n\nGamma three." {
		t.Errorf("unexpected chunk: %q", got[0])
	}
}

func TestSplit_ParagraphBoundaryWithOverlap(t *testing.T) {
	text := "alpha beta gamma delta\n\nepsilon zeta eta theta"
	got := Split(text, 40, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %q", got)
	}
	if got[0] != "alpha beta gamma delta" {
		t.Errorf("unexpected first chunk: %q", got[0])
	}
	if !strings.HasPrefix(got[1], "gamma delta") {
		t.Errorf("expected overlap seed in second chunk, got %q", got[1])
	}
	if !strings.HasSuffix(got[1], "epsilon zeta eta theta") {
		t.Errorf("expected paragraph in second chunk, got %q", got[1])
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	text := "The first sentence is here. The second sentence follows it closely and runs long."
	got := Split(text, 50, 0)
	if len(got) < 2 {
		t.Fatalf("expected a split, got %q", got)
	}
	if got[0] != "The first sentence is here." {
		t.Errorf("expected cut at sentence end, got %q", got[0])
	}
}

func TestSplit_HardCut(t *testing.T) {
	text := strings.Repeat("x", 95)
	got := Split(text, 40, 0)
	want := []string{strings.Repeat("x", 40), strings.Repeat("x", 40), strings.Repeat("x", 15)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected hard cuts: %q", got)
	}
}

func TestSplit_HardCutRespectsRunes(t *testing.T) {
	text := strings.Repeat("é", 50)
	for _, chunk := range Split(text, 15, 0) {
		if !utf8.ValidString(chunk) {
			t.Fatalf("chunk split a rune: %q", chunk)
		}
		if len(chunk) > 15 {
			t.Errorf("chunk exceeds size: %d", len(chunk))
		}
	}
}

func TestSplit_ChunksStayWithinSize(t *testing.T) {
	text := sectionText(300)
	for _, size := range []int{60, 120, 250} {
		for _, chunk := range Split(text, size, 20) {
			if len(chunk) > size {
				t.Errorf("size %d: chunk of %d bytes: %q", size, len(chunk), chunk)
			}
			if chunk != strings.TrimSpace(chunk) || chunk == "" {
				t.Errorf("size %d: untrimmed or empty chunk %q", size, chunk)
			}
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := sectionText(300)
	first := Split(text, 250, 20)
	for i := 0; i < 5; i++ {
		if got := Split(text, 250, 20); !reflect.DeepEqual(first, got) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestSplit_SectionDocument(t *testing.T) {
	text := sectionText(300)
	got := Split(text, 250, 20)
	if len(got) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(got))
	}
	if !strings.Contains(got[0], "Section 1") {
		t.Errorf("first chunk should contain Section 1: %q", got[0])
	}
	found := false
	for _, c := range got {
		if strings.Contains(c, "Section 2") {
			found = true
		}
	}
	if !found {
		t.Error("no chunk contains Section 2")
	}
}

func TestSplit_TerminatesWithLargeOverlap(t *testing.T) {
	text := strings.Repeat("word ", 400)
	got := Split(text, 30, 1000)
	if len(got) == 0 {
		t.Fatal("expected chunks")
	}
	for _, c := range got {
		if len(c) > 30 {
			t.Errorf("chunk exceeds size: %q", c)
		}
	}
}

func TestOverlapTail(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		n, max   int
		expected string
	}{
		{"last words", "a bb ccc dddd", 2, 100, "ccc dddd"},
		{"zero words", "a bb", 0, 100, ""},
		{"byte cap", "a bb ccc dddd", 3, 7, "dddd"},
		{"more words than available", "a bb", 10, 100, "a bb"},
		{"no budget", "a bb", 2, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overlapTail(tt.s, tt.n, tt.max); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
