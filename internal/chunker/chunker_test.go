package chunker

import (
	"strings"
	"testing"
)

func TestSplit_Empty(t *testing.T) {
	t.Parallel()
	c := New(100, 20)
	if got := c.Split("src", "", 0); got != nil {
		t.Errorf("expected nil for empty text, got %d chunks", len(got))
	}
	if got := c.Split("src", "   \n\t ", 0); got != nil {
		t.Errorf("expected nil for whitespace text, got %d chunks", len(got))
	}
}

func TestSplit_SingleWindow(t *testing.T) {
	t.Parallel()
	c := New(100, 20)
	got := c.Split("src", "short text", 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0].Text != "short text" || got[0].Ordinal != 0 {
		t.Errorf("unexpected chunk: %+v", got[0])
	}
}

func TestSplit_OverlapAndCoverage(t *testing.T) {
	t.Parallel()
	c := New(10, 4)
	text := strings.Repeat("abcdefghij", 3) // 30 runes
	got := c.Split("src", text, 1)

	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		prev := []rune(got[i-1].Text)
		cur := []rune(got[i].Text)
		tail := string(prev[len(prev)-4:])
		head := string(cur[:4])
		if tail != head {
			t.Errorf("chunk %d: overlap mismatch, tail %q vs head %q", i, tail, head)
		}
		if got[i].Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, got[i].Ordinal)
		}
	}

	// Reassembling chunks minus the overlap must reproduce the input.
	var b strings.Builder
	b.WriteString(got[0].Text)
	for _, ch := range got[1:] {
		b.WriteString(string([]rune(ch.Text)[4:]))
	}
	if b.String() != text {
		t.Error("chunks do not cover input gaplessly")
	}
}

func TestSplit_SurroundingWhitespacePreserved(t *testing.T) {
	t.Parallel()
	c := New(10, 4)
	text := "  " + strings.Repeat("abcdefghij", 2) + "\n"
	got := c.Split("src", text, 0)

	var b strings.Builder
	b.WriteString(got[0].Text)
	for _, ch := range got[1:] {
		b.WriteString(string([]rune(ch.Text)[4:]))
	}
	if b.String() != text {
		t.Errorf("reassembled %q, want the input unchanged %q", b.String(), text)
	}
}

func TestSplit_RemainderEmitted(t *testing.T) {
	t.Parallel()
	c := New(10, 2)
	text := strings.Repeat("x", 13)
	got := c.Split("src", text, 0)
	last := got[len(got)-1]
	if len([]rune(last.Text)) >= 10 {
		t.Errorf("expected short final chunk, got %d runes", len([]rune(last.Text)))
	}
	if !strings.HasSuffix(text, last.Text) {
		t.Error("final chunk is not the input's tail")
	}
}

func TestSplit_RuneSafe(t *testing.T) {
	t.Parallel()
	c := New(4, 1)
	text := strings.Repeat("héllö", 4)
	for _, ch := range c.Split("src", text, 0) {
		if strings.ContainsRune(ch.Text, '�') {
			t.Fatalf("chunk contains replacement rune: %q", ch.Text)
		}
	}
}

func TestSplit_DeterministicIDs(t *testing.T) {
	t.Parallel()
	c := New(10, 2)
	a := c.Split("doc-1", "some longer text that spans chunks", 2)
	b := c.Split("doc-1", "some longer text that spans chunks", 2)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("chunk %d: IDs differ across runs", i)
		}
	}
	other := c.Split("doc-2", "some longer text that spans chunks", 2)
	if a[0].ID == other[0].ID {
		t.Error("different sources yield identical chunk IDs")
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	c := New(0, -1)
	if c.size != DefaultSize || c.overlap != DefaultOverlap {
		t.Errorf("got size=%d overlap=%d", c.size, c.overlap)
	}
	// Overlap >= size must be corrected, not accepted.
	c = New(10, 10)
	if c.overlap >= c.size {
		t.Errorf("overlap %d not below size %d", c.overlap, c.size)
	}
}
