package refine

import (
	"strings"
	"testing"
)

func TestSplit_SmallTextFitsOnePassage(t *testing.T) {
	parts := Split(strings.Repeat("word ", 50), 120)
	if len(parts) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(parts))
	}
	if !strings.Contains(parts[0], "word") {
		t.Errorf("expected passage to contain 'word', got %q", parts[0])
	}
}

func TestSplit_LargeTextRequiresSplitting(t *testing.T) {
	// ~900 words -> ~1200 tokens at 1.33 tokens/word.
	large := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)

	parts := Split(large, 120)
	if len(parts) < 2 {
		t.Fatalf("expected at least 2 passages, got %d", len(parts))
	}
	for i, p := range parts {
		if tokens := EstimateTokens(p); tokens > 120*2 {
			t.Errorf("passage %d: %d tokens exceeds 2x target", i, tokens)
		}
	}
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	a := strings.Repeat("alpha ", 60)
	b := strings.Repeat("beta ", 60)

	parts := Split(a+"\n\n"+b, 100)
	if len(parts) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(parts))
	}
	if strings.Contains(parts[0], "beta") || strings.Contains(parts[1], "alpha") {
		t.Errorf("paragraphs were mixed: %q / %q", parts[0], parts[1])
	}
}

func TestSplit_MergesShortParagraphs(t *testing.T) {
	parts := Split("One short line.\n\nAnother short line.", 120)
	if len(parts) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(parts))
	}
	if parts[0] != "One short line.\n\nAnother short line." {
		t.Errorf("unexpected passage %q", parts[0])
	}
}

func TestSplit_UnwrapsLines(t *testing.T) {
	parts := Split("A line that\nwraps onto the next.", 120)
	if len(parts) != 1 || parts[0] != "A line that wraps onto the next." {
		t.Errorf("unexpected passages %q", parts)
	}
}

func TestSplit_CoversAllWords(t *testing.T) {
	text := strings.Repeat("First sentence here. Second one follows! Does a third? ", 40)
	parts := Split(text, 30)
	got := strings.Fields(strings.Join(parts, " "))
	want := strings.Fields(text)
	if len(got) != len(want) {
		t.Fatalf("expected %d words, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	if parts := Split("  \n\n ", 120); len(parts) != 0 {
		t.Errorf("expected 0 passages, got %d", len(parts))
	}
}

func TestSplit_DefaultTargetFallback(t *testing.T) {
	parts := Split(strings.Repeat("word ", 50), 0)
	if len(parts) != 1 {
		t.Errorf("expected 1 passage with default target, got %d", len(parts))
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"one two three", 3},
		{strings.Repeat("w ", 100), 133},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
