package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTextShort(t *testing.T) {
	t.Parallel()
	got := splitText("привет", 10, "")
	if len(got) != 1 || got[0] != "привет" {
		t.Fatalf("splitText = %q, want one chunk", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("а", 30)
	s := line + "\n" + line + "\n" + line
	got := splitText(s, 70, "")
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2: %q", len(got), got)
	}
	if got[0] != line+"\n"+line {
		t.Fatalf("first chunk = %q", got[0])
	}
	if got[1] != line {
		t.Fatalf("second chunk = %q", got[1])
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("x", 250)
	for _, c := range splitText(s, 100, "") {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Fatalf("chunk has %d runes, want <= 100", n)
		}
	}
}

func TestSplitTextKeepsHTMLTags(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("x", 8) + "<b>bold</b>"
	got := splitText(s, 10, "HTML")
	if got[0] != strings.Repeat("x", 8) {
		t.Fatalf("first chunk = %q, want cut before the tag", got[0])
	}
	if !strings.HasPrefix(got[1], "<b>") {
		t.Fatalf("second chunk = %q, want tag start", got[1])
	}
}
