package prompt

import (
	"strings"
	"testing"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	if set.Support == "" || set.Extractor == "" || set.Intent == "" {
		t.Fatalf("prompt set has empty entries: %+v", set)
	}
	if !strings.Contains(set.Support, "faq_search") {
		t.Fatal("support prompt does not mention the search tool")
	}
	for _, p := range []string{set.Support, set.Extractor, set.Intent} {
		if p != strings.TrimSpace(p) {
			t.Fatal("prompt not trimmed")
		}
	}
}
