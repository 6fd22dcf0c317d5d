package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/support.txt
	supportRaw string

	//go:embed template/extractor.txt
	extractorRaw string

	//go:embed template/intent.txt
	intentRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Support   string
	Extractor string
	Intent    string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Support:   strings.TrimSpace(supportRaw),
		Extractor: strings.TrimSpace(extractorRaw),
		Intent:    strings.TrimSpace(intentRaw),
	}
}
