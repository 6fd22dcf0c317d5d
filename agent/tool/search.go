package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

const ToolFAQSearch = "faq_search"

// NoResultsMessage is the canonical empty-search outcome. The support agent
// keys its fallback behavior off this value.
const NoResultsMessage = "No relevant passages found in the FAQ knowledge base."

// DeclareFAQSearch registers the document-search capability scoped to the
// uploaded FAQ corpus.
func DeclareFAQSearch(r *Registry, index contractx.SearchIndex) error {
	if r == nil || index == nil {
		return errors.New("registry and search index are required")
	}

	return r.Declare(Declaration{
		Name: ToolFAQSearch,
		Desc: "Searches the life insurance FAQ knowledge base and returns the most relevant passages.",
		Params: map[string]Param{
			"query": {Type: ParamString, Desc: "The customer's question, as asked", Required: true},
		},
		Handler: faqSearchHandler(index),
	})
}

func faqSearchHandler(index contractx.SearchIndex) Handler {
	return func(ctx context.Context, args map[string]any) contractx.ToolOutcome {
		query, _ := StringArg(args, "query")
		if query == "" {
			return contractx.Errf(contractx.FailInvalidArgs, "query is required")
		}

		snippets, err := index.Search(ctx, query)
		if err != nil {
			return contractx.Errf(contractx.FailUnavailable, "FAQ search failed. %v", err)
		}
		if len(snippets) == 0 {
			return contractx.Ok(NoResultsMessage)
		}

		var b strings.Builder
		for i, s := range snippets {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "[%d] %s", i+1, strings.TrimSpace(s.Text))
		}
		return contractx.Ok(b.String())
	}
}
