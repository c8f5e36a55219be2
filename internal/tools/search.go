package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rainagent/rain/internal/search"
)

// Searcher runs a web search. *search.Client implements it.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// WebSearchTool answers questions about current events and facts from the web.
type WebSearchTool struct {
	searcher Searcher
}

// NewWebSearchTool wraps a search client as a tool.
func NewWebSearchTool(s Searcher) *WebSearchTool {
	return &WebSearchTool{searcher: s}
}

func (t *WebSearchTool) Def() ToolDef {
	return ToolDef{
		Name:        "web_search",
		Description: "A wrapper around DuckDuckGo Search. Useful for when you need to answer questions about current events. Input should be a search query.",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]ToolProperty{
				"query": {
					Type:        "string",
					Description: "search query to look up",
				},
			},
			Required: []string{"query"},
		},
	}
}

type webSearchArgs struct {
	Query string `json:"query"`
}

func (t *WebSearchTool) Call(ctx context.Context, argsJSON string) string {
	var args webSearchArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("error: invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "error: query is required"
	}

	results, err := t.searcher.Search(ctx, args.Query)
	if err != nil {
		return fmt.Sprintf("error: search failed: %v", err)
	}
	return search.Format(results)
}
