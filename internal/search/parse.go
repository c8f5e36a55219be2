package search

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (r Result) String() string {
	var sb strings.Builder
	sb.WriteString(r.Title)
	if r.URL != "" {
		sb.WriteString("\n   ")
		sb.WriteString(r.URL)
	}
	if r.Snippet != "" {
		sb.WriteString("\n   ")
		sb.WriteString(r.Snippet)
	}
	return sb.String()
}

// ParseResults extracts results from a DuckDuckGo HTML result page.
// Result links carry class "result__a"; the following "result__snippet"
// element belongs to the most recent link. Ads are skipped.
func ParseResults(r io.Reader) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []Result
	var walk func(n *html.Node, inAd bool)
	walk = func(n *html.Node, inAd bool) {
		if n.Type == html.ElementNode {
			class := attr(n, "class")
			if hasClass(class, "result--ad") {
				inAd = true
			}
			switch {
			case inAd:
			case hasClass(class, "result__a"):
				results = append(results, Result{
					Title: collapse(textOf(n)),
					URL:   unwrapRedirect(attr(n, "href")),
				})
				return
			case hasClass(class, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = collapse(textOf(n))
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inAd)
		}
	}
	walk(doc, false)

	// Drop entries without a usable title.
	out := results[:0]
	for _, res := range results {
		if res.Title != "" {
			out = append(out, res)
		}
	}
	return out, nil
}

// Format renders results as the numbered text block handed to the model.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No good search result found"
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, r.String())
	}
	return sb.String()
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<escaped> into the target URL.
func unwrapRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
