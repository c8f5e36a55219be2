package web

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in messages is not rendered (goldmark's default).
var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts chat content to HTML. On a render failure the
// escaped text is returned.
func RenderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "<p>" + html.EscapeString(src) + "</p>"
	}
	return buf.String()
}
