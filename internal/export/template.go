package export

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
)

// Template turns recognized text into document markup.
type Template interface {
	Name() string
	Wrap(text string) (string, error)
}

// PreTemplate keeps the text verbatim inside a preformatted block.
type PreTemplate struct{}

func (PreTemplate) Name() string { return "pre" }

func (PreTemplate) Wrap(text string) (string, error) {
	return "<html><body><pre>" + html.EscapeString(text) + "</pre></body></html>", nil
}

// MarkdownTemplate renders the text as Markdown into the document body.
type MarkdownTemplate struct {
	md goldmark.Markdown
}

func NewMarkdownTemplate() *MarkdownTemplate {
	return &MarkdownTemplate{md: goldmark.New()}
}

func (*MarkdownTemplate) Name() string { return "markdown" }

func (t *MarkdownTemplate) Wrap(text string) (string, error) {
	var body bytes.Buffer
	if err := t.md.Convert([]byte(text), &body); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<html><body>" + body.String() + "</body></html>", nil
}

// TemplateFor maps a configured template name; unknown names fall back to PreTemplate.
func TemplateFor(name string) Template {
	if name == "markdown" {
		return NewMarkdownTemplate()
	}
	return PreTemplate{}
}
