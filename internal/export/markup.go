package export

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockAtoms end a line in the laid out text.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Hr: true, atom.Ul: true, atom.Ol: true,
}

// markupLines parses markup and returns the visible text split into lines.
// Text inside <pre> keeps its line breaks and spacing; elsewhere runs of
// whitespace collapse and block elements break lines.
func markupLines(markup string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	var b strings.Builder
	space := false
	var walk func(n *html.Node, pre bool)
	walk = func(n *html.Node, pre bool) {
		switch n.Type {
		case html.TextNode:
			if pre {
				b.WriteString(n.Data)
				space = false
				return
			}
			words := strings.Fields(n.Data)
			if len(words) == 0 {
				space = space || n.Data != ""
				return
			}
			if last := lastByte(&b); (space || isSpace(n.Data[0])) && last != 0 && last != '\n' {
				b.WriteByte(' ')
			}
			b.WriteString(strings.Join(words, " "))
			space = isSpace(n.Data[len(n.Data)-1])
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Pre:
				pre = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, pre)
		}
		if n.Type == html.ElementNode && (blockAtoms[n.DataAtom] || n.DataAtom == atom.Pre) {
			if last := lastByte(&b); last != 0 && last != '\n' {
				b.WriteByte('\n')
			}
			space = false
		}
	}
	walk(doc, false)

	text := strings.TrimRight(b.String(), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func lastByte(b *strings.Builder) byte {
	s := b.String()
	if s == "" {
		return 0
	}
	return s[len(s)-1]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
