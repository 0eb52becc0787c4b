package scriptgen

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText extracts the prose of a markdown document so it can be used
// as generation input. Code and HTML are dropped; blocks are separated by
// blank lines.
func PlainText(markdown string) string {
	reader := text.NewReader([]byte(markdown))
	doc := goldmark.New().Parser().Parse(reader)

	var blocks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			blocks = append(blocks, s)
		}
		cur.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				cur.Write(n.Segment.Value(reader.Source()))
				if n.SoftLineBreak() || n.HardLineBreak() {
					cur.WriteByte(' ')
				}
			}
		case *ast.CodeSpan:
			if entering {
				for c := n.FirstChild(); c != nil; c = c.NextSibling() {
					if t, ok := c.(*ast.Text); ok {
						cur.Write(t.Segment.Value(reader.Source()))
					}
				}
				return ast.WalkSkipChildren, nil
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	flush()

	return strings.Join(blocks, "\n\n")
}
