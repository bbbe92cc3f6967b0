package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// Markdown extracts the prose of a Markdown document. Code blocks, raw HTML
// and images are left out. The first top-level heading becomes the title.
func (e *Extractor) Markdown(src []byte, name string) (Document, error) {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var title string
	var blocks []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		case *ast.Heading:
			t := inlineText(n, src)
			if title == "" && n.Level == 1 {
				title = t
			}
			if t != "" {
				blocks = append(blocks, t)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			if t := inlineText(n, src); t != "" {
				blocks = append(blocks, t)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Document{}, &ExtractionError{Kind: KindMarkdown, Source: name, Err: err}
	}
	return finish(Document{Text: strings.Join(blocks, "\n\n"), Title: title, Kind: KindMarkdown}, name)
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	writeInline(n, src, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func writeInline(n ast.Node, src []byte, b *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.Label(src))
		case *ast.Image, *ast.RawHTML:
		default:
			writeInline(c, src, b)
		}
	}
}
