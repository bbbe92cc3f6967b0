package extract

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	titleClasses   = []string{"article-title", "entry-title", "post-title"}
	contentClasses = []string{"article-content", "entry-content", "post-content"}

	// Elements that never hold article text.
	boilerplate = map[atom.Atom]bool{
		atom.Script:   true,
		atom.Style:    true,
		atom.Nav:      true,
		atom.Header:   true,
		atom.Footer:   true,
		atom.Aside:    true,
		atom.Form:     true,
		atom.Noscript: true,
		atom.Iframe:   true,
		atom.Svg:      true,
	}

	inline = map[atom.Atom]bool{
		atom.A: true, atom.Abbr: true, atom.B: true, atom.Cite: true,
		atom.Code: true, atom.Em: true, atom.I: true, atom.Mark: true,
		atom.Q: true, atom.S: true, atom.Small: true, atom.Span: true,
		atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.Time: true,
		atom.U: true,
	}

	blocks = map[atom.Atom]bool{
		atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true,
		atom.H4: true, atom.H5: true, atom.H6: true, atom.Li: true,
		atom.Blockquote: true, atom.Pre: true, atom.Dd: true, atom.Dt: true,
	}
)

// HTML extracts the main article of a web page.
func (e *Extractor) HTML(r io.Reader, source string) (Document, error) {
	root, err := html.Parse(io.LimitReader(r, e.maxBytes))
	if err != nil {
		return Document{}, &ExtractionError{Kind: KindURL, Source: source, Err: fmt.Errorf("parsing html: %w", err)}
	}

	title, text := article(root)
	return finish(Document{Text: text, Title: title, Kind: KindURL}, source)
}

// article picks a title and the paragraph text of the content area.
func article(root *html.Node) (title, text string) {
	title = pageTitle(root)

	content := findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Article })
	if content == nil {
		content = findFirst(root, func(n *html.Node) bool {
			return n.DataAtom == atom.Div && hasClass(n, contentClasses...)
		})
	}
	if content == nil {
		content = findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Main })
	}
	if content == nil {
		content = findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	}
	if content == nil {
		return title, ""
	}

	prune(content)
	var paras []string
	walk(content, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.P {
			if t := textOf(n); t != "" {
				paras = append(paras, t)
			}
			return false
		}
		return true
	})
	if len(paras) == 0 {
		paras = blockTexts(content)
	}
	return title, strings.Join(paras, "\n\n")
}

func pageTitle(root *html.Node) string {
	candidates := []func() string{
		func() string {
			n := findFirst(root, func(n *html.Node) bool {
				return n.DataAtom == atom.H1 && hasClass(n, titleClasses...)
			})
			return textOf(n)
		},
		func() string {
			n := findFirst(root, func(n *html.Node) bool {
				return n.DataAtom == atom.Meta && attr(n, "property") == "og:title"
			})
			return attr(n, "content")
		},
		func() string {
			return textOf(findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Title }))
		},
		func() string {
			return textOf(findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.H1 }))
		},
	}
	for _, candidate := range candidates {
		if t := strings.TrimSpace(candidate()); t != "" {
			return t
		}
	}
	return ""
}

// blockTexts collects the text of every block element, falling back to all
// text under n when there are none.
func blockTexts(n *html.Node) []string {
	var out []string
	walk(n, func(c *html.Node) bool {
		if c.Type == html.ElementNode && blocks[c.DataAtom] {
			if t := textOf(c); t != "" {
				out = append(out, t)
			}
			return false
		}
		return true
	})
	if len(out) == 0 {
		if t := textOf(n); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// walk visits n and its descendants depth first. Returning false skips the
// node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// prune removes boilerplate elements below n.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && boilerplate[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

// textOf returns the text under n with whitespace collapsed.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style):
			return false
		case c.Type == html.ElementNode && !inline[c.DataAtom]:
			b.WriteByte(' ')
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, classes ...string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		for _, want := range classes {
			if c == want {
				return true
			}
		}
	}
	return false
}
