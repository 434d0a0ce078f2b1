package reader

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultWidth is the wrap width used before the terminal size is known.
const DefaultWidth = 80

// Renderer turns article HTML into something displayable. The session never
// inspects the result.
type Renderer interface {
	Render(content string, width int) string
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(content string, width int) string

func (f RendererFunc) Render(content string, width int) string { return f(content, width) }

var articlePolicy = bluemonday.UGCPolicy()

// TextRenderer renders sanitized article HTML as wrapped plain-text
// paragraphs. Links keep their target in angle brackets, list items get a
// bullet and images collapse to their alt text.
type TextRenderer struct{}

func (TextRenderer) Render(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(articlePolicy.Sanitize(content)))
	if err != nil {
		return wrapText(content, width)
	}

	w := &textWriter{}
	w.walk(doc)
	w.flush()
	return wrapText(strings.Join(w.paras, "\n\n"), width)
}

type textWriter struct {
	paras []string
	cur   strings.Builder
}

func (w *textWriter) flush() {
	if p := strings.Join(strings.Fields(w.cur.String()), " "); p != "" {
		w.paras = append(w.paras, p)
	}
	w.cur.Reset()
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.cur.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		case atom.Br:
			w.flush()
			return
		case atom.Img:
			if alt := attr(n, "alt"); alt != "" {
				w.cur.WriteString(" [" + alt + "] ")
			}
			return
		case atom.Li:
			w.flush()
			w.cur.WriteString("• ")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				w.walk(c)
			}
			w.flush()
			return
		}
	}

	block := n.Type == html.ElementNode && isBlock(n.DataAtom)
	if block {
		w.flush()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		if href := attr(n, "href"); href != "" {
			w.cur.WriteString(" <" + href + ">")
		}
	}
	if block {
		w.flush()
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Blockquote, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Figure, atom.Figcaption, atom.Table, atom.Tr:
		return true
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// wrapText wraps text to width display cells, preserving paragraph breaks.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}

		var lines []string
		line := ""
		for _, word := range words {
			switch {
			case line == "":
				line = word
			case lipgloss.Width(line)+1+lipgloss.Width(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		lines = append(lines, line)
		out = append(out, strings.Join(lines, "\n"))
	}
	return strings.Join(out, "\n\n")
}
