package markdown

import (
	"strings"

	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
)

// ToGemtext converts Markdown source to Gemtext, returning any front
// matter found at the top of the document.
//
// Headings become "#"/"##"/"###" lines (levels beyond 3 collapse to
// "###"). Links inside list items become "=>" lines in place of the
// bullet, per the reference stylesheet rule `li > p > a:before {
// content: "=> "; }`. Inline links outside list items are rendered as
// their surrounding text, with their own "=>" lines grouped
// immediately after the paragraph they appeared in. Fenced and
// indented code blocks become preformatted blocks delimited by
// "```".
func ToGemtext(source []byte) (gemtext []byte, frontMatter map[string]interface{}, err error) {
	md := newEngine()
	ctx := parser.NewContext()
	doc := md.Parser().Parse(newReader(source), parser.WithContext(ctx))

	var lines []Line
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		lines = append(lines, renderBlock(n, source, false)...)
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return []byte(b.String()), meta.Get(ctx), nil
}

func renderBlock(n ast.Node, source []byte, inListItem bool) []Line {
	switch v := n.(type) {
	case *ast.Heading:
		text := inlineText(v, source)
		switch v.Level {
		case 1:
			return []Line{LineHeading1(text)}
		case 2:
			return []Line{LineHeading2(text)}
		default:
			return []Line{LineHeading3(text)}
		}
	case *ast.Paragraph:
		return renderParagraph(v, source, inListItem)
	case *ast.List:
		var out []Line
		for item := v.FirstChild(); item != nil; item = item.NextSibling() {
			out = append(out, renderListItem(item, source)...)
		}
		return out
	case *ast.CodeBlock:
		return renderCodeBlock(v, source, "")
	case *ast.FencedCodeBlock:
		lang := string(v.Language(source))
		return renderCodeBlock(v, source, lang)
	case *ast.Blockquote:
		var out []Line
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			for _, l := range renderBlock(c, source, inListItem) {
				out = append(out, LineText("> "+l.String()))
			}
		}
		return out
	default:
		return nil
	}
}

func renderParagraph(p ast.Node, source []byte, inListItem bool) []Line {
	links := collectLinks(p, source)

	// A paragraph that is a single bare link (the common case inside a
	// list item, per the stylesheet's li > p > a:before rule) renders
	// as just that link line, with no separate text line.
	if inListItem && len(links) == 1 && strings.TrimSpace(inlineText(p, source)) == links[0].Name {
		return []Line{links[0]}
	}

	text := strings.TrimSpace(inlineText(p, source))
	var out []Line
	if text != "" {
		out = append(out, LineText(text))
	}
	// Links are grouped immediately after the paragraph they came
	// from, whether or not it is inside a list item.
	for _, l := range links {
		out = append(out, l)
	}
	return out
}

func renderListItem(item ast.Node, source []byte) []Line {
	var out []Line
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		// goldmark stores the paragraphs of a tight list's items as
		// TextBlock nodes, so both kinds are treated as paragraphs here.
		switch c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			rendered := renderParagraph(c, source, true)
			// A plain-text list item (no link) keeps its bullet marker.
			if len(rendered) == 1 {
				if t, ok := rendered[0].(LineText); ok {
					out = append(out, LineListItem(string(t)))
					continue
				}
			}
			out = append(out, rendered...)
			continue
		}
		out = append(out, renderBlock(c, source, true)...)
	}
	return out
}

func renderCodeBlock(n ast.Node, source []byte, lang string) []Line {
	out := []Line{LinePreformattingToggle(lang)}
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, LinePreformattedText(strings.TrimRight(string(seg.Value(source)), "\n")))
	}
	out = append(out, LinePreformattingToggle(""))
	return out
}

// inlineText concatenates the plain-text content of n's inline
// children, including the label text of any links, but not their
// destinations.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.AutoLink:
			b.Write(v.URL(source))
		default:
			b.WriteString(inlineText(v, source))
		}
	}
	return b.String()
}

// collectLinks returns every link found within n, in document order.
func collectLinks(n ast.Node, source []byte) []LineLink {
	var links []LineLink
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if link, ok := c.(*ast.Link); ok {
			links = append(links, LineLink{URL: string(link.Destination), Name: inlineText(link, source)})
			continue
		}
		if auto, ok := c.(*ast.AutoLink); ok {
			u := string(auto.URL(source))
			links = append(links, LineLink{URL: u})
			continue
		}
		links = append(links, collectLinks(c, source)...)
	}
	return links
}
