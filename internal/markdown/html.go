// Package markdown implements C9: converting Markdown source to HTML
// (CommonMark, via goldmark) or to Gemtext (a bespoke projection over
// goldmark's AST — no ecosystem library performs that conversion).
// Front matter, if present, is stripped and returned separately so the
// pipeline can expose it as top-level template context keys before the
// second Handlebars pass (spec.md §4.7).
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

func newEngine() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(meta.Meta))
}

// ToHTML converts Markdown source to HTML, returning any front matter
// found at the top of the document.
func ToHTML(source []byte) (html []byte, frontMatter map[string]interface{}, err error) {
	md := newEngine()
	ctx := parser.NewContext()
	var buf bytes.Buffer
	if err := md.Convert(source, &buf, parser.WithContext(ctx)); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), meta.Get(ctx), nil
}

// newReader is a small helper shared with gemtext.go.
func newReader(source []byte) text.Reader {
	return text.NewReader(source)
}
