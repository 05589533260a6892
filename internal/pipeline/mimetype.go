package pipeline

import (
	"mime"
	"path/filepath"

	"github.com/rubyroobs/rubyshd/internal/model"
)

// extraMediaTypes covers extensions spec.md's protocols care about
// that a minimal container's mime.type database may not carry
// (Gemini's text/gemini has no registered default, and Markdown's
// well-known type is worth pinning rather than leaving to the host).
var extraMediaTypes = map[string]string{
	".gmi": "text/gemini; charset=utf-8",
	".md":  "text/markdown; charset=utf-8",
}

// mediaTypeFor guesses the media type for path from its extension,
// falling back to application/octet-stream when nothing matches
// (model.Response.Seal does the same fallback, but doing it here too
// keeps cache entries fully populated).
func mediaTypeFor(path string) string {
	ext := filepath.Ext(path)
	if mt, ok := extraMediaTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// mediaTypeForTemplate guesses the media type for a rendered `.hbs`
// template (not `.md.hbs`, which is driven by protocol directly in
// renderMarkdownPass). base is the file's path with the trailing
// `.hbs` stripped: "page.html.hbs" guesses from ".html" same as any
// static file. A protocol-agnostic template with no extension of its
// own at all ("index.hbs") has nothing to guess from, so it defaults
// to the protocol's own markup type — the reading of spec.md's
// scenario 1/2 pair that lets the same bare index.hbs serve
// `Content-Type: text/html` over HTTPS and `text/gemini` over Gemini
// without requiring an explicit `*media-type` decorator in the
// template.
func mediaTypeForTemplate(base string, protocol model.Protocol) string {
	if filepath.Ext(base) == "" {
		if protocol == model.ProtocolGemini {
			return "text/gemini; charset=utf-8"
		}
		return "text/html; charset=utf-8"
	}
	return mediaTypeFor(base)
}
