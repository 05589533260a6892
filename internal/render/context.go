package render

import (
	"regexp"

	"github.com/rubyroobs/rubyshd/internal/model"
)

// decoratorPattern rewrites Handlebars-decorator syntax (`{{*name ...}}`,
// a mustache expression whose path begins with `*`) into an ordinary
// helper call against a name raymond can register
// (`{{__decorator_name ...}}`). raymond has no native notion of
// Handlebars.js's `{{*name}}` decorator syntax, so the rewrite happens
// once, at template-load time, before the source is parsed.
var decoratorPattern = regexp.MustCompile(`\{\{(\s*)\*([A-Za-z][A-Za-z0-9-]*)`)

func rewriteDecorators(source string) string {
	return decoratorPattern.ReplaceAllString(source, `{{${1}__decorator_${2}`)
}

// reservedKeys are the top-level context keys spec.md §3 reserves;
// `*set` must never be allowed to shadow one of them.
var reservedKeys = map[string]bool{
	"peer_addr":         true,
	"path":              true,
	"common_name":       true,
	"protocol":          true,
	"is_authenticated":  true,
	"is_anonymous":      true,
	"is_https":          true,
	"is_gemini":         true,
	"os_platform":       true,
	"data":              true,
}

// BuildContext assembles the per-request template context tree from a
// Request, following the reserved top-level keys in spec.md §3. dataSet
// is the shared, read-only mapping from data-file basename to parsed
// JSON value, loaded once at startup.
func BuildContext(req *model.Request, dataSet map[string]interface{}, osPlatform string) map[string]interface{} {
	ctx := map[string]interface{}{
		"peer_addr":        req.PeerAddr.String(),
		"path":             req.Path,
		"protocol":         req.Protocol.String(),
		"is_authenticated": req.PeerIdentity.IsAuthenticated(),
		"is_anonymous":     req.PeerIdentity.IsAnonymous(),
		"is_https":         req.Protocol == model.ProtocolHTTPS,
		"is_gemini":        req.Protocol == model.ProtocolGemini,
		"os_platform":      osPlatform,
		"data":             dataSet,
	}
	if req.PeerIdentity.IsAuthenticated() {
		ctx["common_name"] = req.PeerIdentity.CommonName
	} else {
		// raymond renders a nil interface as an empty string, not as
		// the literal text a page expects for an anonymous peer.
		ctx["common_name"] = "anonymous"
	}
	return ctx
}

// MergeFrontMatter adds Markdown front-matter keys onto a context tree
// ahead of the second (post-Markdown) Handlebars pass, per spec.md
// §4.7. Front-matter keys never override a reserved key.
func MergeFrontMatter(ctx map[string]interface{}, frontMatter map[string]interface{}) map[string]interface{} {
	for k, v := range frontMatter {
		if reservedKeys[k] {
			continue
		}
		ctx[k] = v
	}
	return ctx
}
