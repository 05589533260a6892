package render

import (
	"github.com/aymerick/raymond"

	"github.com/rubyroobs/rubyshd/internal/model"
)

// registerDecorators attaches the decorator set (spec.md §4.6) to tpl,
// a per-render clone of a compiled page template. Each decorator is an
// ordinary raymond helper under its rewritten `__decorator_*` name
// (see rewriteDecorators) that returns the empty string and mutates
// either ctx (for `*set`) or acc (for the response-metadata
// decorators). Scoping them to tpl rather than registering them
// globally via raymond.RegisterHelper keeps concurrent renders of the
// same cached template from racing on each other's accumulator.
func registerDecorators(tpl *raymond.Template, ctx map[string]interface{}, acc *Accumulator) {
	tpl.RegisterHelper("__decorator_set", func(key string, value interface{}) string {
		if !reservedKeys[key] {
			ctx[key] = value
		}
		return ""
	})
	tpl.RegisterHelper("__decorator_status", func(slug string) string {
		s := model.Status(slug)
		if s.Valid() {
			acc.SetStatus(s)
		}
		return ""
	})
	tpl.RegisterHelper("__decorator_media-type", func(mediaType string) string {
		acc.SetMediaType(mediaType)
		return ""
	})
	tpl.RegisterHelper("__decorator_temporary-redirect", func(url string) string {
		acc.SetRedirect(model.RedirectTemporary, url)
		return ""
	})
	tpl.RegisterHelper("__decorator_permanent-redirect", func(url string) string {
		acc.SetRedirect(model.RedirectPermanent, url)
		return ""
	})
}
