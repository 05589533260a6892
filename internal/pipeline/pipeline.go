// Package pipeline implements C10: threading a parsed model.Request
// through the resolver (C7), the template/Markdown engines (C8/C9),
// and the rendered-file cache, producing a sealed model.Response ready
// for a wire encoder (C11). spec.md §4.8 numbers the six steps this
// package's Handle method follows.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rubyroobs/rubyshd/internal/cache"
	"github.com/rubyroobs/rubyshd/internal/config"
	"github.com/rubyroobs/rubyshd/internal/markdown"
	"github.com/rubyroobs/rubyshd/internal/model"
	"github.com/rubyroobs/rubyshd/internal/render"
	"github.com/rubyroobs/rubyshd/internal/resolver"
)

// Pipeline holds the process-lifetime collaborators a single Handle
// call threads a Request through: the public file root, the compiled
// template/data registry, and the rendered-file cache.
type Pipeline struct {
	root   string
	engine *render.Engine
	cache  *cache.Cache
}

// New returns a Pipeline serving files under root.
func New(root string, engine *render.Engine, fileCache *cache.Cache) *Pipeline {
	return &Pipeline{root: root, engine: engine, cache: fileCache}
}

// Handle resolves and renders req, always returning a sealed Response
// — resolution or rendering failures are converted to an error
// Response rather than propagated, per spec.md §7's "inside the
// pipeline, any error becomes a Response" propagation policy.
func (p *Pipeline) Handle(req *model.Request) *model.Response {
	resp, err := p.resolveAndRender(req)
	if err != nil {
		return p.RenderError(req, statusForError(err))
	}
	return resp
}

func statusForError(err error) model.Status {
	if errors.Is(err, resolver.ErrNotFound) {
		return model.StatusNotFound
	}
	return model.StatusOtherServerError
}

func (p *Pipeline) resolveAndRender(req *model.Request) (*model.Response, error) {
	res, err := resolver.Resolve(p.root, req.Path, req.Protocol)
	if err != nil {
		return nil, err
	}

	if res.Ext == "" {
		return p.serveStatic(req, res)
	}
	return p.renderTemplated(req, res)
}

// serveStatic implements steps 2-6 for a non-templated match: read
// once, guess a media type, cache-control the result, and cache the
// sealed Response by (absolute path, protocol) for the life of the
// process — static content never depends on per-request context, so
// every request for the same file gets the identical cached Response.
func (p *Pipeline) serveStatic(req *model.Request, res *resolver.Result) (*model.Response, error) {
	key := cache.Key{AbsolutePath: res.AbsolutePath, Protocol: req.Protocol}
	return p.cache.GetOrCompute(key, func() (*model.Response, error) {
		body, err := os.ReadFile(res.AbsolutePath)
		if err != nil {
			return nil, fmt.Errorf("pipeline: reading %s: %w", res.AbsolutePath, err)
		}

		resp := &model.Response{
			Status:    model.StatusSuccess,
			MediaType: mediaTypeFor(res.AbsolutePath),
			Body:      body,
		}
		if req.Protocol == model.ProtocolHTTPS {
			age := config.CacheableMaxAgeSeconds
			resp.CacheMaxAge = &age
		}
		return resp.Seal(), nil
	})
}

// renderTemplated implements steps 2-6 for a `.hbs`/`.md.hbs` match.
// Templated responses are never cached: they are built fresh from
// this request's context every time (spec.md §4.8).
func (p *Pipeline) renderTemplated(req *model.Request, res *resolver.Result) (*model.Response, error) {
	source, err := os.ReadFile(res.AbsolutePath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %s: %w", res.AbsolutePath, err)
	}

	tpl, err := p.engine.CompilePage(res.AbsolutePath, source)
	if err != nil {
		return nil, err
	}

	ctx := render.BuildContext(req, p.engine.Data(), p.engine.OSPlatform())
	acc := render.NewAccumulator()
	out, err := p.engine.RenderInto(tpl, ctx, acc)
	if err != nil {
		return nil, err
	}

	resp := &model.Response{Status: model.StatusSuccess}

	if res.Ext == ".md.hbs" {
		if err := p.renderMarkdownPass(req, ctx, out, acc, resp); err != nil {
			return nil, err
		}
	} else {
		resp.MediaType = mediaTypeForTemplate(strings.TrimSuffix(res.AbsolutePath, ".hbs"), req.Protocol)
		resp.Body = []byte(out)
	}

	acc.Apply(resp)
	return resp.Seal(), nil
}

// renderMarkdownPass implements the two-pass `.md.hbs` composition:
// the outer Handlebars output (markup) is converted Markdown→(HTML|
// Gemtext), its front matter merged into the context, and the result
// run back through Handlebars so partials can be mixed into the
// rendered markup (spec.md §4.6/§4.7). Both passes accumulate into the
// same Accumulator, so a decorator in the second pass overrides one
// from the first (spec.md §9's last-call-wins ordering spans both
// passes of a `.md.hbs` render, not just the second).
func (p *Pipeline) renderMarkdownPass(req *model.Request, outerCtx map[string]interface{}, outerOutput string, acc *render.Accumulator, resp *model.Response) error {
	var converted []byte
	var frontMatter map[string]interface{}
	var err error

	if req.Protocol == model.ProtocolHTTPS {
		converted, frontMatter, err = markdown.ToHTML([]byte(outerOutput))
		resp.MediaType = "text/html; charset=utf-8"
	} else {
		converted, frontMatter, err = markdown.ToGemtext([]byte(outerOutput))
		resp.MediaType = "text/gemini; charset=utf-8"
	}
	if err != nil {
		return fmt.Errorf("pipeline: markdown conversion: %w", err)
	}

	innerCtx := render.MergeFrontMatter(outerCtx, frontMatter)
	out, err := p.engine.RenderInlineInto(string(converted), innerCtx, acc)
	if err != nil {
		return err
	}
	resp.Body = []byte(out)
	return nil
}

// RenderError builds the Response for a failed resolution/render, and
// is also called directly by the connection handler for requests that
// never made it into the pipeline at all (a malformed request line, an
// oversized header) — those only need a protocol and a best-effort
// Request to build error context from. Gemini has no body concept for
// errors (spec.md §7): only the status line is ever emitted, so
// RenderError skips straight to Seal for a Gemini request. HTTPS looks
// for a compiled errdoc first, falling back to a minimal hardcoded
// body.
func (p *Pipeline) RenderError(req *model.Request, status model.Status) *model.Response {
	resp := &model.Response{Status: status}
	if req.Protocol != model.ProtocolHTTPS {
		return resp.Seal()
	}

	if tpl, ok := p.engine.Errdoc(status); ok {
		ctx := render.BuildContext(req, p.engine.Data(), p.engine.OSPlatform())
		out, acc, err := p.engine.Render(tpl, ctx)
		if err == nil {
			resp.MediaType = "text/html; charset=utf-8"
			resp.Body = []byte(out)
			acc.Apply(resp)
			return resp.Seal()
		}
	}

	resp.MediaType = "text/plain; charset=utf-8"
	resp.Body = []byte(status.HTTPSReasonPhrase())
	return resp.Seal()
}
