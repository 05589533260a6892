// Package render implements C8: the Handlebars-like template engine
// adapter. Pages and partials are Handlebars templates executed via
// github.com/aymerick/raymond; the decorator syntax spec.md §4.6 calls
// for (`{{*status ...}}`, `{{*set ...}}`, ...) is not native to raymond,
// so it is rewritten to ordinary helper calls at compile time and
// backed by a per-render Accumulator (see decorators.go).
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aymerick/raymond"

	"github.com/rubyroobs/rubyshd/internal/model"
)

// Engine owns the process-lifetime template/partial/data registry.
// Non-goal "hot-reload of templates" (spec.md §1) means a page, once
// compiled, is never recompiled even if the underlying file changes;
// Engine enforces that by caching every compiled page forever under
// its absolute path.
type Engine struct {
	osPlatform string

	mu    sync.RWMutex
	pages map[string]*raymond.Template

	errdocsMu sync.RWMutex
	errdocs   map[model.Status]*raymond.Template

	data map[string]interface{}
}

// New returns an Engine with empty data/errdocs, ready for LoadData,
// LoadPartials, and LoadErrdocs to populate it at startup.
func New(osPlatform string) *Engine {
	registerValueHelpers()
	return &Engine{
		osPlatform: osPlatform,
		pages:      map[string]*raymond.Template{},
		errdocs:    map[model.Status]*raymond.Template{},
		data:       map[string]interface{}{},
	}
}

// Data returns the shared, read-only data-file tree loaded by LoadData,
// for building a per-request Context.
func (e *Engine) Data() map[string]interface{} {
	return e.data
}

// OSPlatform returns the platform string Context exposes as
// `os_platform`.
func (e *Engine) OSPlatform() string {
	return e.osPlatform
}

// LoadPartials compiles and globally registers every `.hbs` file under
// dir as a partial named after its path relative to dir, without
// extension (e.g. `dir/nav/header.hbs` registers as `nav/header`).
// Partials are shared, read-only state: raymond.RegisterPartial is a
// process-global registry, which is safe here because nothing ever
// re-registers a partial after startup.
func (e *Engine) LoadPartials(dir string) error {
	if dir == "" {
		return nil
	}
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".hbs") {
			return nil
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("render: reading partial %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(rel, ".hbs")
		raymond.RegisterPartial(name, rewriteDecorators(string(source)))
		return nil
	})
}

// LoadData parses every `.json` file directly under dir and attaches
// it under `data.<basename>` (spec.md §4.6 "Data binding").
func (e *Engine) LoadData(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("render: reading data dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("render: reading data file %s: %w", entry.Name(), err)
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("render: parsing data file %s: %w", entry.Name(), err)
		}
		basename := strings.TrimSuffix(entry.Name(), ".json")
		e.data[basename] = value
	}
	return nil
}

// LoadErrdocs compiles the HTTPS error document for each status slug
// found under dir, trying `<slug>.html.hbs` then `<slug>.html` (spec.md
// §4.10). A slug with neither file present has no compiled errdoc and
// falls back to a minimal hardcoded body at render time.
func (e *Engine) LoadErrdocs(dir string) error {
	if dir == "" {
		return nil
	}
	for slug := range errdocCandidateSlugs {
		for _, candidate := range []string{string(slug) + ".html.hbs", string(slug) + ".html"} {
			path := filepath.Join(dir, candidate)
			source, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			tpl, err := raymond.Parse(rewriteDecorators(string(source)))
			if err != nil {
				return fmt.Errorf("render: compiling errdoc %s: %w", candidate, err)
			}
			e.errdocsMu.Lock()
			e.errdocs[slug] = tpl
			e.errdocsMu.Unlock()
			break
		}
	}
	return nil
}

var errdocCandidateSlugs = map[model.Status]bool{
	model.StatusBadRequest:       true,
	model.StatusUnauthenticated:  true,
	model.StatusNotAuthorized:    true,
	model.StatusNotFound:         true,
	model.StatusGone:             true,
	model.StatusOtherServerError: true,
}

// Errdoc returns the compiled error document template for slug, if one
// was found under LoadErrdocs's directory.
func (e *Engine) Errdoc(slug model.Status) (*raymond.Template, bool) {
	e.errdocsMu.RLock()
	defer e.errdocsMu.RUnlock()
	tpl, ok := e.errdocs[slug]
	return tpl, ok
}

// CompilePage returns the compiled template for the page at
// absolutePath, compiling and caching it on first use. source is only
// read on a cache miss.
func (e *Engine) CompilePage(absolutePath string, source []byte) (*raymond.Template, error) {
	e.mu.RLock()
	if tpl, ok := e.pages[absolutePath]; ok {
		e.mu.RUnlock()
		return tpl, nil
	}
	e.mu.RUnlock()

	tpl, err := raymond.Parse(rewriteDecorators(string(source)))
	if err != nil {
		return nil, fmt.Errorf("render: compiling %s: %w", absolutePath, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.pages[absolutePath]; ok {
		return existing, nil
	}
	e.pages[absolutePath] = tpl
	return tpl, nil
}

// RenderInline compiles and executes source once, without caching it
// under Engine.pages. It exists for the second Handlebars pass over a
// `.md.hbs` file's Markdown-converted body (spec.md §4.6): that body
// differs per request (front matter, outer-pass output), so nothing
// about it is safe to keep past this one render.
func (e *Engine) RenderInline(source string, ctx map[string]interface{}) (string, *Accumulator, error) {
	acc := NewAccumulator()
	out, err := e.RenderInlineInto(source, ctx, acc)
	if err != nil {
		return "", nil, err
	}
	return out, acc, nil
}

// RenderInlineInto behaves like RenderInline but accumulates decorator
// effects into the caller-supplied acc instead of a fresh one, so a
// `.md.hbs` page's second Handlebars pass can share a single
// Accumulator with the first, per spec.md §9's last-call-wins ordering
// across both passes.
func (e *Engine) RenderInlineInto(source string, ctx map[string]interface{}, acc *Accumulator) (string, error) {
	tpl, err := raymond.Parse(rewriteDecorators(source))
	if err != nil {
		return "", fmt.Errorf("render: compiling inline template: %w", err)
	}
	registerDecorators(tpl, ctx, acc)
	out, err := tpl.Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("render: exec inline: %w", err)
	}
	return out, nil
}

// Render executes tpl against ctx, isolating this render's decorator
// helpers on a clone so concurrent renders of the same cached template
// never share an Accumulator. It returns the rendered output and the
// Accumulator the decorators wrote into.
func (e *Engine) Render(tpl *raymond.Template, ctx map[string]interface{}) (string, *Accumulator, error) {
	acc := NewAccumulator()
	out, err := e.RenderInto(tpl, ctx, acc)
	if err != nil {
		return "", nil, err
	}
	return out, acc, nil
}

// RenderInto behaves like Render but accumulates decorator effects into
// the caller-supplied acc instead of a fresh one.
func (e *Engine) RenderInto(tpl *raymond.Template, ctx map[string]interface{}, acc *Accumulator) (string, error) {
	rendered := tpl.Clone()
	registerDecorators(rendered, ctx, acc)

	out, err := rendered.Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("render: exec: %w", err)
	}
	return out, nil
}
