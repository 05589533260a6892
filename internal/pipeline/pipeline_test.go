package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rubyroobs/rubyshd/internal/cache"
	"github.com/rubyroobs/rubyshd/internal/model"
	"github.com/rubyroobs/rubyshd/internal/render"
)

type stubAddr string

func (s stubAddr) Network() string { return "tcp" }
func (s stubAddr) String() string  { return string(s) }

// newTestPipeline lays out the file tree spec.md §8's "Concrete
// scenarios" paragraph describes: a protocol-agnostic `index.hbs`
// greeting, a Markdown page, a partial, and a data file.
func newTestPipeline(t *testing.T, withErrdoc bool) *Pipeline {
	t.Helper()
	root := t.TempDir()
	partials := t.TempDir()
	data := t.TempDir()
	errdocs := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, "index.hbs"), []byte("hi {{common_name}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "blog"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "blog", "post.md.hbs"), []byte("# hi {{common_name}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(partials, "header.hbs"), []byte("header"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(data, "nav.json"), []byte(`["a","b"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if withErrdoc {
		if err := os.WriteFile(filepath.Join(errdocs, "not_found.html.hbs"), []byte("not found: {{path}}"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(errdocs, "bad_request.html.hbs"), []byte("bad request: {{path}}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	engine := render.New("linux")
	if err := engine.LoadPartials(partials); err != nil {
		t.Fatal(err)
	}
	if err := engine.LoadData(data); err != nil {
		t.Fatal(err)
	}
	if err := engine.LoadErrdocs(errdocs); err != nil {
		t.Fatal(err)
	}

	return New(root, engine, cache.New(64))
}

func anonymousRequest(protocol model.Protocol, path string) *model.Request {
	return &model.Request{
		PeerAddr:     stubAddr("198.51.100.1:9999"),
		Protocol:     protocol,
		Path:         path,
		PeerIdentity: model.Anonymous(),
	}
}

func authenticatedRequest(protocol model.Protocol, path, commonName string) *model.Request {
	return &model.Request{
		PeerAddr:     stubAddr("198.51.100.1:9999"),
		Protocol:     protocol,
		Path:         path,
		PeerIdentity: model.Authenticated(commonName),
	}
}

// Scenario 1: HTTPS GET / from anonymous client.
func TestScenarioHTTPSRootAnonymous(t *testing.T) {
	p := newTestPipeline(t, true)
	resp := p.Handle(anonymousRequest(model.ProtocolHTTPS, "/"))
	if resp.Status != model.StatusSuccess {
		t.Fatalf("status = %v, want success", resp.Status)
	}
	if resp.MediaType != "text/html; charset=utf-8" {
		t.Fatalf("media type = %q", resp.MediaType)
	}
	if string(resp.Body) != "hi anonymous" {
		t.Fatalf("body = %q, want %q", resp.Body, "hi anonymous")
	}
}

// Scenario 2: Gemini request for / with an authenticated client.
func TestScenarioGeminiRootAuthenticated(t *testing.T) {
	p := newTestPipeline(t, true)
	resp := p.Handle(authenticatedRequest(model.ProtocolGemini, "/", "alice"))
	if resp.Status != model.StatusSuccess {
		t.Fatalf("status = %v, want success", resp.Status)
	}
	if resp.MediaType != "text/gemini; charset=utf-8" {
		t.Fatalf("media type = %q", resp.MediaType)
	}
	if string(resp.Body) != "hi alice" {
		t.Fatalf("body = %q, want %q", resp.Body, "hi alice")
	}
}

// Scenario 3: a path that should never reach the pipeline (traversal
// is rejected at parse time) still gets an errdoc body when the
// connection handler routes it through RenderError directly.
func TestScenarioBadPathRendersErrdoc(t *testing.T) {
	p := newTestPipeline(t, true)
	req := anonymousRequest(model.ProtocolHTTPS, "/etc/passwd")
	resp := p.RenderError(req, model.StatusBadRequest)
	if resp.Status != model.StatusBadRequest {
		t.Fatalf("status = %v, want bad_request", resp.Status)
	}
	if string(resp.Body) != "bad request: /etc/passwd" {
		t.Fatalf("body = %q, want the bad_request errdoc", resp.Body)
	}
}

// Scenario 4: HTTPS GET /blog/post resolves to blog/post.md.hbs.
func TestScenarioMarkdownPage(t *testing.T) {
	p := newTestPipeline(t, true)
	resp := p.Handle(authenticatedRequest(model.ProtocolHTTPS, "/blog/post", "ruby"))
	if resp.Status != model.StatusSuccess {
		t.Fatalf("status = %v, want success", resp.Status)
	}
	if resp.MediaType != "text/html; charset=utf-8" {
		t.Fatalf("media type = %q", resp.MediaType)
	}
	if string(resp.Body) != "<h1>hi ruby</h1>\n" {
		t.Fatalf("body = %q", resp.Body)
	}
}

// Scenario 5: a template with *status then *permanent-redirect yields
// a redirect response, not a not_found one, on both protocols.
func TestScenarioRedirectDecoratorOverridesStatus(t *testing.T) {
	p := newTestPipeline(t, true)
	page := `{{*status "not_found"}}{{*permanent-redirect "https://elsewhere"}}`
	if err := os.WriteFile(filepath.Join(p.root, "redir.hbs"), []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	httpsResp := p.Handle(anonymousRequest(model.ProtocolHTTPS, "/redir"))
	if httpsResp.Status != model.StatusPermanentRedirect {
		t.Fatalf("https status = %v, want permanent_redirect", httpsResp.Status)
	}
	if httpsResp.Redirect == nil || httpsResp.Redirect.URL != "https://elsewhere" {
		t.Fatalf("https redirect = %+v", httpsResp.Redirect)
	}

	geminiResp := p.Handle(anonymousRequest(model.ProtocolGemini, "/redir"))
	if geminiResp.Status != model.StatusPermanentRedirect {
		t.Fatalf("gemini status = %v, want permanent_redirect", geminiResp.Status)
	}
}

// Scenario 6: HTTPS GET /missing with no errdoc falls back to a
// minimal hardcoded body.
func TestScenarioMissingNoErrdoc(t *testing.T) {
	p := newTestPipeline(t, false)
	resp := p.Handle(anonymousRequest(model.ProtocolHTTPS, "/missing"))
	if resp.Status != model.StatusNotFound {
		t.Fatalf("status = %v, want not_found", resp.Status)
	}
	if len(resp.Body) == 0 {
		t.Fatalf("expected a fallback body")
	}
}

func TestStaticFileIsCachedAcrossRequests(t *testing.T) {
	p := newTestPipeline(t, true)
	if err := os.WriteFile(filepath.Join(p.root, "style.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	first := p.Handle(anonymousRequest(model.ProtocolHTTPS, "/style.css"))
	if first.CacheMaxAge == nil || *first.CacheMaxAge != 3600 {
		t.Fatalf("cache_max_age = %v, want 3600", first.CacheMaxAge)
	}

	second := p.Handle(anonymousRequest(model.ProtocolHTTPS, "/style.css"))
	if string(second.Body) != "body{}" {
		t.Fatalf("second read body = %q", second.Body)
	}
}
