package render

import (
	"testing"

	"github.com/rubyroobs/rubyshd/internal/model"
)

type stubAddr string

func (s stubAddr) Network() string { return "tcp" }
func (s stubAddr) String() string  { return string(s) }

func testRequest() *model.Request {
	return &model.Request{
		PeerAddr:     stubAddr("203.0.113.1:5555"),
		Protocol:     model.ProtocolHTTPS,
		Path:         "/",
		PeerIdentity: model.Authenticated("ruby"),
	}
}

func TestBuildContextReservedKeys(t *testing.T) {
	ctx := BuildContext(testRequest(), map[string]interface{}{"nav": []interface{}{"a", "b"}}, "linux")
	if ctx["common_name"] != "ruby" {
		t.Fatalf("common_name = %v, want ruby", ctx["common_name"])
	}
	if ctx["is_https"] != true || ctx["is_gemini"] != false {
		t.Fatalf("protocol flags wrong: %+v", ctx)
	}
	data, ok := ctx["data"].(map[string]interface{})
	if !ok || data["nav"] == nil {
		t.Fatalf("data not threaded through: %+v", ctx)
	}
}

func TestBuildContextAnonymousCommonName(t *testing.T) {
	req := testRequest()
	req.PeerIdentity = model.Anonymous()
	ctx := BuildContext(req, map[string]interface{}{}, "linux")
	if ctx["common_name"] != "anonymous" {
		t.Fatalf("common_name = %v, want literal \"anonymous\"", ctx["common_name"])
	}
}

// A `.md.hbs` page's two Handlebars passes must accumulate into one
// Accumulator so a second-pass decorator overrides a first-pass one.
func TestRenderIntoThreadsSingleAccumulatorAcrossTwoPasses(t *testing.T) {
	e := New("linux")
	outerTpl, err := e.CompilePage("/virtual/outer.hbs", []byte(`{{*status "not_found"}}outer`))
	if err != nil {
		t.Fatalf("CompilePage: %v", err)
	}
	ctx := BuildContext(testRequest(), map[string]interface{}{}, "linux")

	acc := NewAccumulator()
	if _, err := e.RenderInto(outerTpl, ctx, acc); err != nil {
		t.Fatalf("RenderInto: %v", err)
	}
	if _, err := e.RenderInlineInto(`{{*status "success"}}inner`, ctx, acc); err != nil {
		t.Fatalf("RenderInlineInto: %v", err)
	}

	resp := &model.Response{Status: model.StatusNotFound}
	acc.Apply(resp)
	if resp.Status != model.StatusSuccess {
		t.Fatalf("status = %v, want success (second pass must win)", resp.Status)
	}
}

func TestRenderStatusAndRedirectDecorators(t *testing.T) {
	e := New("linux")
	tpl, err := e.CompilePage("/virtual/page.hbs", []byte(`{{*status "not_found"}}{{*permanent-redirect "https://elsewhere"}}`))
	if err != nil {
		t.Fatalf("CompilePage: %v", err)
	}
	ctx := BuildContext(testRequest(), map[string]interface{}{}, "linux")
	out, acc, err := e.Render(tpl, ctx)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "" {
		t.Fatalf("decorator-only template should render empty, got %q", out)
	}
	resp := &model.Response{Status: model.StatusSuccess}
	acc.Apply(resp)
	if resp.Status != model.StatusPermanentRedirect {
		t.Fatalf("status = %v, want permanent_redirect (redirect decorator sets the status last)", resp.Status)
	}
	if resp.Redirect == nil || resp.Redirect.URL != "https://elsewhere" || resp.Redirect.Kind != model.RedirectPermanent {
		t.Fatalf("redirect not applied: %+v", resp.Redirect)
	}
}

func TestSetDecoratorCannotShadowReservedKey(t *testing.T) {
	e := New("linux")
	tpl, err := e.CompilePage("/virtual/set.hbs", []byte(`{{*set "path" "/hijacked"}}{{*set "greeting" "hi"}}{{greeting}}`))
	if err != nil {
		t.Fatalf("CompilePage: %v", err)
	}
	ctx := BuildContext(testRequest(), map[string]interface{}{}, "linux")
	out, _, err := e.Render(tpl, ctx)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "hi" {
		t.Fatalf("output = %q, want hi", out)
	}
	if ctx["path"] != "/" {
		t.Fatalf("reserved key path was shadowed: %v", ctx["path"])
	}
}

func TestPickRandomReturnsMember(t *testing.T) {
	arr := []interface{}{"a", "b", "c"}
	for i := 0; i < 20; i++ {
		v := pickRandom(arr)
		found := false
		for _, want := range arr {
			if v == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("pickRandom returned %v, not a member of %v", v, arr)
		}
	}
}

func TestPartialForMarkup(t *testing.T) {
	if got := partialForMarkup("header", "gemini"); got != "header.gmi" {
		t.Fatalf("gemini: got %q", got)
	}
	if got := partialForMarkup("header", "https"); got != "header.html" {
		t.Fatalf("https: got %q", got)
	}
}
