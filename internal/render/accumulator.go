package render

import "github.com/rubyroobs/rubyshd/internal/model"

// Accumulator is the single writer the `*status`/`*media-type`/
// `*temporary-redirect`/`*permanent-redirect` decorators mutate during
// a render. It is created fresh for each request, closed over by the
// decorator helpers registered on that render's cloned template, and
// read back once rendering completes to seal the model.Response
// (spec.md §9 "template decorators with side effects"). The `*set`
// decorator is handled separately: it writes straight into the
// render's context map rather than into this struct, since it mutates
// template-visible context, not response metadata.
type Accumulator struct {
	status    *model.Status
	mediaType *string
	redirect  *model.Redirect
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// SetStatus implements the `*status slug` decorator; the last call
// wins.
func (a *Accumulator) SetStatus(s model.Status) {
	a.status = &s
}

// SetMediaType implements the `*media-type s` decorator.
func (a *Accumulator) SetMediaType(mediaType string) {
	a.mediaType = &mediaType
}

// SetRedirect implements the `*temporary-redirect`/`*permanent-redirect`
// decorators. It also sets the matching redirect status slug, so a
// template that only ever calls `*temporary-redirect`/
// `*permanent-redirect` still seals with the right status code without
// having to pair it with an explicit `*status` call (spec.md §8
// scenario 5: a `*status "not_found"` followed by
// `*permanent-redirect` yields a 308, not a 404 body with a Location
// header).
func (a *Accumulator) SetRedirect(kind model.RedirectKind, url string) {
	a.redirect = &model.Redirect{Kind: kind, URL: url}
	s := model.StatusTemporaryRedirect
	if kind == model.RedirectPermanent {
		s = model.StatusPermanentRedirect
	}
	a.status = &s
}

// Apply writes the accumulated decorator side effects onto resp. It
// never clears fields the template didn't touch.
func (a *Accumulator) Apply(resp *model.Response) {
	if a.status != nil {
		resp.Status = *a.status
	}
	if a.mediaType != nil {
		resp.MediaType = *a.mediaType
	}
	if a.redirect != nil {
		resp.Redirect = a.redirect
	}
}
