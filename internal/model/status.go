package model

// Status is a protocol-independent response status slug. The wire
// encoders (internal/wire) translate a Status into the HTTPS status
// line or the Gemini two-digit code.
type Status string

// The fixed status slug set. Case-sensitive, lowercase, underscore-separated.
const (
	StatusSuccess            Status = "success"
	StatusTemporaryRedirect  Status = "temporary_redirect"
	StatusPermanentRedirect  Status = "permanent_redirect"
	StatusBadRequest         Status = "bad_request"
	StatusUnauthenticated    Status = "unauthenticated"
	StatusNotAuthorized      Status = "not_authorized"
	StatusNotFound           Status = "not_found"
	StatusGone               Status = "gone"
	StatusOtherServerError   Status = "other_server_error"
)

type statusCodes struct {
	https  int
	gemini int
	reason string
}

var statusTable = map[Status]statusCodes{
	StatusSuccess:           {200, 20, "OK"},
	StatusTemporaryRedirect: {307, 30, "Temporary Redirect"},
	StatusPermanentRedirect: {308, 31, "Permanent Redirect"},
	StatusBadRequest:        {400, 59, "Bad Request"},
	StatusUnauthenticated:   {401, 60, "Unauthorized"},
	StatusNotAuthorized:     {403, 61, "Forbidden"},
	StatusNotFound:          {404, 51, "Not Found"},
	StatusGone:              {410, 52, "Gone"},
	StatusOtherServerError:  {500, 40, "Internal Server Error"},
}

// HTTPSCode returns the HTTP/1.1 status code for the slug. It panics if
// the slug is not one of the fixed set: the mapping is meant to be a
// total function over valid Status values, and an unknown Status is a
// programmer error, not a runtime condition to recover from.
func (s Status) HTTPSCode() int {
	c, ok := statusTable[s]
	if !ok {
		panic("model: unknown status slug " + string(s))
	}
	return c.https
}

// GeminiCode returns the two-digit Gemini status code for the slug.
func (s Status) GeminiCode() int {
	c, ok := statusTable[s]
	if !ok {
		panic("model: unknown status slug " + string(s))
	}
	return c.gemini
}

// HTTPSReasonPhrase returns the reason phrase used on the HTTP/1.1
// status line, e.g. "OK" for StatusSuccess.
func (s Status) HTTPSReasonPhrase() string {
	c, ok := statusTable[s]
	if !ok {
		return "Error"
	}
	return c.reason
}

// Valid reports whether s is one of the recognized status slugs.
func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}
