// Package wire implements C11: serializing the canonical model.Response
// to either HTTPS/1.1 or Gemini wire bytes.
package wire

import (
	"bufio"
	"fmt"

	"github.com/rubyroobs/rubyshd/internal/model"
)

// WriteHTTPS writes resp to w in HTTP/1.1 wire format, per spec.md
// §4.9: status line, Content-Type, Content-Length, optional
// Cache-Control and Location, body omitted iff a redirect is present.
func WriteHTTPS(w *bufio.Writer, resp *model.Response) error {
	code := resp.Status.HTTPSCode()
	reason := resp.Status.HTTPSReasonPhrase()
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", code, reason); err != nil {
		return err
	}

	body := resp.Body
	if resp.Redirect != nil {
		body = nil
	}

	if _, err := fmt.Fprintf(w, "Content-Type: %s\r\n", resp.MediaType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n", len(body)); err != nil {
		return err
	}
	if resp.CacheMaxAge != nil {
		if _, err := fmt.Fprintf(w, "Cache-Control: public, max-age=%d\r\n", *resp.CacheMaxAge); err != nil {
			return err
		}
	}
	if resp.Redirect != nil {
		if _, err := fmt.Fprintf(w, "Location: %s\r\n", resp.Redirect.URL); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "Connection: close\r\n\r\n"); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return w.Flush()
}
