package wire

import (
	"bufio"
	"fmt"

	"github.com/rubyroobs/rubyshd/internal/model"
)

// WriteGemini writes resp to w in Gemini wire format, per spec.md
// §4.9: one "<code> <meta>\r\n" line, followed by the body iff the
// response is a success.
func WriteGemini(w *bufio.Writer, resp *model.Response) error {
	code := resp.Status.GeminiCode()

	meta := resp.MediaType
	if resp.Redirect != nil {
		meta = resp.Redirect.URL
	} else if resp.Status != model.StatusSuccess {
		meta = resp.Status.HTTPSReasonPhrase()
	}

	if _, err := fmt.Fprintf(w, "%02d %s\r\n", code, meta); err != nil {
		return err
	}

	if resp.Status == model.StatusSuccess && resp.Redirect == nil {
		if _, err := w.Write(resp.Body); err != nil {
			return err
		}
	}
	return w.Flush()
}
