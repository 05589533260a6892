// Package demux implements C5: classification of a freshly-handshaked
// TLS stream's first bytes as HTTPS or Gemini, and dispatch to the
// matching parser (internal/httpparse or internal/geminiparse).
package demux

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"

	"github.com/rubyroobs/rubyshd/internal/geminiparse"
	"github.com/rubyroobs/rubyshd/internal/httpparse"
	"github.com/rubyroobs/rubyshd/internal/model"
)

// DefaultMaxHeaderSize is used when MAX_REQUEST_HEADER_SIZE is unset.
const DefaultMaxHeaderSize = 2048

var (
	ErrMalformedRequest = errors.New("demux: malformed request")
	ErrRequestTooLarge  = errors.New("demux: request exceeds header size limit")
)

var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

// ClassifiedError wraps a parse-time failure that happened after the
// wire protocol was already identified from the first line. Unlike a
// pre-classification failure (the connection never looked like either
// protocol), the caller here still knows which wire encoder to answer
// on — spec.md §7 treats these differently: pre-classification
// failures close the connection with no response, but a malformed
// request on an otherwise-recognized protocol still gets an error
// response on that protocol's wire.
type ClassifiedError struct {
	Protocol model.Protocol
	Err      error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classify reads from r up to maxHeaderSize bytes, looking for the
// HTTPS terminator "\r\n\r\n" or the Gemini terminator "\r\n",
// classifies the connection, and returns the parsed Request.
//
// The first line (up to the first "\r\n") decides the classification:
// an HTTP method token means HTTPS, in which case reading continues
// until the blank line ending the header block; a URL scheme prefix
// means Gemini. For Gemini only that first line is read: bytes sent
// after its "\r\n" are not examined, so a request carrying more than
// one line is not rejected here.
func Classify(r io.Reader, peerAddr net.Addr, maxHeaderSize int, defaultHostname string) (*model.Request, error) {
	if maxHeaderSize <= 0 {
		maxHeaderSize = DefaultMaxHeaderSize
	}

	br := bufio.NewReaderSize(r, maxHeaderSize)

	firstLine, err := readLine(br, maxHeaderSize)
	if err != nil {
		return nil, err
	}

	firstToken := firstWhitespaceToken(firstLine)
	if httpparse.IsMethodToken(firstToken) {
		rest, err := readUntilBlankLine(br, maxHeaderSize-len(firstLine))
		if err != nil {
			return nil, &ClassifiedError{Protocol: model.ProtocolHTTPS, Err: err}
		}
		buf := append(append([]byte{}, firstLine...), rest...)
		req, err := httpparse.Parse(buf, peerAddr, defaultHostname)
		if err != nil {
			return nil, &ClassifiedError{Protocol: model.ProtocolHTTPS, Err: err}
		}
		return req, nil
	}

	if schemePrefix.Match(firstLine) {
		line := bytes.TrimSuffix(firstLine, []byte("\r\n"))
		req, err := geminiparse.Parse(string(line), peerAddr, defaultHostname)
		if err != nil {
			return nil, &ClassifiedError{Protocol: model.ProtocolGemini, Err: err}
		}
		return req, nil
	}

	return nil, fmt.Errorf("%w", ErrMalformedRequest)
}

// readLine reads a single line (up to and including "\r\n") from br,
// failing with ErrRequestTooLarge if no terminator appears within
// maxBytes.
func readLine(br *bufio.Reader, maxBytes int) ([]byte, error) {
	var buf bytes.Buffer
	for {
		if buf.Len() >= maxBytes {
			return nil, ErrRequestTooLarge
		}
		b, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		buf.WriteByte(b)
		if bytes.HasSuffix(buf.Bytes(), []byte("\r\n")) {
			return buf.Bytes(), nil
		}
	}
}

// readUntilBlankLine reads from br until the header-terminating blank
// line ("\r\n\r\n") is seen, failing with ErrRequestTooLarge if it
// does not appear within maxBytes.
func readUntilBlankLine(br *bufio.Reader, maxBytes int) ([]byte, error) {
	var buf bytes.Buffer
	for {
		if buf.Len() >= maxBytes {
			return nil, ErrRequestTooLarge
		}
		b, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		buf.WriteByte(b)
		// A bare "\r\n" here is the blank line itself: the request line
		// (read by the caller) was followed by no header lines at all.
		if bytes.Equal(buf.Bytes(), []byte("\r\n")) || bytes.HasSuffix(buf.Bytes(), []byte("\r\n\r\n")) {
			return buf.Bytes(), nil
		}
	}
}

// firstWhitespaceToken returns the bytes of buf up to the first space
// or CR, used to sniff an HTTP method token.
func firstWhitespaceToken(buf []byte) string {
	for i, b := range buf {
		if b == ' ' || b == '\r' || b == '\n' {
			return string(buf[:i])
		}
	}
	return string(buf)
}
