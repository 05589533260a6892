// Package httpparse implements C3: a tolerant parser for an HTTP/1.1
// request line and headers read from a fixed byte buffer, the HTTPS
// half of the protocol demultiplexer in internal/demux.
package httpparse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rubyroobs/rubyshd/internal/hostname"
	"github.com/rubyroobs/rubyshd/internal/model"
)

// Errors returned by Parse. They correspond to the client-caused error
// taxonomy in spec.md §7.
var (
	ErrMalformedRequest = errors.New("httpparse: malformed request")
	ErrBadPath          = errors.New("httpparse: bad path")
	ErrNoHost           = errors.New("httpparse: no Host header and no default hostname configured")
)

var methods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"DELETE": true, "OPTIONS": true, "PATCH": true,
}

// IsMethodToken reports whether tok is one of the methods recognized by
// C5 to classify a connection as HTTPS.
func IsMethodToken(tok string) bool {
	return methods[strings.ToUpper(tok)]
}

// Parse parses an HTTP/1.1 request line and headers out of buf, which
// must contain at least the full request line and header block
// (terminated by "\r\n\r\n"). defaultHostname is used when no Host
// header is present; if it is also empty, Parse fails with ErrNoHost.
func Parse(buf []byte, peerAddr net.Addr, defaultHostname string) (*model.Request, error) {
	r := bufio.NewReader(bytes.NewReader(buf))

	requestLine, err := readCRLFLine(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	parts := strings.SplitN(requestLine, " ", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: bad request line", ErrMalformedRequest)
	}
	method, target := parts[0], parts[1]
	if !IsMethodToken(method) {
		return nil, fmt.Errorf("%w: unrecognized method %q", ErrMalformedRequest, method)
	}

	headers := model.NewHeader()
	for {
		line, err := readCRLFLine(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed header %q", ErrMalformedRequest, line)
		}
		headers.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	host, hasHost := headers.Get("Host")
	if !hasHost || host == "" {
		host = defaultHostname
	}
	if host == "" {
		return nil, ErrNoHost
	}
	host = hostname.Normalize(host)

	rawPath, rawQuery, _ := strings.Cut(target, "?")
	path, err := normalizePath(rawPath)
	if err != nil {
		return nil, err
	}

	return &model.Request{
		PeerAddr: peerAddr,
		Protocol: model.ProtocolHTTPS,
		Path:     path,
		Host:     host,
		Query:    rawQuery,
		Headers:  headers,
	}, nil
}

// readCRLFLine reads a single line terminated by "\r\n", trimming the
// terminator. An empty string signals the blank line ending the header
// block.
func readCRLFLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// normalizePath percent-decodes and normalizes an HTTP request-target
// path: collapses duplicate slashes, forbids ".." segments outright,
// and preserves a trailing slash to signal directory intent.
func normalizePath(rawPath string) (string, error) {
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPath, err)
	}
	if decoded == "" {
		decoded = "/"
	}
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}

	trailingSlash := strings.HasSuffix(decoded, "/") && decoded != "/"

	segments := strings.Split(decoded, "/")
	var clean []string
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", ErrBadPath
		default:
			clean = append(clean, seg)
		}
	}

	result := "/" + strings.Join(clean, "/")
	if trailingSlash && result != "/" {
		result += "/"
	}
	return result, nil
}
