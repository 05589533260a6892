// Package geminiparse implements C4: parsing of a single Gemini
// request line (one absolute gemini:// URL terminated by "\r\n") into
// the canonical model.Request.
package geminiparse

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rubyroobs/rubyshd/internal/hostname"
	"github.com/rubyroobs/rubyshd/internal/model"
)

// MaxURLBytes is the Gemini specification's limit on request URL length.
const MaxURLBytes = 1024

var (
	ErrMalformedRequest = errors.New("geminiparse: malformed request")
	ErrRequestTooLarge   = errors.New("geminiparse: request URL exceeds 1024 bytes")
	ErrBadScheme         = errors.New("geminiparse: scheme must be gemini")
	ErrBadPath           = errors.New("geminiparse: bad path")
)

// Parse parses a single Gemini request line (without its trailing
// "\r\n", already stripped by the caller/demux) into a model.Request.
// defaultHostname is used when the URL carries no host.
func Parse(line string, peerAddr net.Addr, defaultHostname string) (*model.Request, error) {
	if len(line) > MaxURLBytes {
		return nil, ErrRequestTooLarge
	}

	u, err := url.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: userinfo not allowed", ErrMalformedRequest)
	}
	if u.Scheme == "" {
		u.Scheme = "gemini"
	}
	if u.Scheme != "gemini" {
		return nil, ErrBadScheme
	}

	host := u.Hostname()
	if host == "" {
		host = defaultHostname
	}
	host = hostname.Normalize(host)

	path, err := normalizePath(u.Path)
	if err != nil {
		return nil, err
	}

	return &model.Request{
		PeerAddr: peerAddr,
		Protocol: model.ProtocolGemini,
		Path:     path,
		Host:     host,
		Query:    u.RawQuery,
		Headers:  model.NewHeader(),
	}, nil
}

// normalizePath applies the identical collapsing/".." rejection rule
// C3 uses, so that resolution behaves the same for both protocols.
func normalizePath(rawPath string) (string, error) {
	if rawPath == "" {
		rawPath = "/"
	}
	if !strings.HasPrefix(rawPath, "/") {
		rawPath = "/" + rawPath
	}

	trailingSlash := strings.HasSuffix(rawPath, "/") && rawPath != "/"

	segments := strings.Split(rawPath, "/")
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
