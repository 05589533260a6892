// Package model holds the canonical, protocol-agnostic request and
// response records that the rest of rubyshd is built around: a
// connection is demultiplexed into one of these Requests regardless of
// whether it arrived as HTTPS or Gemini, and a pipeline stage only ever
// produces a Response, never protocol-specific bytes.
package model

import (
	"net"
	"strings"
)

// Protocol identifies which wire protocol a Request arrived over.
type Protocol int

const (
	ProtocolHTTPS Protocol = iota
	ProtocolGemini
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTPS:
		return "https"
	case ProtocolGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// PeerIdentity is the authentication outcome of the TLS handshake that
// carried a Request. Exactly one of IsAnonymous/IsAuthenticated is true
// for any Request (spec invariant).
type PeerIdentity struct {
	CommonName string
	anonymous  bool
}

// Anonymous returns the identity of a client that did not present a
// certificate that verified against the configured CA.
func Anonymous() PeerIdentity {
	return PeerIdentity{anonymous: true}
}

// Authenticated returns the identity of a client whose certificate
// verified against the configured CA, carrying its subject common name.
func Authenticated(commonName string) PeerIdentity {
	return PeerIdentity{CommonName: commonName}
}

func (p PeerIdentity) IsAnonymous() bool {
	return p.anonymous
}

func (p PeerIdentity) IsAuthenticated() bool {
	return !p.anonymous
}

// Request is the canonical, immutable-after-parse representation of an
// inbound HTTPS or Gemini request.
type Request struct {
	PeerAddr     net.Addr
	Protocol     Protocol
	Path         string
	Host         string
	Query        string
	Headers      Header
	PeerIdentity PeerIdentity
}

// Header is an ordered, case-insensitive header map. Lookups are
// case-insensitive; iteration preserves insertion order and original
// casing, matching what appeared on the wire.
type Header struct {
	keys   []string
	values map[string]string
}

// NewHeader returns an empty Header ready to use.
func NewHeader() Header {
	return Header{values: map[string]string{}}
}

// Set records name/value, preserving name's original casing for
// iteration and Write, while indexing by its lowercase form.
func (h *Header) Set(name, value string) {
	if h.values == nil {
		h.values = map[string]string{}
	}
	key := strings.ToLower(name)
	if _, exists := h.values[key]; !exists {
		h.keys = append(h.keys, name)
	}
	h.values[key] = value
}

// Get returns the value for name, case-insensitively, and whether it
// was present.
func (h Header) Get(name string) (string, bool) {
	if h.values == nil {
		return "", false
	}
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// Len reports the number of distinct header names.
func (h Header) Len() int {
	return len(h.keys)
}

// Range calls fn for each header in the order it was set, using the
// original casing of the name as first seen.
func (h Header) Range(fn func(name, value string)) {
	for _, k := range h.keys {
		fn(k, h.values[strings.ToLower(k)])
	}
}
