// Package certstore adapts the teacher's certificate directory/store
// pattern to rubyshd's needs: a small map of SNI hostnames to server
// certificates (consulted from tls.Config.GetCertificate), plus the
// client CA pool used to verify presented client certificates for
// mutual TLS.
package certstore

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
)

// Store maps hostnames to server certificates and holds the CA pool
// used to verify client certificates. It is safe for concurrent use;
// in practice it is populated once at startup and read thereafter.
type Store struct {
	mu     sync.RWMutex
	certs  map[string]*tls.Certificate
	fallback *tls.Certificate
	clientCAs *x509.CertPool
}

// New returns an empty Store.
func New() *Store {
	return &Store{certs: map[string]*tls.Certificate{}}
}

// LoadServerCertificate loads a PEM certificate chain and private key
// and registers it as the fallback certificate served when no SNI
// hostname matches (and as the certificate for hostname, if non-empty).
func (s *Store) LoadServerCertificate(hostname, certPEMPath, keyPEMPath string) error {
	cert, err := tls.LoadX509KeyPair(certPEMPath, keyPEMPath)
	if err != nil {
		return fmt.Errorf("certstore: load keypair: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = &cert
	if hostname != "" {
		s.certs[hostname] = &cert
	}
	return nil
}

// LoadClientCA loads a PEM-encoded CA bundle used to verify client
// certificates presented during the TLS handshake.
func (s *Store) LoadClientCA(caPEMPath string) error {
	data, err := os.ReadFile(caPEMPath)
	if err != nil {
		return fmt.Errorf("certstore: read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return fmt.Errorf("certstore: no certificates found in %s", caPEMPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCAs = pool
	return nil
}

// ClientCAs returns the configured client CA pool, or nil if none was loaded.
func (s *Store) ClientCAs() *x509.CertPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCAs
}

// GetCertificate implements the signature expected by
// tls.Config.GetCertificate: look up by SNI hostname, falling back to
// the single configured server certificate.
func (s *Store) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cert, ok := s.certs[hello.ServerName]; ok {
		return cert, nil
	}
	if s.fallback != nil {
		return s.fallback, nil
	}
	return nil, fmt.Errorf("certstore: no certificate configured")
}

// TLSConfig builds a tls.Config requesting (but not requiring) a
// client certificate; if the client presents one it must verify
// against ClientCAs or the handshake fails outright (spec.md's
// "requested, not required" with an invalid-but-present certificate
// never downgrading to anonymous).
func (s *Store) TLSConfig() *tls.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		ClientAuth:     tls.VerifyClientCertIfGiven,
		ClientCAs:      s.clientCAs,
		GetCertificate: s.GetCertificate,
	}
}
