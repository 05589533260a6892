package certstore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"crypto/tls"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func generateSelfSigned(t *testing.T, commonName string) (certPEMPath, keyPEMPath string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}

func TestLoadServerCertificateIsServedAsFallback(t *testing.T) {
	certPath, keyPath := generateSelfSigned(t, "ruby.sh")
	s := New()
	if err := s.LoadServerCertificate("ruby.sh", certPath, keyPath); err != nil {
		t.Fatalf("LoadServerCertificate: %v", err)
	}

	cert, err := s.GetCertificate(&tls.ClientHelloInfo{ServerName: "unknown.example"})
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if cert == nil {
		t.Fatal("expected fallback certificate")
	}
}

func TestGetCertificateMatchesSNI(t *testing.T) {
	certPath, keyPath := generateSelfSigned(t, "ruby.sh")
	s := New()
	if err := s.LoadServerCertificate("ruby.sh", certPath, keyPath); err != nil {
		t.Fatalf("LoadServerCertificate: %v", err)
	}
	cert, err := s.GetCertificate(&tls.ClientHelloInfo{ServerName: "ruby.sh"})
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if cert == nil {
		t.Fatal("expected certificate for matching SNI")
	}
}

func TestGetCertificateFailsWithNothingLoaded(t *testing.T) {
	s := New()
	if _, err := s.GetCertificate(&tls.ClientHelloInfo{ServerName: "ruby.sh"}); err == nil {
		t.Fatal("expected error with no certificate configured")
	}
}

func TestTLSConfigRequestsButDoesNotRequireClientCert(t *testing.T) {
	s := New()
	cfg := s.TLSConfig()
	if cfg.ClientAuth != tls.VerifyClientCertIfGiven {
		t.Fatalf("ClientAuth = %v, want VerifyClientCertIfGiven", cfg.ClientAuth)
	}
}

func TestLoadClientCAPopulatesPool(t *testing.T) {
	certPath, _ := generateSelfSigned(t, "ca.ruby.sh")
	s := New()
	if err := s.LoadClientCA(certPath); err != nil {
		t.Fatalf("LoadClientCA: %v", err)
	}
	if s.ClientCAs() == nil {
		t.Fatal("expected non-nil client CA pool")
	}
}
