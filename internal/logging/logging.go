// Package logging builds the single structured logger threaded through
// the server and its connection handler (spec.md §10 AMBIENT
// STACK), the way the teacher threads its own *log.Logger through
// Server.Logger — except rubyshd uses logrus for leveled, structured
// fields instead of the teacher's plain *log.Logger, since a
// dual-protocol server's connection lifecycle needs more than a
// message string.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger writing JSON-formatted entries to stderr
// at the given level ("debug", "info", "warn", "error"; an unrecognized
// or empty level defaults to "info").
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// RequestFields builds the standard field set logged once per request:
// remote address, protocol, path, status slug, peer identity, and
// duration in milliseconds.
func RequestFields(remoteAddr, protocol, path, status, peerIdentity string, durationMS int64) logrus.Fields {
	return logrus.Fields{
		"remote_addr":   remoteAddr,
		"protocol":      protocol,
		"path":          path,
		"status":        status,
		"peer_identity": peerIdentity,
		"duration_ms":   durationMS,
	}
}
