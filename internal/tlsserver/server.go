// Package tlsserver implements C6: the TLS-terminating accept loop
// that demultiplexes each connection into HTTPS or Gemini (C5), runs
// it through the pipeline (C10), and writes the response back with the
// matching wire encoder (C11).
//
// The accept loop itself is adapted from the teacher's
// Server.Serve (capped exponential backoff on temporary Accept
// errors), generalized with a bounded semaphore of in-flight
// connections grounded on n0x1m/gmifs's MaxOpenConns channel pattern,
// since the teacher has no such bound and spec.md §5 calls for one.
package tlsserver

import (
	"bufio"
	"crypto/tls"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rubyroobs/rubyshd/internal/certstore"
	"github.com/rubyroobs/rubyshd/internal/demux"
	"github.com/rubyroobs/rubyshd/internal/logging"
	"github.com/rubyroobs/rubyshd/internal/model"
	"github.com/rubyroobs/rubyshd/internal/pipeline"
	"github.com/rubyroobs/rubyshd/internal/wire"
)

// Server is the dual-protocol TLS terminator.
type Server struct {
	Addr                 string
	CertStore            *certstore.Store
	Pipeline             *pipeline.Pipeline
	Logger               *logrus.Logger
	MaxRequestHeaderSize int
	MaxOpenConnections   int
	ConnectionTimeout    time.Duration
	DefaultHostname      string
}

// ListenAndServe opens a TLS listener on s.Addr and serves forever,
// or until Accept returns a non-temporary error.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	tlsLn := tls.NewListener(ln, s.CertStore.TLSConfig())
	return s.Serve(tlsLn)
}

// Serve accepts connections from l, retrying with a capped exponential
// backoff on temporary errors (the teacher's Server.Serve pattern) and
// bounding in-flight connections with a semaphore channel (gmifs's
// MaxOpenConns pattern) so one slow client can't starve the rest.
func (s *Server) Serve(l net.Listener) error {
	maxOpen := s.MaxOpenConnections
	if maxOpen <= 0 {
		maxOpen = 256
	}
	sem := make(chan struct{}, maxOpen)

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				s.logger().WithError(err).Warnf("accept error, retrying in %v", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) logger() *logrus.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.New("info")
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	start := time.Now()
	connID := uuid.NewString()

	timeout := s.ConnectionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return
	}

	maxHeaderSize := s.MaxRequestHeaderSize
	if maxHeaderSize <= 0 {
		maxHeaderSize = demux.DefaultMaxHeaderSize
	}

	req, err := demux.Classify(conn, conn.RemoteAddr(), maxHeaderSize, s.DefaultHostname)
	if err != nil {
		classified, ok := err.(*demux.ClassifiedError)
		if !ok {
			// The wire protocol itself was never determined (the first
			// line matched neither an HTTP method nor a URL scheme, or
			// did not end within the size cap), so there is no encoder to
			// answer with: the connection is simply dropped (spec.md
			// §7: "outside the pipeline, errors close the connection
			// without a response").
			s.logger().WithFields(logrus.Fields{
				"connection_id": connID,
				"remote_addr":   conn.RemoteAddr().String(),
				"error":         err.Error(),
			}).Info("dropped unclassifiable connection")
			return
		}

		// The protocol was identified before parsing failed (e.g. a
		// path traversal attempt, a missing Host), so the client still
		// gets an error response on that protocol's wire (spec.md §8
		// scenario 3).
		fallback := &model.Request{
			PeerAddr:     conn.RemoteAddr(),
			Protocol:     classified.Protocol,
			Path:         "",
			PeerIdentity: peerIdentityFromConn(conn),
		}
		resp := s.Pipeline.RenderError(fallback, model.StatusBadRequest)
		s.writeResponse(conn, connID, start, fallback, resp)
		return
	}
	req.PeerIdentity = peerIdentityFromConn(conn)

	resp := s.Pipeline.Handle(req)
	s.writeResponse(conn, connID, start, req, resp)
}

func (s *Server) writeResponse(conn net.Conn, connID string, start time.Time, req *model.Request, resp *model.Response) {
	w := bufio.NewWriter(conn)
	var writeErr error
	if req.Protocol == model.ProtocolHTTPS {
		writeErr = wire.WriteHTTPS(w, resp)
	} else {
		writeErr = wire.WriteGemini(w, resp)
	}

	fields := logging.RequestFields(conn.RemoteAddr().String(), req.Protocol.String(), req.Path, string(resp.Status), peerIdentityLabel(req.PeerIdentity), time.Since(start).Milliseconds())
	fields["connection_id"] = connID
	if writeErr != nil {
		fields["error"] = writeErr.Error()
		s.logger().WithFields(fields).Warn("request")
		return
	}
	s.logger().WithFields(fields).Info("request")
}

// peerIdentityFromConn inspects the completed TLS handshake state to
// derive the request's PeerIdentity. tls.VerifyClientCertIfGiven
// guarantees that if a certificate is present at all, the handshake
// already failed unless it verified — so a non-empty
// PeerCertificates here is always a verified client certificate.
func peerIdentityFromConn(conn net.Conn) model.PeerIdentity {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return model.Anonymous()
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return model.Anonymous()
	}
	return model.Authenticated(state.PeerCertificates[0].Subject.CommonName)
}

func peerIdentityLabel(id model.PeerIdentity) string {
	if id.IsAnonymous() {
		return "anonymous"
	}
	return id.CommonName
}
