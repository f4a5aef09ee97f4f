package scpi

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/unusual-audio/workbench/internal/logger"
	"github.com/unusual-audio/workbench/internal/metrics"
)

// DefaultPort is the conventional SCPI raw socket port
const DefaultPort = 5025

// CommandHandler is the contract between the line server and an instrument
// session. Implementations that share one session across connections must
// serialize calls themselves; see SignalGenerator for the locking pattern.
type CommandHandler interface {
	HandleCommand(line string) *string
}

// Server accepts concurrent TCP connections and feeds newline-framed command
// lines to an instrument session. One goroutine serves each connection, with
// no connection cap: a stalled client only blocks its own goroutine, never
// the accept loop. Bounding connection growth under floods is left to the
// deployment (documented extension point).
type Server struct {
	device   CommandHandler
	listener net.Listener
	metrics  metrics.Collector
}

// NewServer creates a server for the given instrument session
func NewServer(device CommandHandler) *Server {
	return &Server{
		device:  device,
		metrics: metrics.NewNullMetrics(),
	}
}

// SetMetrics attaches a metrics collector. Call before Listen; the default
// is the no-op collector.
func (s *Server) SetMetrics(collector metrics.Collector) {
	s.metrics = collector
}

// Listen binds the TCP listening socket. Go's TCP listener sets address
// reuse on POSIX platforms, so restarts do not trip over TIME_WAIT sockets.
// Use port 0 to bind a random free port (for tests).
func (s *Server) Listen(host string, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("error binding SCPI listener: %w", err)
	}
	s.listener = listener
	logger.LogInfo("SCPI server listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound listener address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled or the listener fails.
// The loop itself never performs client I/O; every accepted connection is
// handed to its own goroutine immediately.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening (call Listen first)")
	}

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				logger.LogInfo("SCPI server stopped")
				return nil
			default:
				return fmt.Errorf("error accepting connection: %w", err)
			}
		}
		logger.LogDebug("Client connected: %s", conn.RemoteAddr())
		go s.handleConnection(conn)
	}
}

// Close shuts down the listening socket
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handleConnection serves one client: accumulate inbound bytes, extract one
// command per embedded newline, dispatch, and write back non-nil responses
// with a trailing newline. Framing on the newline byte keeps multi-byte
// UTF-8 sequences intact even when a read splits them - no byte of a
// multi-byte sequence can equal '\n'. A reset or EOF ends the handler
// quietly; a failing command never does.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	var pending []byte
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			for {
				index := bytes.IndexByte(pending, '\n')
				if index < 0 {
					break
				}
				line := strings.TrimSpace(string(pending[:index]))
				pending = pending[index+1:]
				if line == "" {
					continue
				}
				if !s.dispatch(conn, line) {
					return
				}
			}
		}
		if err != nil {
			// EOF on a clean disconnect, ECONNRESET on an aborted one;
			// both just end this client.
			logger.LogDebug("Client disconnected: %s (%v)", conn.RemoteAddr(), err)
			return
		}
	}
}

// dispatch runs one command and writes its response, reporting whether the
// connection is still usable
func (s *Server) dispatch(conn net.Conn, line string) bool {
	start := time.Now()
	response := s.device.HandleCommand(line)
	s.metrics.IncrementCommands()
	s.metrics.ObserveCommandDuration(time.Since(start))

	if response == nil {
		return true
	}
	if _, err := conn.Write(append([]byte(*response), '\n')); err != nil {
		logger.LogDebug("Error writing to %s: %v", conn.RemoteAddr(), err)
		return false
	}
	return true
}
