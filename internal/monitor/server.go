package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/essp/internal/logging"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Server exposes a Hub at /ws and a liveness probe at /healthz.
type Server struct {
	addr     string
	hub      *Hub
	listener net.Listener
	http     *http.Server
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string, hub *Hub) *Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %d\n", hub.Clients())
	})

	return &Server{
		addr: addr,
		hub:  hub,
		http: &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}
}

// Listen binds the listening socket. Serve calls it if needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Port returns the bound TCP port, or 0 before Listen.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve handles connections until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	logging.Info("Monitor listening", zap.String("addr", s.listener.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- s.http.Serve(s.listener) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("monitor shutdown: %w", err)
	}
	logging.Info("Monitor stopped")
	return nil
}
