// Package server provides the HTTP API of the panel daemon, served on a
// unix socket for the CLI and optionally on TCP for the browser panel.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/metaoverlayfs/panel/internal/daemon/store"
	"github.com/metaoverlayfs/panel/pkg/daemon"
	"github.com/metaoverlayfs/panel/pkg/panel"
)

// Server manages the daemon's HTTP listeners.
type Server struct {
	logger        *logrus.Entry
	panel         *panel.Panel
	store         *store.Store
	runningConfig *daemon.RunningConfig
	upgrader      websocket.Upgrader

	mu        sync.Mutex
	servers   []*http.Server
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a Server over p. Stream endpoints read from st.
func New(p *panel.Panel, st *store.Store, logger *logrus.Entry) *Server {
	return &Server{
		logger:  logger,
		panel:   p,
		store:   st,
		closing: make(chan struct{}),
	}
}

// SetRunningConfig sets the configuration reported on /api/config.
func (s *Server) SetRunningConfig(cfg *daemon.RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the API handler, accepting HTTP/1.1 and cleartext
// HTTP/2.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/modules", s.handleModules)
	mux.HandleFunc("POST /api/modules/{id}/{action}", s.handleModuleAction)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/live", s.handleLive)
	mux.HandleFunc("POST /api/live/{id}/{action}", s.handleLiveAction)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/surface", s.handleGetSurface)
	mux.HandleFunc("POST /api/surface", s.handleSetSurface)
	mux.HandleFunc("GET /api/prefs", s.handleGetPrefs)
	mux.HandleFunc("POST /api/prefs", s.handleSetPrefs)
	mux.HandleFunc("GET /api/logs", s.handleGetLogs)
	mux.HandleFunc("DELETE /api/logs", s.handleClearLogs)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /api/ws", s.handleWebsocket)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenUnix listens on a unix socket at socketPath, replacing a stale
// socket file.
func ListenUnix(socketPath string) (net.Listener, error) {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

// ListenAndServe serves the socket and, when tcpAddr is non-empty, a TCP
// address. It blocks until every listener stops and returns the first
// failure.
func (s *Server) ListenAndServe(socketPath, tcpAddr string) error {
	listeners := make([]net.Listener, 0, 2)

	unixLn, err := ListenUnix(socketPath)
	if err != nil {
		return err
	}
	listeners = append(listeners, unixLn)
	s.logger.WithField("socket", socketPath).Info("Daemon listening")

	if tcpAddr != "" {
		tcpLn, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			_ = unixLn.Close()
			return fmt.Errorf("failed to listen on %s: %w", tcpAddr, err)
		}
		listeners = append(listeners, tcpLn)
		s.logger.WithField("addr", tcpLn.Addr().String()).Info("Browser panel listening")
	}

	var g errgroup.Group
	for _, ln := range listeners {
		g.Go(func() error {
			return s.Serve(ln)
		})
	}
	return g.Wait()
}

// Serve serves the API on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler()}
	s.mu.Lock()
	select {
	case <-s.closing:
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	default:
	}
	s.servers = append(s.servers, srv)
	s.mu.Unlock()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops every listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	// Streams never go idle on their own.
	s.closeOnce.Do(func() { close(s.closing) })

	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	var g errgroup.Group
	for _, srv := range servers {
		g.Go(func() error {
			return srv.Shutdown(ctx)
		})
	}
	return g.Wait()
}
