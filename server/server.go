package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/abihf/framecast/capture"
	"github.com/abihf/framecast/protocol"
)

const (
	DefaultStreamFPS     = 30.0
	DefaultStreamQuality = 80
	DefaultWriteTimeout  = 10 * time.Second
)

type Option struct {
	Bind string
	// Path is the websocket endpoint, "/" by default.
	Path string

	StreamFPS     float64
	StreamQuality int
	WriteTimeout  time.Duration

	Recorder Recorder
	Logger   *slog.Logger
}

// Server accepts viewers over websocket and attaches each one to the shared
// capture engine.
type Server struct {
	engine   *capture.Engine
	opt      Option
	log      *slog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	sessions map[*Session]struct{}
	wg       sync.WaitGroup

	listener net.Listener
	http     *http.Server
}

func New(engine *capture.Engine, opt Option) *Server {
	if opt.Bind == "" {
		opt.Bind = protocol.DefaultAddress
	}
	if opt.Path == "" {
		opt.Path = "/"
	}
	if opt.StreamFPS <= 0 {
		opt.StreamFPS = DefaultStreamFPS
	}
	if opt.StreamQuality <= 0 || opt.StreamQuality > 100 {
		opt.StreamQuality = DefaultStreamQuality
	}
	if opt.WriteTimeout <= 0 {
		opt.WriteTimeout = DefaultWriteTimeout
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		engine: engine,
		opt:    opt,
		log:    logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[*Session]struct{}{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(opt.Path, s.handleWS)
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the websocket endpoint for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opt.Bind)
	if err != nil {
		return errors.Wrap(err, "Listen error")
	}
	s.listener = ln

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Serve failed", "error", err)
		}
	}()
	s.log.Info("Server listening", "address", "ws://"+ln.Addr().String()+s.opt.Path)
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opt.Bind
	}
	return s.listener.Addr().String()
}

// Sessions returns the number of connected viewers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops accepting viewers, disconnects the current ones and waits
// for their goroutines. The engine is left to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "Sessions did not finish")
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "error", err)
		return
	}

	sess := newSession(conn, s.engine, &s.opt, s.log)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		s.wg.Done()
	}()

	sess.Run(s.ctx)
}
