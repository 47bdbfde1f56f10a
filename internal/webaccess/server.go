// Package webaccess is the realtime access server: a token-gated WebSocket
// endpoint that multiplexes event subscriptions and command invocations
// for local and LAN clients.
package webaccess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/VentureIA/chorus/internal/eventbus"
)

const (
	// DefaultAuthTimeout bounds the wait for the first frame of a connection.
	DefaultAuthTimeout = 10 * time.Second

	outboundQueueSize = 256
	writeTimeout      = 10 * time.Second

	// authFrameLimit caps the first frame, read before the client is known.
	authFrameLimit = 64 << 10
	frameLimit     = 16 << 20
)

// Dispatcher executes a named command on behalf of a client.
type Dispatcher interface {
	Dispatch(ctx context.Context, command string, args json.RawMessage) (json.RawMessage, error)
}

// Status is the snapshot shown in the desktop UI.
type Status struct {
	Running          bool `json:"running"`
	Port             int  `json:"port"`
	ConnectedClients int  `json:"connectedClients"`
	HasValidToken    bool `json:"hasValidToken"`
}

// TokenResult is what the local control channel hands to the user.
type TokenResult struct {
	URL           string `json:"url"`
	Token         string `json:"token"`
	ExpiresInSecs int64  `json:"expiresInSecs"`
}

type Server struct {
	bus        *eventbus.Bus
	dispatcher Dispatcher
	tokens     *TokenManager
	log        *slog.Logger

	authTimeout time.Duration
	static      http.Handler
	upgrader    websocket.Upgrader

	clients atomic.Int64
	port    atomic.Int64
	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup

	mu      sync.Mutex
	httpSrv *http.Server
	closed  bool
}

type Option func(*Server)

func WithAuthTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.authTimeout = d
		}
	}
}

// WithStatic serves h for every path other than /ws.
func WithStatic(h http.Handler) Option {
	return func(s *Server) { s.static = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

func New(bus *eventbus.Bus, dispatcher Dispatcher, tokens *TokenManager, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		bus:         bus,
		dispatcher:  dispatcher,
		tokens:      tokens,
		log:         slog.Default(),
		authTimeout: DefaultAuthTimeout,
		upgrader: websocket.Upgrader{
			// Clients load the UI from this server or a tunnel in front of
			// it; the token is the gate, not the origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	if s.static != nil {
		r.Handle("/*", s.static)
	}
	return r
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		s.port.Store(int64(addr.Port))
	}
	srv := &http.Server{Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = l.Close()
		return nil
	}
	s.httpSrv = srv
	s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	s.log.Info("web access server started", "addr", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web access serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and tears down every live one.
// Hijacked WebSocket connections are not covered by http.Server.Shutdown,
// so they are closed through the server context.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpSrv
	s.mu.Unlock()

	s.cancel()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// track registers a new connection unless shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) Port() int { return int(s.port.Load()) }

func (s *Server) ConnectedClients() int { return int(s.clients.Load()) }

func (s *Server) Status() Status {
	return Status{
		Running:          s.running.Load(),
		Port:             s.Port(),
		ConnectedClients: s.ConnectedClients(),
		HasValidToken:    s.tokens.HasValid(),
	}
}

// GenerateToken issues a new token, invalidating the previous one, and
// returns the LAN URL a client should open.
func (s *Server) GenerateToken() TokenResult {
	tok := s.tokens.Issue()
	return TokenResult{
		URL:           fmt.Sprintf("http://%s:%d", lanIP(), s.Port()),
		Token:         tok.Value,
		ExpiresInSecs: int64(s.tokens.TTL().Seconds()),
	}
}

// Revoke clears the token. Connections that already authenticated stay open.
func (s *Server) Revoke() {
	s.tokens.Revoke()
	s.log.Info("web access token revoked")
}
