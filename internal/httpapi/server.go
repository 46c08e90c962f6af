// Package httpapi is the HTTP/WebSocket front end: request routing, auth,
// size enforcement, and the REST/streaming handlers described in spec.md
// §4.3.
package httpapi

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tidesim/internal/authfilter"
	"tidesim/internal/metrics"
	"tidesim/internal/store"
	"tidesim/internal/stream"
)

// publishRateLimit is the ceiling on accepted publishes per second before
// the front end starts shedding them with 429s. This is a blunt inbound
// safety valve, distinct from the store engine's strict per-key write
// cooldown, generalized from ws/internal/shared/limits/resource_guard.go's
// broadcastLimiter (burst-and-refill is the right shape here, unlike for
// per-key store writes).
const publishRateLimit = 1000

// Server wires the store and stream engines to an HTTP listener.
type Server struct {
	httpServer *http.Server
	store      *store.Store
	streams    *stream.Registry
	auth       *authfilter.Filter
	metrics    *metrics.Registry
	logger     *zap.Logger

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}

	publishLimiter *rate.Limiter
}

// New builds the HTTP server. addr is the "host:port" to listen on.
func New(addr string, st *store.Store, streams *stream.Registry, auth *authfilter.Filter, reg *metrics.Registry, logger *zap.Logger) *Server {
	s := &Server{
		store:   st,
		streams: streams,
		auth:    auth,
		metrics: reg,
		logger:  logger,
		conns:   make(map[*websocket.Conn]struct{}),
		publishLimiter: rate.NewLimiter(rate.Limit(publishRateLimit), publishRateLimit*2),
	}

	router := mux.NewRouter()
	router.HandleFunc("/store/{key}", s.instrument("put", s.handlePut)).Methods(http.MethodPost)
	router.HandleFunc("/store/{key}", s.instrument("get", s.handleGet)).Methods(http.MethodGet)
	router.HandleFunc("/store", s.instrument("range", s.handleRange)).Methods(http.MethodGet)
	router.HandleFunc("/stream/{name}", s.instrument("publish", s.handlePublish)).Methods(http.MethodPost)
	router.HandleFunc("/stream/{name}", s.instrument("subscribe", s.handleSubscribe)).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = bodySizeLimitMiddleware(handler)
	handler = auth.Middleware(handler)
	handler = corsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	return s
}

// NewMetricsServer builds the separate, unauthenticated listener that
// exposes /metrics and /health (spec.md §6 expansion: "--metrics-addr ...
// where /metrics and /health listen"), kept apart from the main store/stream
// port so scraping and liveness checks aren't subject to the bearer-token
// filter.
func NewMetricsServer(addr string, reg *metrics.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	if reg != nil {
		mux.Handle("/metrics", reg.Handler())
	}
	mux.HandleFunc("/health", handleHealth)

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

// instrument wraps a handler so its outcome is recorded in the requests
// counter, matching spec.md's request flow (auth → size limits →
// route-specific handler, with the handler itself reporting status).
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequestsTotal.WithLabelValues(route, fmt.Sprintf("%d", rec.status)).Inc()
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the wrapped writer so WebSocket upgrades work on
// instrumented routes.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("httpapi: response writer does not implement http.Hijacker")
	}
	return h.Hijack()
}

func (s *Server) trackConn(c *websocket.Conn) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(c *websocket.Conn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

// Handler returns the fully wrapped handler (auth, size limit, CORS,
// routing), primarily so tests can drive it with httptest without binding a
// real listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving HTTP until the listener is closed.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight handlers, closes every live WebSocket with code
// 1001 ("going away"), and stops accepting new connections (spec.md §5).
// Flushing pending store writes is the caller's responsibility via
// store.Store.Close, invoked after this returns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeAllConns()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	deadline := time.Now().Add(time.Second)
	for c := range s.conns {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = c.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.Close()
	}
}
