package httpapi

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tidesim/internal/config"
	"tidesim/internal/errs"
)

var upgrader = websocket.Upgrader{
	// CORS is enforced by the HTTP filter chain ahead of the upgrade, so the
	// upgrader itself accepts any origin (spec.md §4.3's request flow runs
	// auth before the route handler).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handlePublish implements POST /stream/{name}.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if len(name) < 1 || len(name) > config.MaxNameBytes {
		writeError(w, s.logger, errs.New(errs.KindPayloadTooLarge, "handlePublish: name length", nil))
		return
	}

	if !s.publishLimiter.Allow() {
		writeError(w, s.logger, errs.New(errs.KindRateLimited, "handlePublish: publish rate exceeded", nil))
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.logger, errs.New(errs.KindPayloadTooLarge, "handlePublish: body read", err))
		return
	}

	s.streams.Publish(name, payload)
	w.WriteHeader(http.StatusOK)
}

// handleSubscribe implements GET /stream/{name} with Upgrade: websocket.
// On upgrade success it registers a receiver and streams binary frames
// until the peer disconnects or the server shuts down (spec.md §4.2
// "Subscribe path").
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if len(name) < 1 || len(name) > config.MaxNameBytes {
		writeError(w, s.logger, errs.New(errs.KindPayloadTooLarge, "handleSubscribe: name length", nil))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the failure response to w; the
		// registry is left untouched, matching spec.md §4.2's invariant
		// list ("A subscribe whose upgrade fails ... leaves the registry
		// unchanged").
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.StreamUpgradeErrors.Inc()
		}
		return
	}

	sub := s.streams.Subscribe(name)
	defer sub.Close()

	s.trackConn(conn)
	defer s.untrackConn(conn)

	// A client-initiated close (or a server-initiated one via closeAllConns)
	// is detected by this read loop, which closes done so the write loop
	// below stops waiting on a topic that may never publish again (spec.md
	// §5 cancellation contract).
	done := make(chan struct{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				close(done)
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
