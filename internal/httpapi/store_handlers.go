package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tidesim/internal/codec"
	"tidesim/internal/config"
	"tidesim/internal/errs"
	"tidesim/internal/store"
)

// handlePut implements POST /store/{key}: K from the path, V from the raw
// request body (spec.md §4.3.4).
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if len(key) > config.MaxKeyBytes {
		writeError(w, s.logger, errs.New(errs.KindPayloadTooLarge, "handlePut: key length", nil))
		return
	}

	value, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.logger, errs.New(errs.KindPayloadTooLarge, "handlePut: body read", err))
		return
	}

	if err := s.store.Put([]byte(key), value); err != nil {
		writeError(w, s.logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleGet implements GET /store/{key}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if len(key) > config.MaxKeyBytes {
		writeError(w, s.logger, errs.New(errs.KindPayloadTooLarge, "handleGet: key length", nil))
		return
	}

	value, err := s.store.Get([]byte(key))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, codec.GetResponse{Value: codec.EncodeValue(value)})
}

// handleRange implements GET /store?start=&end=&limit=.
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var start, end []byte
	if v := q.Get("start"); v != "" {
		start = []byte(v)
	}
	if v := q.Get("end"); v != "" {
		end = []byte(v)
	}

	limit := store.NoLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, s.logger, errs.New(errs.KindBadRequest, "handleRange: limit", err))
			return
		}
		limit = n
	}

	results, err := s.store.Range(start, end, limit)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	entries := make([]codec.RangeEntry, len(results))
	for i, res := range results {
		entries[i] = codec.RangeEntry{Key: string(res.Key), Value: codec.EncodeValue(res.Value)}
	}
	writeJSON(w, http.StatusOK, codec.RangeResponse{Results: entries})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
