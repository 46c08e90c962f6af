package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"tidesim/internal/errs"
)

// writeError maps an error to its HTTP status (errs.StatusCode) and writes a
// small JSON body. Internal errors are logged with detail; the client only
// sees a generic message, matching spec.md §7's "never leak internal detail".
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := errs.KindOf(err)
	status := errs.StatusCode(kind)

	if kind == errs.KindInternal {
		logger.Error("internal error", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
}
