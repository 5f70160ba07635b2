package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/storyteller-backend/internal/engine"
	"github.com/DoyleJ11/storyteller-backend/internal/reveal"
	"github.com/DoyleJ11/storyteller-backend/internal/script"
	"github.com/DoyleJ11/storyteller-backend/internal/store"
	"github.com/DoyleJ11/storyteller-backend/internal/timer"
	"github.com/DoyleJ11/storyteller-backend/internal/types"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// decode reads an optional JSON body into dst. An empty body leaves dst at
// its zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, script.ErrUnknownScript):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidArgument),
		errors.Is(err, timer.ErrOutOfRange),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, reveal.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, store.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{Error: err.Error()})
}
