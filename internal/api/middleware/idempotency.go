package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/api/problem"
	"github.com/gashop/shop-ledger/internal/idempotency"
	"github.com/gashop/shop-ledger/internal/observability"
)

// Idempotency enforces the Idempotency-Key contract for mutating requests:
// the first execution is recorded and retries with the same key get the
// recorded response back. Records are scoped to the authenticated account
// and bound to a fingerprint of the request, so a key reused by another
// account or with a different payload is a fresh execution or a conflict,
// never a replay of someone else's response.
func Idempotency(store *idempotency.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := r.Header.Get("Idempotency-Key")
			if clientKey == "" {
				observability.IncrementIdempotencyEvent("missing_key")
				problem.Write(w, r, http.StatusBadRequest, problem.Type("idempotency/missing-key"), "", "Idempotency-Key header is required")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				problem.Write(w, r, http.StatusBadRequest, problem.Type("invalid-input"), "", "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := AccountIDFromContext(r.Context()).String() + ":" + clientKey
			hash := hashRequest(r.Method, r.URL.Path, body)

			record, won, err := store.Reserve(r.Context(), key, hash)
			if errors.Is(err, idempotency.ErrHashMismatch) {
				observability.IncrementIdempotencyEvent("key_conflict")
				problem.Write(w, r, http.StatusConflict, problem.Type("idempotency/key-conflict"), "", "Idempotency-Key was already used for a different request")
				return
			}
			if errors.Is(err, idempotency.ErrInFlight) {
				observability.IncrementIdempotencyEvent("in_flight_conflict")
				problem.Write(w, r, http.StatusConflict, problem.Type("idempotency/in-progress"), "", "request with this key is still processing")
				return
			}
			if err != nil {
				observability.IncrementIdempotencyEvent("reserve_error")
				logger.Error("idempotency reserve failed", zap.Error(err))
				problem.Write(w, r, http.StatusInternalServerError, problem.Type("idempotency/unavailable"), "", "idempotency unavailable")
				return
			}
			if !won {
				observability.IncrementIdempotencyEvent("replay")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotent-Replay", "true")
				w.WriteHeader(record.Status)
				_, _ = w.Write(record.Body)
				return
			}

			recorder := &bodyRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)
			if recorder.status == 0 {
				recorder.status = http.StatusOK
			}

			// only successful executions are replayable; server failures
			// release the key so the client can retry
			if recorder.status >= http.StatusInternalServerError {
				if err := store.Release(r.Context(), key); err != nil {
					logger.Warn("idempotency release failed", zap.Error(err), zap.String("key", clientKey))
				}
				return
			}
			if err := store.Save(r.Context(), key, hash, recorder.status, recorder.body.Bytes()); err != nil {
				observability.IncrementIdempotencyEvent("save_error")
				logger.Warn("idempotency save failed", zap.Error(err), zap.String("key", clientKey))
				return
			}
			observability.IncrementIdempotencyEvent("recorded")
		})
	}
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("|"))
	h.Write([]byte(path))
	h.Write([]byte("|"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (br *bodyRecorder) WriteHeader(code int) {
	br.status = code
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	if br.status == 0 {
		br.status = http.StatusOK
	}
	br.body.Write(b)
	return br.ResponseWriter.Write(b)
}
