package http

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/dropDatabas3/keysmith/internal/observability/logger"
)

// WithRequestID asigna (o propaga) un X-Request-ID por request.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			var b [8]byte
			_, _ = rand.Read(b[:])
			rid = hex.EncodeToString(b[:])
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// WithAdminKey protege los endpoints /v1/admin con X-Admin-API-Key.
// Si no hay key configurada, el admin API queda deshabilitado.
func WithAdminKey(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			WriteError(w, http.StatusForbidden, "admin_disabled", "admin API key no configurada", 1401)
			return
		}
		got := r.Header.Get("X-Admin-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "API key inválida", 1402)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// WithAccessLog loguea cada request con método, path, status y duración.
func WithAccessLog(next http.Handler) http.Handler {
	log := logger.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(rec.status),
			logger.Duration(time.Since(start)),
			logger.RequestID(w.Header().Get("X-Request-ID")),
		)
	})
}
