package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps agrupa los handlers ya construidos para armar el mux.
type RouterDeps struct {
	Discovery stdhttp.Handler
	JWKS      stdhttp.Handler
	Readyz    stdhttp.Handler

	AdminStatus stdhttp.Handler
	AdminConfig stdhttp.Handler
	AdminRotate stdhttp.Handler

	AdminAPIKey string
}

// NewRouter arma el router chi con los dos documentos públicos, health,
// métricas y el admin API protegido por API key.
func NewRouter(deps RouterDeps) stdhttp.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(WithMetrics)
	r.Use(WithAccessLog)

	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(stdhttp.MethodGet, "/readyz", deps.Readyz)

	r.Handle("/.well-known/openid-configuration", deps.Discovery)
	r.Handle("/.well-known/jwks.json", deps.JWKS)

	r.Method(stdhttp.MethodGet, "/metrics", RegisterMetrics(prometheus.DefaultRegisterer))

	r.Route("/v1/admin", func(ar chi.Router) {
		ar.Use(func(next stdhttp.Handler) stdhttp.Handler {
			return WithAdminKey(deps.AdminAPIKey, next)
		})
		ar.Method(stdhttp.MethodGet, "/status", deps.AdminStatus)
		ar.Method(stdhttp.MethodPut, "/config", deps.AdminConfig)
		ar.Method(stdhttp.MethodPost, "/rotate", deps.AdminRotate)
	})

	return r
}
