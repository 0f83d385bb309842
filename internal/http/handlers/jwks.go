package handlers

import (
	"net/http"

	httpx "github.com/dropDatabas3/keysmith/internal/http"
	jwtx "github.com/dropDatabas3/keysmith/internal/jwt"
	"github.com/dropDatabas3/keysmith/internal/observability/logger"
	"github.com/dropDatabas3/keysmith/internal/signals"
	"github.com/dropDatabas3/keysmith/internal/store/core"
)

// NewJWKSHandler sirve las claves públicas vivas del keyring activo
// PUBLICADO, nunca el keyring crudo de la configuración: si un cambio de
// config apunta a un keyring nuevo, acá no aparece hasta que la generación
// de claves para ese keyring terminó y persistió.
//
// Sin keyring publicado todavía → key set vacío. Nunca un error, nunca las
// claves del keyring default.
func NewJWKSHandler(published *signals.Published, store core.Store) http.Handler {
	log := logger.Named("jwks")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET/HEAD", 1001)
			return
		}

		// Los verifiers no deben cachear: una rotación o un switch de
		// keyring tiene que ser visible de inmediato.
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		keyring := published.Snapshot().ActiveKeyring
		if keyring == "" {
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(`{"keys":[]}`))
			}
			return
		}

		var recs []core.KeyRecord
		pageToken := ""
		for {
			page, next, err := store.ListKeys(r.Context(), keyring, pageToken)
			if err != nil {
				log.Error("listing keys failed", logger.Keyring(keyring), logger.Err(err))
				httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "no se pudieron listar las claves", 2001)
				return
			}
			recs = append(recs, page...)
			if next == "" {
				break
			}
			pageToken = next
		}

		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jwtx.BuildJWKS(recs))
	})
}
