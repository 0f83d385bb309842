package handlers

import (
	"net/http"

	"github.com/dropDatabas3/keysmith/internal/engine"
	httpx "github.com/dropDatabas3/keysmith/internal/http"
	"github.com/dropDatabas3/keysmith/internal/store/core"
)

// NewReadyzHandler reporta 200 cuando hay un token publicado y el store
// responde; 503 antes de la primera reconciliación exitosa.
func NewReadyzHandler(eng *engine.Engine, store core.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "store no disponible", 2001)
			return
		}
		if !eng.Ready() {
			st := eng.Status()
			httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", string(st.State)+": "+st.Reason, 2002)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
