package handlers

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/keysmith/internal/config"
	"github.com/dropDatabas3/keysmith/internal/engine"
	httpx "github.com/dropDatabas3/keysmith/internal/http"
	"github.com/dropDatabas3/keysmith/internal/signals"
	"github.com/dropDatabas3/keysmith/internal/util"
)

type statusResponse struct {
	Engine        engine.Status `json:"engine"`
	Token         string        `json:"token"` // enmascarado
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	Issuer        string        `json:"issuer,omitempty"`
	ActiveKeyring string        `json:"active_keyring,omitempty"`
}

// NewAdminStatusHandler expone las señales publicadas con el token
// enmascarado. El valor completo nunca sale por este endpoint.
func NewAdminStatusHandler(eng *engine.Engine, published *signals.Published) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := published.Snapshot()
		resp := statusResponse{
			Engine:        eng.Status(),
			Token:         util.MaskToken(snap.Token),
			Issuer:        snap.Issuer,
			ActiveKeyring: snap.ActiveKeyring,
		}
		if !snap.ExpiresAt.IsZero() {
			exp := snap.ExpiresAt
			resp.ExpiresAt = &exp
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}

// NewAdminConfigHandler aplica una nueva configuración de tokens y dispara
// una reconciliación. Este es el trigger externo de cambio de config.
func NewAdminConfigHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg config.TokenConfig
		if !httpx.ReadJSON(w, r, &cfg) {
			return
		}
		if cfg.Keyring == "" {
			cfg.Keyring = "default"
		}

		st, err := eng.Reconcile(r.Context(), cfg)
		if err != nil {
			if st.State == engine.StateFailed {
				httpx.WriteError(w, http.StatusUnprocessableEntity, "reconcile_failed", st.Reason, 1501)
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "reconcile_failed", st.Reason, 1502)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, st)
	}
}

// NewAdminRotateHandler fuerza un pase de rotación inmediato.
func NewAdminRotateHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := eng.Rotate(r.Context())
		if err != nil {
			httpx.WriteError(w, http.StatusConflict, "rotate_failed", err.Error(), 1503)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, st)
	}
}
