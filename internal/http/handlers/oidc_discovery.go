package handlers

import (
	"net/http"
	"time"

	httpx "github.com/dropDatabas3/keysmith/internal/http"
	jwtx "github.com/dropDatabas3/keysmith/internal/jwt"
)

type oidcMetadata struct {
	Issuer                           string   `json:"issuer"`
	JWKSURI                          string   `json:"jwks_uri"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
}

// NewOIDCDiscoveryHandler publica el documento de configuración OIDC.
// keysmith no es un Authorization Server completo: no hay endpoints de
// authorize/token/userinfo, solo issuer + JWKS para verificar assertions.
func NewOIDCDiscoveryHandler(issuer string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET/HEAD", 1001)
			return
		}

		meta := oidcMetadata{
			Issuer:                           issuer,
			JWKSURI:                          issuer + "/.well-known/jwks.json",
			IDTokenSigningAlgValuesSupported: []string{jwtx.Alg},
			SubjectTypesSupported:            []string{"public"},
			ResponseTypesSupported:           []string{},
			ClaimsSupported: []string{
				"sub", "aud", "exp", "iat", "iss", "jti", "nbf",
			},
		}

		// Cache razonable (los clientes suelen cachear discovery por un rato)
		w.Header().Set("Cache-Control", "public, max-age=600, must-revalidate")
		w.Header().Set("Expires", time.Now().Add(10*time.Minute).UTC().Format(http.TimeFormat))

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, meta)
	})
}
