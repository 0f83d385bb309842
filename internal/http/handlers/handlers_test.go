package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dropDatabas3/keysmith/internal/config"
	"github.com/dropDatabas3/keysmith/internal/engine"
	httpx "github.com/dropDatabas3/keysmith/internal/http"
	jwtx "github.com/dropDatabas3/keysmith/internal/jwt"
	"github.com/dropDatabas3/keysmith/internal/scheduler"
	"github.com/dropDatabas3/keysmith/internal/signals"
	"github.com/dropDatabas3/keysmith/internal/store/memory"
	"github.com/stretchr/testify/require"
)

const testAppURL = "https://tokens.example.com"

type testServer struct {
	handler http.Handler
	eng     *engine.Engine
	pub     *signals.Published
}

func newTestServer(t *testing.T, adminKey string) *testServer {
	t.Helper()

	st := memory.New()
	pub := signals.New()
	eng, err := engine.New(st, scheduler.NewTimer(), jwtx.NewIssuer(testAppURL), pub)
	require.NoError(t, err)

	h := httpx.NewRouter(httpx.RouterDeps{
		Discovery:   NewOIDCDiscoveryHandler(testAppURL),
		JWKS:        NewJWKSHandler(pub, st),
		Readyz:      NewReadyzHandler(eng, st),
		AdminStatus: NewAdminStatusHandler(eng, pub),
		AdminConfig: NewAdminConfigHandler(eng),
		AdminRotate: NewAdminRotateHandler(eng),
		AdminAPIKey: adminKey,
	})
	return &testServer{handler: h, eng: eng, pub: pub}
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) reconcile(t *testing.T, cfg config.TokenConfig) {
	t.Helper()
	_, err := ts.eng.Reconcile(context.Background(), cfg)
	require.NoError(t, err)
}

func baseConfig() config.TokenConfig {
	return config.TokenConfig{ExpirationMinutes: 60, Keyring: "default"}
}

func TestOIDCDiscovery(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(http.MethodGet, "/.well-known/openid-configuration", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Cache-Control"), "max-age=600")

	var meta map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	require.Equal(t, testAppURL, meta["issuer"])
	require.Equal(t, testAppURL+"/.well-known/jwks.json", meta["jwks_uri"])
	require.Equal(t, []any{"RS256"}, meta["id_token_signing_alg_values_supported"])
	require.Equal(t, []any{"public"}, meta["subject_types_supported"])
	require.Equal(t, []any{}, meta["response_types_supported"])
	require.ElementsMatch(t,
		[]any{"sub", "aud", "exp", "iat", "iss", "jti", "nbf"},
		meta["claims_supported"])
}

func TestOIDCDiscovery_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(http.MethodPost, "/.well-known/openid-configuration", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, "GET, HEAD", w.Header().Get("Allow"))
}

func TestJWKS_EmptyBeforeFirstPublish(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(http.MethodGet, "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"keys":[]}`, w.Body.String())
}

func TestJWKS_ServesActiveKeyring(t *testing.T) {
	ts := newTestServer(t, "")
	ts.reconcile(t, baseConfig())

	w := ts.do(http.MethodGet, "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	require.Equal(t, "RSA", doc.Keys[0].Kty)
	require.Equal(t, "RS256", doc.Keys[0].Alg)
	require.Equal(t, "sig", doc.Keys[0].Use)
	require.NotEmpty(t, doc.Keys[0].Kid)
	require.NotEmpty(t, doc.Keys[0].N)
	require.Equal(t, "AQAB", doc.Keys[0].E)
}

func TestJWKS_KeyringSwitchHidesOldKeys(t *testing.T) {
	ts := newTestServer(t, "")
	ts.reconcile(t, baseConfig())

	w := ts.do(http.MethodGet, "/.well-known/jwks.json", "", nil)
	var before struct {
		Keys []struct {
			Kid string `json:"kid"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))
	require.Len(t, before.Keys, 1)

	cfg := baseConfig()
	cfg.Keyring = "v2"
	ts.reconcile(t, cfg)

	w = ts.do(http.MethodGet, "/.well-known/jwks.json", "", nil)
	var after struct {
		Keys []struct {
			Kid string `json:"kid"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	require.Len(t, after.Keys, 1)
	require.NotEqual(t, before.Keys[0].Kid, after.Keys[0].Kid)
}

func TestReadyz(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	ts.reconcile(t, baseConfig())

	w = ts.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestAdmin_DisabledWithoutKey(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(http.MethodGet, "/v1/admin/status", "", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_RejectsWrongKey(t *testing.T) {
	ts := newTestServer(t, "super-secreta")
	w := ts.do(http.MethodGet, "/v1/admin/status", "", map[string]string{
		"X-Admin-API-Key": "otra",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminStatus_MasksToken(t *testing.T) {
	ts := newTestServer(t, "super-secreta")
	ts.reconcile(t, baseConfig())
	full := ts.pub.Snapshot().Token

	w := ts.do(http.MethodGet, "/v1/admin/status", "", map[string]string{
		"X-Admin-API-Key": "super-secreta",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token         string `json:"token"`
		ActiveKeyring string `json:"active_keyring"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEqual(t, full, resp.Token)
	require.NotContains(t, w.Body.String(), full)
	require.Equal(t, "default", resp.ActiveKeyring)
}

func TestAdminConfig_AppliesAndReconciles(t *testing.T) {
	ts := newTestServer(t, "super-secreta")

	body := `{"expiration_minutes": 90, "audience": "api.example.com"}`
	w := ts.do(http.MethodPut, "/v1/admin/config", body, map[string]string{
		"X-Admin-API-Key": "super-secreta",
		"Content-Type":    "application/json",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var st engine.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, engine.StateReady, st.State)
	require.Equal(t, "bootstrap", st.Branch)

	// sin keyring en el body aplica "default"
	require.Equal(t, "default", ts.pub.Snapshot().ActiveKeyring)
}

func TestAdminConfig_KeyringSwitchVisibleInJWKS(t *testing.T) {
	ts := newTestServer(t, "super-secreta")
	headers := map[string]string{
		"X-Admin-API-Key": "super-secreta",
		"Content-Type":    "application/json",
	}

	w := ts.do(http.MethodPut, "/v1/admin/config", `{"expiration_minutes": 60, "keyring": "a"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/.well-known/jwks.json", "", nil)
	var before struct {
		Keys []struct {
			Kid string `json:"kid"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))
	require.Len(t, before.Keys, 1)

	w = ts.do(http.MethodPut, "/v1/admin/config", `{"expiration_minutes": 60, "keyring": "b"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	var st engine.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, "regenerate", st.Branch)

	// el switch invalida en masa: el JWKS solo anuncia el keyring nuevo
	w = ts.do(http.MethodGet, "/.well-known/jwks.json", "", nil)
	var after struct {
		Keys []struct {
			Kid string `json:"kid"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	require.Len(t, after.Keys, 1)
	require.NotEqual(t, before.Keys[0].Kid, after.Keys[0].Kid)
}

func TestAdminConfig_RejectsInvalid(t *testing.T) {
	ts := newTestServer(t, "super-secreta")

	body := `{"expiration_minutes": 3}`
	w := ts.do(http.MethodPut, "/v1/admin/config", body, map[string]string{
		"X-Admin-API-Key": "super-secreta",
		"Content-Type":    "application/json",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdminConfig_RejectsNonJSON(t *testing.T) {
	ts := newTestServer(t, "super-secreta")
	w := ts.do(http.MethodPut, "/v1/admin/config", "no-json", map[string]string{
		"X-Admin-API-Key": "super-secreta",
		"Content-Type":    "text/plain",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRotate(t *testing.T) {
	ts := newTestServer(t, "super-secreta")
	ts.reconcile(t, baseConfig())
	before := ts.pub.Snapshot().Token

	w := ts.do(http.MethodPost, "/v1/admin/rotate", "", map[string]string{
		"X-Admin-API-Key": "super-secreta",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEqual(t, before, ts.pub.Snapshot().Token)
}

func TestAdminRotate_ConflictAfterRejectedConfig(t *testing.T) {
	ts := newTestServer(t, "super-secreta")

	w := ts.do(http.MethodPut, "/v1/admin/config", `{"expiration_minutes": 5}`, map[string]string{
		"X-Admin-API-Key": "super-secreta",
		"Content-Type":    "application/json",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// la config rechazada no habilita emisión por ningún camino
	w = ts.do(http.MethodPost, "/v1/admin/rotate", "", map[string]string{
		"X-Admin-API-Key": "super-secreta",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Empty(t, ts.pub.Snapshot().Token)
}

func TestAdminRotate_ConflictWithoutConfig(t *testing.T) {
	ts := newTestServer(t, "super-secreta")
	w := ts.do(http.MethodPost, "/v1/admin/rotate", "", map[string]string{
		"X-Admin-API-Key": "super-secreta",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}
