package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// fingerprintPayload fija el orden de los campos en la serialización canónica.
// encoding/json ordena las keys de los maps alfabéticamente, así que dos
// AdditionalClaims con el mismo contenido serializan idéntico sin importar
// el orden de inserción.
type fingerprintPayload struct {
	ExpirationMinutes int            `json:"expiration_minutes"`
	Audience          string         `json:"audience"`
	AdditionalClaims  map[string]any `json:"additional_claims"`
	Keyring           string         `json:"keyring"`
}

// Fingerprint deriva un digest determinístico del subconjunto de la
// configuración que afecta el contenido de los tokens. Dos configuraciones
// con el mismo subconjunto producen el mismo fingerprint; cualquier
// diferencia produce uno distinto. Es una función pura: se usa para detectar
// cuándo hay que regenerar claves y token.
func Fingerprint(t TokenConfig) string {
	b, err := json.Marshal(fingerprintPayload{
		ExpirationMinutes: t.ExpirationMinutes,
		Audience:          t.Audience,
		AdditionalClaims:  t.AdditionalClaims,
		Keyring:           t.Keyring,
	})
	if err != nil {
		// Solo posible con valores no serializables en AdditionalClaims
		// (channels, funcs). La config viene de YAML/JSON, así que no ocurre;
		// igual devolvemos algo estable para no romper la reconciliación.
		b = []byte(t.Keyring)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
