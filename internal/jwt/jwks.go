package jwt

import (
	"encoding/base64"
	"encoding/json"
	"math/big"

	"github.com/dropDatabas3/keysmith/internal/store/core"
)

// JWK es una entrada RSA de un JSON Web Key Set (RFC 7517).
type JWK struct {
	Kty string `json:"kty"` // "RSA"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "RS256"
	Use string `json:"use"` // "sig"
	N   string `json:"n"`   // base64url(modulus)
	E   string `json:"e"`   // base64url(exponent)
}

// JWKS es el documento servido en /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// BuildJWKS construye el JWKS JSON a partir de KeyRecords vivos.
// Records con PEM ilegible se saltean: una clave corrupta no debe tirar
// abajo la publicación de las demás.
func BuildJWKS(recs []core.KeyRecord) []byte {
	doc := JWKS{Keys: make([]JWK, 0, len(recs))}
	for _, r := range recs {
		pub, err := ParsePublicKeyPEM(r.PublicKeyPEM)
		if err != nil {
			continue
		}
		doc.Keys = append(doc.Keys, JWK{
			Kty: "RSA",
			Kid: r.KID,
			Alg: Alg,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	b, _ := json.Marshal(doc)
	return b
}
