package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	// Alg es el algoritmo de firma fijo del deployment.
	Alg = "RS256"

	rsaBits = 2048
)

// GenerateRSA genera un keypair RSA-2048 fresco con un KID fresco.
// Cada llamada produce material nuevo: ni el kid ni el keypair se reusan.
// La clave privada queda en manos del caller, que la descarta después de
// firmar un único token; acá no se persiste nada.
func GenerateRSA() (priv *rsa.PrivateKey, kid string, publicPEM string, err error) {
	priv, err = rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, "", "", fmt.Errorf("generate rsa key: %w", err)
	}
	publicPEM, err = EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return nil, "", "", err
	}
	return priv, uuid.NewString(), publicPEM, nil
}

// EncodePublicKeyPEM exporta una clave pública RSA en PKIX/PEM.
func EncodePublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	b := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return string(b), nil
}

// ParsePublicKeyPEM recupera una clave pública RSA desde PKIX/PEM.
func ParsePublicKeyPEM(s string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errors.New("invalid_public_key_pem")
	}
	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public_key_not_rsa")
	}
	return pub, nil
}
