package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dropDatabas3/keysmith/internal/config"
	"github.com/dropDatabas3/keysmith/internal/store/core"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Subject es el "sub" fijo de todos los tokens emitidos.
const Subject = "keysmith"

var ErrInvalidIssuerURL = errors.New("invalid_issuer_url")

// Issuer arma el payload y firma tokens con la clave privada efímera
// que le pasa el caller. No retiene material de firma entre llamadas.
type Issuer struct {
	// AppURL es la URL pública del servicio; su origin se usa como "iss".
	AppURL string
}

func NewIssuer(appURL string) *Issuer {
	return &Issuer{AppURL: appURL}
}

// Origin reduce una URL a scheme://host[:port].
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidIssuerURL
	}
	return u.Scheme + "://" + u.Host, nil
}

// Issue emite un token firmado con la config dada.
//
// El payload se arma en este orden: primero los additional claims de la
// config, después los estándar (jti, iss, sub, aud, exp, iat, nbf). Los
// estándar siempre pisan un custom del mismo nombre: la config no puede
// falsificar iss/sub/exp.
//
// El kid viaja en el header de la firma para que los verifiers elijan la
// pública correcta del JWKS. priv se usa para firmar este único token y
// el caller lo descarta al volver.
func (i *Issuer) Issue(cfg config.TokenConfig, kid string, priv *rsa.PrivateKey) (core.TokenRecord, error) {
	if priv == nil {
		return core.TokenRecord{}, errors.New("nil_private_key")
	}

	iss, err := Origin(i.AppURL)
	if err != nil {
		return core.TokenRecord{}, err
	}

	aud := cfg.Audience
	if aud == "" {
		u, _ := url.Parse(i.AppURL)
		aud = u.Hostname()
	}

	now := time.Now().UTC()
	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)

	claims := jwtv5.MapClaims{}
	for k, v := range cfg.AdditionalClaims {
		claims[k] = v
	}
	claims["jti"] = uuid.NewString()
	claims["iss"] = iss
	claims["sub"] = Subject
	claims["aud"] = aud
	claims["exp"] = exp.Unix()
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Unix()

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(priv)
	if err != nil {
		return core.TokenRecord{}, fmt.Errorf("sign token: %w", err)
	}

	return core.TokenRecord{
		Token:       signed,
		ExpiresAt:   exp,
		Fingerprint: config.Fingerprint(cfg),
	}, nil
}
