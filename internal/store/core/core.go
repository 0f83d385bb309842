// Package core define los tipos persistidos y el contrato de Store.
// Los backends (memory, fs, redis, pg) implementan este contrato; el engine
// no conoce ninguno en concreto.
package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indica que el registro pedido no existe (o ya expiró).
	ErrNotFound = errors.New("not_found")
)

// PageSize es la cantidad máxima de KeyRecords por página de ListKeys.
const PageSize = 20

// KeyRecord es la mitad pública de una signing key, publicable vía JWKS.
// Nunca se muta: se crea, vive hasta ExpiresAt y el backend la purga solo.
// La mitad privada jamás se persiste.
type KeyRecord struct {
	Keyring      string    `json:"keyring"`
	KID          string    `json:"kid"`
	PublicKeyPEM string    `json:"public_key_pem"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reporta si el record ya no debe publicarse.
func (k KeyRecord) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// TokenRecord es el token vigente. Hay exactamente uno; cada regeneración
// lo sobreescribe. Fingerprint guarda la config con la que fue emitido para
// detectar staleness en la próxima reconciliación (incluso tras restart).
type TokenRecord struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Fingerprint string    `json:"fingerprint"`
}

// Store es el único recurso mutable compartido entre reconciliación,
// rotación y el endpoint JWKS. Cada escritura es su propia unidad atómica;
// no hay transacciones multi-clave.
type Store interface {
	// PutKey guarda un KeyRecord que expira solo después de ttl.
	// No existe (ni hace falta) un camino de borrado manual.
	PutKey(ctx context.Context, rec KeyRecord, ttl time.Duration) error

	// ListKeys pagina los records vivos de un keyring. pageToken vacío
	// arranca desde el principio; un next vacío termina la secuencia.
	// Nunca devuelve records expirados aunque todavía no se hayan purgado,
	// y nunca mezcla keyrings.
	ListKeys(ctx context.Context, keyring, pageToken string) (recs []KeyRecord, next string, err error)

	// LoadCurrentToken devuelve el token vigente o ErrNotFound.
	LoadCurrentToken(ctx context.Context) (*TokenRecord, error)

	// SaveCurrentToken sobreescribe el token vigente.
	SaveCurrentToken(ctx context.Context, rec TokenRecord) error

	// LoadTimerHandle devuelve el handle del wakeup armado o ErrNotFound.
	LoadTimerHandle(ctx context.Context) (string, error)

	// SaveTimerHandle sobreescribe el handle del wakeup armado.
	SaveTimerHandle(ctx context.Context, handle string) error

	// Ping verifica que el backend esté disponible (para /readyz).
	Ping(ctx context.Context) error

	Close() error
}
