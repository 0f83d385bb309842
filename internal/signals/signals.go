// Package signals guarda el estado publicado hacia afuera.
// El engine es el único escritor; los handlers HTTP solo leen snapshots.
package signals

import (
	"sync"
	"time"
)

// State es lo que el resto del mundo puede observar del deployment.
type State struct {
	// Token es el token firmado vigente. Sensible: no va a logs sin mask.
	Token     string
	ExpiresAt time.Time
	Issuer    string

	// ActiveKeyring es el keyring que los verifiers pueden confiar AHORA.
	// Solo se actualiza después de que una generación de claves para ese
	// keyring terminó y persistió: así el endpoint JWKS nunca anuncia un
	// keyring sin claves guardadas. Vacío = nunca se publicó ninguno.
	ActiveKeyring string
}

// Published es el contenedor con el snapshot vigente.
type Published struct {
	mu    sync.RWMutex
	state State
}

func New() *Published {
	return &Published{}
}

// SetToken publica token, expiry e issuer sin tocar el keyring activo.
// Es lo que usa el branch Reuse: republicar sin haber generado claves.
func (p *Published) SetToken(token string, expiresAt time.Time, issuer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Token = token
	p.state.ExpiresAt = expiresAt
	p.state.Issuer = issuer
}

// SetActiveKeyring publica el keyring activo. Llamar únicamente después de
// persistir las claves generadas bajo ese keyring.
func (p *Published) SetActiveKeyring(keyring string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.ActiveKeyring = keyring
}

// Snapshot devuelve una copia consistente del estado publicado.
func (p *Published) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}
