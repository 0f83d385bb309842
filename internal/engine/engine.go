// Package engine implementa el ciclo de vida de claves y token:
// la reconciliación (bootstrap / regenerate / reuse) y la rotación
// periódica con retry. Es el único escritor de las señales publicadas.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/keysmith/internal/config"
	jwtx "github.com/dropDatabas3/keysmith/internal/jwt"
	"github.com/dropDatabas3/keysmith/internal/observability/logger"
	"github.com/dropDatabas3/keysmith/internal/scheduler"
	"github.com/dropDatabas3/keysmith/internal/signals"
	"github.com/dropDatabas3/keysmith/internal/store/core"
	"go.uber.org/zap"
)

const (
	// GracePeriod es el tiempo extra que una clave pública sigue publicada
	// después de la vida del token que firmó. Garantiza que todo token
	// emitido sea verificable durante toda su ventana de validez.
	GracePeriod = 10 * time.Minute

	// RetryDelay es el delay fijo tras una rotación fallida. Sin backoff
	// y sin tope de reintentos: se insiste a esta cadencia hasta que
	// funcione o cambie la configuración.
	RetryDelay = 5 * time.Minute

	minRotationMinutes = 5
)

// RotationInterval calcula la cadencia de rotación: la mitad de la vida del
// token (claves frescas mucho antes de que expire cualquier token vivo),
// con piso de 5 minutos para acotar el overhead.
func RotationInterval(expirationMinutes int) time.Duration {
	m := expirationMinutes / 2
	if m < minRotationMinutes {
		m = minRotationMinutes
	}
	return time.Duration(m) * time.Minute
}

// KeyTTL es cuánto vive un KeyRecord: gracia + vida máxima del token.
func KeyTTL(expirationMinutes int) time.Duration {
	return GracePeriod + time.Duration(expirationMinutes)*time.Minute
}

type State string

const (
	StateReady  State = "ready"
	StateFailed State = "failed"
)

// Status es el resultado observable del último pase del engine.
type Status struct {
	State       State     `json:"state"`
	Branch      string    `json:"branch,omitempty"` // bootstrap | regenerate | reuse | rotate
	Reason      string    `json:"reason,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Engine serializa reconciliación y rotación con un mutex por deployment:
// un wakeup de rotación y un cambio de config concurrentes nunca corren
// la secuencia read-decide-write a la vez.
type Engine struct {
	store     core.Store
	sched     scheduler.Scheduler
	issuer    *jwtx.Issuer
	published *signals.Published
	log       *zap.Logger

	issuerOrigin string

	mu      sync.Mutex
	cfg     config.TokenConfig
	haveCfg bool
	status  Status
}

func New(store core.Store, sched scheduler.Scheduler, issuer *jwtx.Issuer, published *signals.Published) (*Engine, error) {
	origin, err := jwtx.Origin(issuer.AppURL)
	if err != nil {
		return nil, fmt.Errorf("app url %q: %w", issuer.AppURL, err)
	}
	initMetrics()
	return &Engine{
		store:        store,
		sched:        sched,
		issuer:       issuer,
		published:    published,
		log:          logger.Named("engine"),
		issuerOrigin: origin,
	}, nil
}

// Reconcile aplica una configuración: decide entre bootstrap, regenerate y
// reuse, y deja publicadas las señales. Se invoca al arranque y en cada
// cambio de configuración.
func (e *Engine) Reconcile(ctx context.Context, cfg config.TokenConfig) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		// Terminal para este pase: no se genera ni se toca nada, y la config
		// vigente sigue siendo la última válida (un wakeup armado para ella
		// sigue siendo legítimo). El retry lo dispara un futuro cambio de
		// configuración, no nosotros.
		st := e.setFailed("", "", "invalid_config: "+err.Error())
		reconcileMetric("invalid_config")
		e.log.Error("reconcile rejected", logger.Err(err))
		return st, err
	}

	e.cfg = cfg
	e.haveCfg = true

	fp := config.Fingerprint(cfg)
	log := e.log.With(logger.Fingerprint(fp), logger.Keyring(cfg.Keyring))

	cur, err := e.store.LoadCurrentToken(ctx)
	switch {
	case errors.Is(err, core.ErrNotFound):
		log.Info("no persisted token, bootstrapping")
		return e.generateAndArm(ctx, cfg, fp, "bootstrap", log)

	case err != nil:
		st := e.setFailed("", fp, "load_token: "+err.Error())
		reconcileMetric("error")
		log.Error("reconcile failed loading current token", logger.Err(err))
		return st, fmt.Errorf("load current token: %w", err)

	case cur.Fingerprint != fp:
		log.Info("configuration changed, regenerating",
			logger.String("previous_fingerprint", cur.Fingerprint))
		return e.generateAndArm(ctx, cfg, fp, "regenerate", log)

	default:
		// Reuse: republicar el token existente tal cual. El keyring activo
		// queda en su último valor publicado: no se generaron claves, así
		// que no hay derecho a anunciar el keyring de la config.
		e.published.SetToken(cur.Token, cur.ExpiresAt, e.issuerOrigin)
		e.armLocked(ctx, RotationInterval(cfg.ExpirationMinutes), fp, log)
		st := e.setReady("reuse", fp)
		reconcileMetric("reuse")
		log.Info("configuration unchanged, reusing token", logger.ExpiresAt(cur.ExpiresAt))
		return st, nil
	}
}

// Rotate fuerza un pase de rotación con la última configuración aplicada.
func (e *Engine) Rotate(ctx context.Context) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.haveCfg {
		return e.statusLocked(), errors.New("no configuration applied yet")
	}
	// e.cfg solo guarda configs que pasaron Validate; esto cierra cualquier
	// otro camino hacia una rotación con config inválida.
	if err := e.cfg.Validate(); err != nil {
		return e.statusLocked(), fmt.Errorf("invalid configuration: %w", err)
	}
	return e.rotateLocked(ctx, config.Fingerprint(e.cfg))
}

// Status devuelve el resultado del último pase.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// Ready reporta si hay un token publicado vigente.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	return st.State == StateReady && e.published.Snapshot().Token != ""
}

// generateAndArm es el camino compartido de bootstrap y regenerate:
// generar clave+token, persistir, publicar (keyring incluido) y armar la
// próxima rotación.
func (e *Engine) generateAndArm(ctx context.Context, cfg config.TokenConfig, fp, branch string, log *zap.Logger) (Status, error) {
	if err := e.generateLocked(ctx, cfg, log); err != nil {
		st := e.setFailed(branch, fp, err.Error())
		reconcileMetric("error")
		return st, err
	}
	e.armLocked(ctx, RotationInterval(cfg.ExpirationMinutes), fp, log)
	st := e.setReady(branch, fp)
	reconcileMetric(branch)
	return st, nil
}

// generateLocked ejecuta una generación completa: keypair fresco, publicar
// la mitad pública con TTL, firmar el token, persistirlo y recién entonces
// actualizar las señales. La privada vive solo dentro de esta llamada.
//
// Orden que no se negocia: PutKey exitoso ocurre antes de publicar el
// keyring activo. Un verifier nunca observa un keyring cuyas claves no
// están guardadas.
func (e *Engine) generateLocked(ctx context.Context, cfg config.TokenConfig, log *zap.Logger) error {
	priv, kid, publicPEM, err := jwtx.GenerateRSA()
	if err != nil {
		return fmt.Errorf("generate_key: %w", err)
	}

	now := time.Now().UTC()
	ttl := KeyTTL(cfg.ExpirationMinutes)
	rec := core.KeyRecord{
		Keyring:      cfg.Keyring,
		KID:          kid,
		PublicKeyPEM: publicPEM,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := e.store.PutKey(ctx, rec, ttl); err != nil {
		return fmt.Errorf("persist_key: %w", err)
	}

	tok, err := e.issuer.Issue(cfg, kid, priv)
	if err != nil {
		return fmt.Errorf("sign_token: %w", err)
	}
	// la privada no se usa más a partir de acá

	if err := e.store.SaveCurrentToken(ctx, tok); err != nil {
		return fmt.Errorf("persist_token: %w", err)
	}

	e.published.SetToken(tok.Token, tok.ExpiresAt, e.issuerOrigin)
	e.published.SetActiveKeyring(cfg.Keyring)

	log.Info("generated signing key and token",
		logger.KID(kid), logger.ExpiresAt(tok.ExpiresAt))
	return nil
}

// armLocked cancela el wakeup anterior (por su handle persistido) y arma
// uno nuevo, dejando a lo sumo un wakeup pendiente por deployment.
func (e *Engine) armLocked(ctx context.Context, d time.Duration, fp string, log *zap.Logger) {
	if prev, err := e.store.LoadTimerHandle(ctx); err == nil && prev != "" {
		// best-effort: un wakeup ya en vuelo no se puede retractar; el
		// guard de fingerprint en onWakeup lo neutraliza.
		e.sched.Cancel(scheduler.Handle(prev))
	}

	h := e.sched.Schedule(d, func() { e.onWakeup(fp) })
	if err := e.store.SaveTimerHandle(ctx, string(h)); err != nil {
		// el timer quedó armado en memoria igual; solo se pierde la
		// posibilidad de cancelarlo desde un pase futuro
		log.Warn("failed to persist rotation timer handle", logger.Handle(string(h)), logger.Err(err))
		return
	}
	log.Debug("rotation wakeup armed", logger.Handle(string(h)), logger.Duration(d))
}

// onWakeup corre cuando dispara un timer de rotación. Si la configuración
// cambió desde que se armó (el fingerprint ya no coincide), el wakeup fue
// lógicamente cancelado y no hace nada: el fingerprint es la autoridad.
func (e *Engine) onWakeup(armedFP string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.haveCfg {
		return
	}
	if cur := config.Fingerprint(e.cfg); cur != armedFP {
		rotationMetric("superseded")
		e.log.Info("rotation wakeup superseded by newer configuration",
			logger.Fingerprint(armedFP))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, _ = e.rotateLocked(ctx, armedFP)
}

// rotateLocked regenera clave+token con la config vigente. Si algo falla,
// el token y las claves actuales quedan intactos y se arma un único retry
// al delay fijo.
func (e *Engine) rotateLocked(ctx context.Context, fp string) (Status, error) {
	cfg := e.cfg
	log := e.log.With(logger.Fingerprint(fp), logger.Keyring(cfg.Keyring), logger.Phase("rotate"))

	if err := e.generateLocked(ctx, cfg, log); err != nil {
		rotationMetric("error")
		log.Error("rotation failed, scheduling retry",
			logger.Err(err), logger.Duration(RetryDelay))
		e.armLocked(ctx, RetryDelay, fp, log)
		return e.statusLocked(), err
	}

	// el intervalo se recalcula de la config vigente, que pudo cambiar
	e.armLocked(ctx, RotationInterval(cfg.ExpirationMinutes), fp, log)
	st := e.setReady("rotate", fp)
	rotationMetric("ok")
	return st, nil
}

func (e *Engine) statusLocked() Status {
	return e.status
}

func (e *Engine) setReady(branch, fp string) Status {
	e.status = Status{
		State:       StateReady,
		Branch:      branch,
		Fingerprint: fp,
		UpdatedAt:   time.Now().UTC(),
	}
	return e.status
}

func (e *Engine) setFailed(branch, fp, reason string) Status {
	e.status = Status{
		State:       StateFailed,
		Branch:      branch,
		Reason:      reason,
		Fingerprint: fp,
		UpdatedAt:   time.Now().UTC(),
	}
	return e.status
}
