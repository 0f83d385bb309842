package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar HTTP

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Campos estándar de dominio

// Keyring crea un campo para el keyring sobre el que se opera.
func Keyring(v string) zap.Field {
	return zap.String("keyring", v)
}

// KID crea un campo para el identificador de una signing key.
func KID(v string) zap.Field {
	return zap.String("kid", v)
}

// Fingerprint crea un campo para el fingerprint de configuración.
func Fingerprint(v string) zap.Field {
	return zap.String("fingerprint", v)
}

// Phase crea un campo para la fase del ciclo (bootstrap, regenerate, reuse, rotate).
func Phase(v string) zap.Field {
	return zap.String("phase", v)
}

// Handle crea un campo para el handle de un timer de rotación.
func Handle(v string) zap.Field {
	return zap.String("handle", v)
}

// ExpiresAt crea un campo para un timestamp de expiración.
func ExpiresAt(v time.Time) zap.Field {
	return zap.Time("expires_at", v)
}

// Campos estándar de sistema

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}
