package util

// MaskToken enmascara un token firmado para logs y respuestas de status.
// Deja un prefijo/sufijo corto para poder correlacionar sin exponer el valor.
func MaskToken(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 12 {
		return "***"
	}
	return s[:6] + "…" + s[len(s)-4:]
}
