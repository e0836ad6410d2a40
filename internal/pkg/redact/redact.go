// redact маскирует персональные данные и секреты перед записью в лог.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Email оставляет первые две руны локальной части и домен целиком.
// Строки без единственного '@' заменяются на "***".
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	runes := []rune(local)
	if len(runes) > 2 {
		return string(runes[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Fingerprint возвращает короткий отпечаток секрета (первые 8 байт SHA-256 в hex).
// По отпечатку можно сопоставить записи лога, не раскрывая сам секрет.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}
