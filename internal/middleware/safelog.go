package middleware

import "strings"

// MaskSessionID маскирует session_id в логах (в prod не светить полный id).
func MaskSessionID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}

// MaskEmail оставляет первую букву локальной части и домен: a***@x.io.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
