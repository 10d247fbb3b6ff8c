package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"os"
	"strings"
)

// InternalOnly пускает только внутренние запросы. Если задан INTERNAL_SECRET, нужен
// X-Internal-Secret с тем же значением; иначе адрес соединения должен быть приватным.
// X-Real-Ip и X-Forwarded-For не учитываются: их может подставить кто угодно.
func InternalOnly(next http.Handler) http.Handler {
	secret := strings.TrimSpace(os.Getenv("INTERNAL_SECRET"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret != "" {
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Internal-Secret")), []byte(secret)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		} else if isPrivateIP(remoteIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	})
}

// remoteIP - RemoteAddr без порта.
func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func isPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
