package middleware

import "net/http"

// HideQueryToken переносит ?token= (WebSocket из браузера) в Authorization и убирает
// его из URL, чтобы токен сессии не попадал в access-лог. Ставится перед Logger.
func HideQueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		token := q.Get("token")
		if !q.Has("token") {
			next.ServeHTTP(w, r)
			return
		}
		q.Del("token")
		r2 := r.Clone(r.Context())
		r2.URL.RawQuery = q.Encode()
		r2.RequestURI = r2.URL.RequestURI()
		if token != "" && r2.Header.Get("Authorization") == "" {
			r2.Header.Set("Authorization", "Bearer "+token)
		}
		next.ServeHTTP(w, r2)
	})
}
