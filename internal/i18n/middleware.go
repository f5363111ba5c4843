package i18n

import "net/http"

// Middleware picks the response language for each request. An explicit
// ?lang= parameter wins over Accept-Language, and fallback is used when
// neither names a loaded locale.
func Middleware(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			langs := make([]string, 0, 3)
			if q := r.URL.Query().Get("lang"); q != "" {
				langs = append(langs, q)
			}
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				langs = append(langs, accept)
			}
			langs = append(langs, fallback)
			ctx := WithLocalizer(r.Context(), NewLocalizer(langs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
