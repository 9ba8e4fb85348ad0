package i18n

import "net/http"

// Middleware injects a localizer into every request context. The language
// is taken from Accept-Language when it matches a loaded locale, otherwise
// lang is used.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			langs := []string{lang}
			if m := Match(r.Header.Get("Accept-Language")); m != "" && m != lang {
				langs = append([]string{m}, langs...)
			}
			w.Header().Set("Content-Language", langs[0])
			ctx := WithLocalizer(r.Context(), NewLocalizer(langs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
