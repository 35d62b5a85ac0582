package middleware

import (
	"net/http"

	"golang.org/x/text/language"

	"readingclub/internal/i18n"
)

// Locale picks the response language from Accept-Language, falling back to def.
func Locale(def language.Tag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := def
			if header := r.Header.Get("Accept-Language"); header != "" {
				tag = i18n.Match(header)
			}
			w.Header().Set("Content-Language", tag.String())
			next.ServeHTTP(w, r.WithContext(i18n.WithTag(r.Context(), tag)))
		})
	}
}
