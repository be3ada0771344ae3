package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey identifies the detected locale in a request context.
var LocaleKey = localeContextKey{}

// Locale resolves the caller's locale from the X-Locale header or the
// Accept-Language header and stores it on the request context. The locale is
// threaded into generation prompt context downstream.
func Locale(defaultLocale string) func(http.Handler) http.Handler {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the detected locale, or empty when none is set.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return ""
}

func detectLocale(r *http.Request, fallback string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return normalizeLocale(v, fallback)
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		tags, _, err := language.ParseAcceptLanguage(header)
		if err == nil && len(tags) > 0 {
			base, _ := tags[0].Base()
			return base.String()
		}
	}
	return fallback
}

func normalizeLocale(raw, fallback string) string {
	tag, err := language.Parse(raw)
	if err != nil {
		return fallback
	}
	base, _ := tag.Base()
	return base.String()
}
