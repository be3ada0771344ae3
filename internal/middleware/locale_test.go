package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "ID")
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			fallback: "en",
			want:     "id",
		},
		{
			name: "accept-language used",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			fallback: "id",
			want:     "en",
		},
		{
			name: "accept-language quality ordering",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "id-ID,en;q=0.8")
			},
			fallback: "en",
			want:     "id",
		},
		{
			name: "invalid x-locale falls back",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "!!!")
			},
			fallback: "en",
			want:     "en",
		},
		{
			name:     "no headers uses fallback",
			fallback: "en",
			want:     "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLocale(req, tc.fallback)
			if got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocaleMiddlewareStoresContextValue(t *testing.T) {
	var got string
	h := Locale("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "fr" {
		t.Fatalf("locale in context = %q, want %q", got, "fr")
	}
}

func TestLocaleFromContext(t *testing.T) {
	if got := LocaleFromContext(context.Background()); got != "" {
		t.Fatalf("LocaleFromContext() default = %q, want empty", got)
	}
	ctx := context.WithValue(context.Background(), LocaleKey, "id")
	if got := LocaleFromContext(ctx); got != "id" {
		t.Fatalf("LocaleFromContext() with value = %q", got)
	}
}
