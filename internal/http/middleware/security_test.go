package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveWith(opt SecurityOptions, req *http.Request) http.Header {
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("baseline only", func(t *testing.T) {
		h := serveWith(SecurityOptions{}, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if h.Get("X-Content-Type-Options") != "nosniff" ||
			h.Get("X-Frame-Options") != "DENY" ||
			h.Get("Referrer-Policy") != "no-referrer" {
			t.Fatalf("baseline headers missing: %#v", h)
		}
		if h.Get("Cache-Control") != "" || h.Get("Strict-Transport-Security") != "" {
			t.Fatalf("unexpected optional headers: %#v", h)
		}
	})

	t.Run("no-store", func(t *testing.T) {
		h := serveWith(SecurityOptions{NoStore: true}, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if h.Get("Cache-Control") != "no-store" {
			t.Fatalf("Cache-Control = %q", h.Get("Cache-Control"))
		}
	})

	t.Run("hsts skipped on plain http", func(t *testing.T) {
		h := serveWith(SecurityOptions{EnableHSTS: true}, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if h.Get("Strict-Transport-Security") != "" {
			t.Fatalf("HSTS must not be sent over http")
		}
	})

	t.Run("hsts default max-age via forwarded proto", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("X-Forwarded-Proto", "HTTPS")
		h := serveWith(SecurityOptions{EnableHSTS: true}, req)
		want := "max-age=" + strconv.Itoa(int((180 * 24 * time.Hour).Seconds())) + "; includeSubDomains"
		if got := h.Get("Strict-Transport-Security"); got != want {
			t.Fatalf("HSTS = %q; want %q", got, want)
		}
	})

	t.Run("hsts custom max-age via tls", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.TLS = &tls.ConnectionState{}
		h := serveWith(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, req)
		if got := h.Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains" {
			t.Fatalf("HSTS = %q", got)
		}
	})
}
