package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsSecureRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  bool
	}{
		{name: "plain http", setup: func(r *http.Request) {}, want: false},
		{name: "tls", setup: func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, want: true},
		{name: "forwarded proto", setup: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, want: true},
		{name: "forwarded http", setup: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "http") }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
			tt.setup(r)
			if got := IsSecureRequest(r); got != tt.want {
				t.Errorf("IsSecureRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateSessionCookie(t *testing.T) {
	expires := time.Now().Add(time.Hour)

	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	c := CreateSessionCookie(r, AccessCookieName, "token", expires)
	if !c.HttpOnly || c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("unexpected plain-http cookie flags: %+v", c)
	}

	r.Header.Set("X-Forwarded-Proto", "https")
	c = CreateSessionCookie(r, AccessCookieName, "token", expires)
	if !c.Secure || c.SameSite != http.SameSiteNoneMode {
		t.Errorf("unexpected https cookie flags: %+v", c)
	}

	d := CreateDeleteCookie(r, RefreshCookieName)
	if d.MaxAge != -1 || d.Value != "" || d.Name != RefreshCookieName {
		t.Errorf("unexpected delete cookie: %+v", d)
	}
}
