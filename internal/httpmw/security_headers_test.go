package httpmw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeaders_AllSet(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(noContent).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	for _, kv := range securityHeaders {
		if got := rec.Header().Get(kv[0]); got != kv[1] {
			t.Fatalf("%s = %q, want %q", kv[0], got, kv[1])
		}
	}
}

func TestSecurityHeaders_CSPAllowsOnlyLocalStyles(t *testing.T) {
	csp := contentSecurityPolicy
	if !strings.HasPrefix(csp, "default-src 'none'") {
		t.Fatalf("CSP should deny by default: %q", csp)
	}
	if !strings.Contains(csp, "style-src 'self'") {
		t.Fatalf("CSP must allow the stylesheet: %q", csp)
	}
	if strings.Contains(csp, "script-src") {
		t.Fatalf("pages have no scripts, CSP should not allow any: %q", csp)
	}
}

func TestSecurityHeaders_OnErrorResponses(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("security headers missing on 429")
	}
}
