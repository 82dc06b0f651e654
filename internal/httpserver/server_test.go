package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-gate/internal/health"
	"github.com/keithlinneman/linnemanlabs-gate/internal/httpmw"
)

func serve(h http.Handler, method, target string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	req.RemoteAddr = "198.51.100.20:50000"
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func page(body string) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, body)
		})
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestNewHandler_HeadersOnEveryResponse(t *testing.T) {
	h := NewHandler(Options{Routes: page("hi")})
	for _, target := range []string{"/", "/missing", "/-/ready"} {
		rec := serve(h, http.MethodGet, target)
		if rec.Header().Get("Content-Security-Policy") == "" {
			t.Fatalf("%s: missing CSP", target)
		}
		if rec.Header().Get(httpmw.DefaultRequestIDHeader) == "" {
			t.Fatalf("%s: missing request id", target)
		}
	}
}

func TestNewHandler_RequestIDPropagated(t *testing.T) {
	h := NewHandler(Options{Routes: page("hi")})
	rec := serve(h, http.MethodGet, "/", httpmw.DefaultRequestIDHeader, "upstream-42")
	if got := rec.Header().Get(httpmw.DefaultRequestIDHeader); got != "upstream-42" {
		t.Fatalf("request id = %q", got)
	}
}

func TestNewHandler_Probes(t *testing.T) {
	h := NewHandler(Options{
		Health:    health.Fixed(true, ""),
		Readiness: health.Named("ratelimit", health.Fixed(false, "limiter not initialized")),
	})
	if rec := serve(h, http.MethodGet, "/-/healthy"); rec.Code != 200 || rec.Body.String() != "ok\n" {
		t.Fatalf("healthy = %d %q", rec.Code, rec.Body.String())
	}
	rec := serve(h, http.MethodGet, "/-/ready")
	if rec.Code != 503 || !strings.Contains(rec.Body.String(), "ratelimit: limiter not initialized") {
		t.Fatalf("ready = %d %q", rec.Code, rec.Body.String())
	}

	// without probes the paths fall through to the router's 404
	if rec := serve(NewHandler(Options{}), http.MethodGet, "/-/ready"); rec.Code != 404 {
		t.Fatalf("no probe = %d, want 404", rec.Code)
	}
}

func TestNewHandler_GateOnlyOnRoutes(t *testing.T) {
	gated := 0
	gate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gated++
			next.ServeHTTP(w, r)
		})
	}
	h := NewHandler(Options{
		Health: health.Fixed(true, ""),
		Routes: func(r chi.Router) {
			r.With(gate).Get("/", func(w http.ResponseWriter, _ *http.Request) {})
		},
	})
	serve(h, http.MethodGet, "/")
	serve(h, http.MethodGet, "/-/healthy")
	serve(h, http.MethodGet, "/missing")
	if gated != 1 {
		t.Fatalf("gate ran %d times, want 1", gated)
	}
}

func TestNewHandler_SiteHandlerFallback(t *testing.T) {
	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "page not found: "+r.Method, http.StatusNotFound)
	})
	h := NewHandler(Options{Routes: page("index"), SiteHandler: fallback})

	if rec := serve(h, http.MethodGet, "/nope"); !strings.Contains(rec.Body.String(), "page not found: GET") {
		t.Fatalf("404 body = %q", rec.Body.String())
	}
	if rec := serve(h, http.MethodPost, "/"); !strings.Contains(rec.Body.String(), "page not found: POST") {
		t.Fatalf("405 body = %q", rec.Body.String())
	}
	if rec := serve(h, http.MethodGet, "/"); rec.Body.String() != "index" {
		t.Fatalf("route body = %q", rec.Body.String())
	}
}

func TestNewHandler_Recover(t *testing.T) {
	boom := func(r chi.Router) {
		r.Get("/", func(http.ResponseWriter, *http.Request) { panic("limiter exploded") })
	}

	panics := 0
	h := NewHandler(Options{Routes: boom, UseRecoverMW: true, OnPanic: func() { panics++ }})
	rec := serve(h, http.MethodGet, "/")
	if rec.Code != http.StatusInternalServerError || panics != 1 {
		t.Fatalf("status = %d panics = %d", rec.Code, panics)
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("security headers must survive a recovered panic")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("panic should propagate without the recover middleware")
		}
	}()
	serve(NewHandler(Options{Routes: boom}), http.MethodGet, "/")
}

func TestNewHandler_MetricsMWSeesClientIP(t *testing.T) {
	var seen string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = httpmw.ClientIPFromContext(r.Context())
			next.ServeHTTP(w, r)
		})
	}
	h := NewHandler(Options{Routes: page("hi"), MetricsMW: mw})
	serve(h, http.MethodGet, "/")
	if seen != "198.51.100.20" {
		t.Fatalf("client ip = %q", seen)
	}
}

func TestNewHandler_Compression(t *testing.T) {
	h := NewHandler(Options{Routes: page(strings.Repeat("<p>too many requests</p>", 100))})

	if rec := serve(h, http.MethodGet, "/", "Accept-Encoding", "gzip"); rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
	if rec := serve(h, http.MethodGet, "/"); rec.Header().Get("Content-Encoding") != "" {
		t.Fatal("must not compress without Accept-Encoding")
	}
}

func TestNewHandler_RejectsLargeBody(t *testing.T) {
	h := NewHandler(Options{Routes: func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { _, _ = io.ReadAll(r.Body) })
	}})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", maxBodyBytes+1)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestUntraced(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", false},
		{"/missing", false},
		{"/-/healthy", true},
		{"/-/ready", true},
		{"/assets/site.css", true},
		{"/favicon.ico", true},
		{"/robots.txt", true},
		{"/other.svg", true},
	}
	for _, tt := range tests {
		if got := untraced(httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)); got != tt.want {
			t.Fatalf("untraced(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNewServer(t *testing.T) {
	h := http.NotFoundHandler()
	srv := NewServer(":9999", h)
	if srv.Addr != ":9999" || srv.Handler == nil {
		t.Fatalf("srv = %+v", srv)
	}
	if srv.ReadHeaderTimeout != DefaultReadHeaderTimeout ||
		srv.ReadTimeout != DefaultReadTimeout ||
		srv.WriteTimeout != DefaultWriteTimeout ||
		srv.IdleTimeout != DefaultIdleTimeout ||
		srv.MaxHeaderBytes != DefaultMaxHeaderBytes {
		t.Fatalf("timeouts not applied: %+v", srv)
	}
}

func TestStart_ServesAndStops(t *testing.T) {
	port := freePort(t)
	stop, err := Start(context.Background(), Options{Port: port, Routes: page("live")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "live" || resp.Header.Get(httpmw.DefaultRequestIDHeader) == "" {
		t.Fatalf("body = %q headers = %v", body, resp.Header)
	}

	if err := stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if _, err := http.Get(url); err == nil {
		t.Fatal("server still serving after stop")
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp4", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	_, err = Start(context.Background(), Options{Port: ln.Addr().(*net.TCPAddr).Port})
	if err == nil {
		t.Fatal("expected listen error")
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("err = %v, want a wrapped *net.OpError", err)
	}
}
