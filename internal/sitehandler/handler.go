package sitehandler

import (
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
)

// Handler serves the gated landing page, the rate limited page, and static assets.
type Handler struct {
	opts Options

	// pages are small and immutable, read once at boot
	index  []byte
	denied []byte
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	index, err := fs.ReadFile(opts.Pages, opts.IndexFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrInvalidOptions, opts.IndexFile, err)
	}
	denied, err := fs.ReadFile(opts.Pages, opts.DeniedFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrInvalidOptions, opts.DeniedFile, err)
	}
	return &Handler{opts: opts, index: index, denied: denied}, nil
}

// ServeHTTP serves the index page. Admission is decided before this runs.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r) {
		return
	}
	w.Header().Set("Cache-Control", h.opts.HTMLCacheControl)
	h.writePage(w, r, http.StatusOK, h.index)
}

// ServeDenied serves the rate limited page with 429.
// Retry-After is owned by the limiter middleware.
func (h *Handler) ServeDenied(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	h.writePage(w, r, http.StatusTooManyRequests, h.denied)
}

// ServeAsset serves css/images/etc from the pages FS. Never rate limited,
// the denied page needs its stylesheet too.
func (h *Handler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r) {
		return
	}
	file, ok := resolveAsset(r.URL.Path, h.opts.Pages)
	if !ok {
		h.NotFound(w, r)
		return
	}
	if cc := cacheControlForFile(file, &h.opts); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}
	http.ServeFileFS(w, r, h.opts.Pages, file)
}

// NotFound is a plain 404 that is never cached.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("404 page not found"))
}

// hardening: only allow GET/HEAD
func allowMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		h.opts.Logger.Debug(r.Context(), "page write failed", "err", err)
	}
}
