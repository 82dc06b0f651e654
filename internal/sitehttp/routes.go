package sitehttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Pages is the page handler the routes delegate to (sitehandler.Handler).
type Pages interface {
	http.Handler
	ServeAsset(w http.ResponseWriter, r *http.Request)
	NotFound(w http.ResponseWriter, r *http.Request)
}

type Routes struct {
	Site Pages
	// Gate wraps the landing page only. Assets and 404s are never gated so the
	// denied page can still load its stylesheet.
	Gate func(http.Handler) http.Handler
}

func New(site Pages, gate func(http.Handler) http.Handler) *Routes {
	return &Routes{Site: site, Gate: gate}
}

// RegisterRoutes mounts the gated landing page, static assets, and the site 404.
// Pass it LAST so NotFound/MethodNotAllowed become the final fallback.
func (rt *Routes) RegisterRoutes(r chi.Router) {
	var page http.Handler = rt.Site
	if rt.Gate != nil {
		page = rt.Gate(page)
	}
	r.Method(http.MethodGet, "/", page)
	r.Method(http.MethodHead, "/", page)

	r.Get("/assets/*", rt.Site.ServeAsset)
	r.Head("/assets/*", rt.Site.ServeAsset)

	r.NotFound(rt.Site.NotFound)
	// the page handler answers 405 with Allow for anything but GET/HEAD
	r.MethodNotAllowed(rt.Site.ServeHTTP)
}
