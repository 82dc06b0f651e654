package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type Options struct {
	Logger log.Logger
	// embedded pages and their assets
	Pages fs.FS

	// file names inside Pages (relative path)
	IndexFile  string // default: "index.html"
	DeniedFile string // default: "error.html"

	// Cache policies applied by file extension.
	// Pages are no-store so a shared cache can never answer in place of the limiter.
	HTMLCacheControl  string // default: "no-store"
	AssetCacheControl string // default: "public, max-age=86400"
	OtherCacheControl string // default: "public, max-age=3600"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.IndexFile == "" {
		o.IndexFile = "index.html"
	}
	if o.DeniedFile == "" {
		o.DeniedFile = "error.html"
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-store"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=86400"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
}

func (o *Options) validate() error {
	if o.Pages == nil {
		return fmt.Errorf("%w: Pages is nil", ErrInvalidOptions)
	}
	// fail fast on boot if mispackaged
	for _, name := range []string{o.IndexFile, o.DeniedFile} {
		if !existsFile(o.Pages, name) {
			return fmt.Errorf("%w: missing %q in pages FS", ErrInvalidOptions, name)
		}
	}
	return nil
}
