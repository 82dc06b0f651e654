package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

// pages/ must contain index.html and error.html; sitehandler.New fails on boot otherwise
//
//go:embed pages
var embedded embed.FS

// PagesFS returns the embedded pages rooted at pages/.
func PagesFS() fs.FS {
	sub, err := fs.Sub(embedded, "pages")
	if err != nil {
		panic(fmt.Errorf("webassets: pages subfs: %w", err))
	}
	return sub
}
