package sitehandler

import (
	"io/fs"
	"path"
	"strings"
)

// resolveAsset maps a URL path to a static asset within fsys.
// Pages are never reachable this way: they are only served through
// their own routes so the limiter cannot be sidestepped by naming the file.
func resolveAsset(urlPath string, fsys fs.FS) (string, bool) {
	p := urlPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	// basic rejection of ambiguous/unsafe paths
	if strings.Contains(p, "\x00") || strings.Contains(p, "\\") || strings.Contains(p, "..") {
		return "", false
	}
	if hasDotSegments(p) || strings.HasSuffix(p, "/") {
		return "", false
	}

	name := strings.TrimPrefix(path.Clean(p), "/")
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || ext == ".html" {
		return "", false
	}
	if !existsFile(fsys, name) {
		return "", false
	}
	return name, true
}

// hasDotSegments reports whether any path segment is "." or "..".
func hasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
