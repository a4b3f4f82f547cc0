// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"bytes"
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"strings"
	"time"
)

//go:embed web
var webAssets embed.FS

func init() {
	// Ensure MIME types are registered, as minimal environments might lack
	// /etc/mime.types.
	mime.AddExtensionType(".js", "application/javascript")
	mime.AddExtensionType(".css", "text/css")
	mime.AddExtensionType(".html", "text/html")
}

// dashboardHandler serves the embedded operator UI. Extensionless page
// routes resolve to their .html counterpart, so /logs serves logs.html and
// / serves index.html.
func (s *Server) dashboardHandler() http.Handler {
	assets, err := fs.Sub(webAssets, "web")
	if err != nil {
		s.logger.Error("embedded dashboard unavailable", "error", err)
		return http.NotFoundHandler()
	}
	fileServer := http.FileServer(http.FS(assets))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index"
		}

		if f, err := assets.Open(path); err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		// Served directly rather than through the file server, which
		// would redirect index.html back to "/".
		if !strings.Contains(path, ".") {
			if page, err := fs.ReadFile(assets, path+".html"); err == nil {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				http.ServeContent(w, r, path+".html", time.Time{}, bytes.NewReader(page))
				return
			}
		}

		http.NotFound(w, r)
	})
}
