package server

import (
	"net/http"
	"os"
	"strings"
)

// SPAMiddleware serves the citizen web app for any path the API does not
// handle. Static assets are served from staticPath; unknown paths fall back
// to index.html so client-side routing works on deep links.
func SPAMiddleware(next http.Handler, staticPath, indexPath string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") ||
			r.URL.Path == "/healthz" ||
			r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		// App entry points always get the shell
		if r.URL.Path == "/" || r.URL.Path == "/admin" || r.URL.Path == "/supervisor" {
			http.ServeFile(w, r, indexPath)
			return
		}

		// Unknown static paths fall back to index.html for the client router
		if _, err := os.Stat(staticPath + r.URL.Path); os.IsNotExist(err) {
			http.ServeFile(w, r, indexPath)
			return
		}

		http.FileServer(http.Dir(staticPath)).ServeHTTP(w, r)
	})
}
