package admin

import (
	"embed"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

//go:embed static
var static embed.FS

// HandleRedirect sends /admin to /admin/ so the panel's relative paths resolve.
func (h *Handler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "http://"+r.Host+"/admin/", http.StatusFound)
}

// HandlePanel serves the admin panel
// GET /admin/*
// Scripts (*.js) are only available in dev mode; every other path gets index.html.
func (h *Handler) HandlePanel(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "*")

	if path.Ext(resource) == ".js" {
		if !h.devMode {
			http.NotFound(w, r)
			return
		}
		h.serveFile(w, r, resource, "application/javascript")
		return
	}

	if h.devMode {
		h.serveFile(w, r, "index.html", "text/html; charset=utf-8")
		return
	}

	index, err := static.ReadFile("static/index.html")
	if err != nil {
		h.logger.Error("embedded admin panel missing", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(index) //nolint:errcheck
}

// serveFile reads name from the admin directory. Paths cannot escape it.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, name, contentType string) {
	clean := path.Clean("/" + name)
	data, err := os.ReadFile(filepath.Join(h.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))))
	if err != nil {
		h.logger.Debug("admin asset not found", "path", clean, "error", err)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data) //nolint:errcheck
}

// HandleFavicon serves the embedded favicon
// GET /favicon.ico
func (h *Handler) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	icon, err := static.ReadFile("static/favicon.png")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(icon)))
	w.Write(icon) //nolint:errcheck
}
