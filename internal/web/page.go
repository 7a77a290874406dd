package web

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/hrimport/internal/core"
	"github.com/JonMunkholm/hrimport/internal/web/templates"
)

// handleUploadPage serves the operator form with the column reference.
func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	page := templates.UploadPage(templates.UploadPageParams{
		Columns:    core.AllColumns(),
		RequireKey: s.cfg.Security.RequireAPIKey,
	})
	templ.Handler(page).ServeHTTP(w, r)
}
