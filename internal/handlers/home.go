package handlers

import (
	"log/slog"
	"net/http"
)

type homePageData struct {
	Title string
}

// HandleHome serves the demonstration page. Every path other than the root answers 404.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := m.templates.ExecuteTemplate(w, "home.html", homePageData{Title: "Ad Insights"})
	if err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
