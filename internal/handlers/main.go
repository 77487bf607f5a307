package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	adinsights "github.com/MegaGrindStone/ad-insights"
	"github.com/MegaGrindStone/ad-insights/internal/images"
	"github.com/MegaGrindStone/ad-insights/internal/workflow"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
)

// Analyzer runs the analysis of an advert and its heatmap. It is implemented by workflow.Workflow.
type Analyzer interface {
	Run(ctx context.Context, in workflow.Input) (workflow.Result, error)
}

// Main handles the HTTP surface of the service: the JSON ingress endpoint, the demonstration page
// and the server-sent events carrying the progress of runs.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	analyzer Analyzer
	loader   images.Loader

	logger *slog.Logger
}

const errLoggerKey = "err"

// NewMain creates a new Main instance with the provided Analyzer and image Loader. It initializes
// the SSE server used for run progress and parses the HTML templates from the embedded filesystem.
func NewMain(analyzer Analyzer, loader images.Loader, logger *slog.Logger) (Main, error) {
	tmpl, err := template.ParseFS(adinsights.TemplateFS, "templates/*.html")
	if err != nil {
		return Main{}, fmt.Errorf("error parsing templates: %w", err)
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				// A client follows a single run, identified by the run_id it also sends with the images.
				runID := s.Req.URL.Query().Get("run_id")
				if runID != "" {
					topics = append(topics, runIDTopic(runID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle("github")),
			),
		),
		analyzer: analyzer,
		loader:   loader,
		logger:   logger.With(slog.String("module", "handlers")),
	}, nil
}

// Handler returns the router of the service.
func (m Main) Handler(staticFS http.FileSystem) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(staticFS)))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/process", m.HandleProcess)
	mux.HandleFunc("/results", m.HandleResults)
	mux.HandleFunc("/sse/runs", m.HandleSSE)
	mux.HandleFunc("/health", m.HandleHealth)
	return mux
}

// HandleSSE serves the server-sent events stream of a run.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// HandleHealth reports that the service is up.
func (m Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeRun")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
