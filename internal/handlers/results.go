package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

type resultSection struct {
	Title   string
	Content template.HTML
}

type resultsData struct {
	RunID    string
	Sections []resultSection
	Error    string
}

// HandleResults runs the same analysis as HandleProcess and answers the HTML fragment shown by the
// demonstration page, with each response rendered from Markdown.
func (m Main) HandleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := m.process(r)
	if err != nil {
		w.WriteHeader(statusFor(err))
		m.renderResults(w, resultsData{Error: err.Error()})
		return
	}

	data := resultsData{RunID: res.RunID}
	for _, s := range []struct {
		title string
		text  string
	}{
		{title: "Heatmap saliency", text: res.ResponseA.Text()},
		{title: "Cognitive load", text: res.ResponseB.Text()},
		{title: "Summary", text: res.ResponseC.Text()},
	} {
		content, err := m.renderMarkdown(s.text)
		if err != nil {
			m.logger.Error("Failed to render markdown",
				slog.String("section", s.title),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Sections = append(data.Sections, resultSection{Title: s.title, Content: content})
	}

	m.renderResults(w, data)
}

func (m Main) renderResults(w http.ResponseWriter, data resultsData) {
	if err := m.templates.ExecuteTemplate(w, "results", data); err != nil {
		m.logger.Error("Failed to render results", slog.String(errLoggerKey, err.Error()))
	}
}

// renderMarkdown converts a model response to HTML. Raw HTML in the response is escaped by the
// renderer, so the output is safe to embed.
func (m Main) renderMarkdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("error converting markdown: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // goldmark omits raw HTML unless WithUnsafe is set.
}
