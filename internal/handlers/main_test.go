package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	adinsights "github.com/MegaGrindStone/ad-insights"
	"github.com/MegaGrindStone/ad-insights/internal/handlers"
	"github.com/MegaGrindStone/ad-insights/internal/images"
	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/MegaGrindStone/ad-insights/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR advert")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00 heatmap")
)

type mockAnalyzer struct {
	mu     sync.Mutex
	inputs []workflow.Input

	result workflow.Result
	err    error
}

func (m *mockAnalyzer) Run(_ context.Context, in workflow.Input) (workflow.Result, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()

	if m.err != nil {
		return workflow.Result{}, m.err
	}
	res := m.result
	res.RunID = in.RunID
	return res, nil
}

func (m *mockAnalyzer) lastInput(t *testing.T) workflow.Input {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.inputs, "analyzer was not called")
	return m.inputs[len(m.inputs)-1]
}

func (m *mockAnalyzer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

func newResult(a, b, c string) workflow.Result {
	return workflow.Result{
		ResponseA: models.TextMessage(models.RoleAssistant, a),
		ResponseB: models.TextMessage(models.RoleAssistant, b),
		ResponseC: models.TextMessage(models.RoleAssistant, c),
	}
}

func newTestServer(t *testing.T, analyzer handlers.Analyzer) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := images.NewLoaderFS(fstest.MapFS{
		"advert.png":        {Data: pngData},
		"heatmap.jpg":       {Data: jpegData},
		"nested/advert.png": {Data: pngData},
		"notes.html":        {Data: []byte("<!DOCTYPE html><html><body>hi</body></html>")},
	}, logger)

	main, err := handlers.NewMain(analyzer, loader, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = main.Shutdown(context.Background())
	})

	staticFS, err := fs.Sub(adinsights.StaticFS, "static")
	require.NoError(t, err)

	return main.Handler(http.FS(staticFS))
}

func multipartBody(t *testing.T, files map[string][]byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".bin")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleProcessByName(t *testing.T) {
	analyzer := &mockAnalyzer{result: newResult("saliency", "load", "summary")}
	srv := newTestServer(t, analyzer)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, formRequest("/process", url.Values{
		"image_name":   {"advert.png"},
		"heatmap_name": {"heatmap.jpg"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, map[string]string{
		"response_a": "saliency",
		"response_b": "load",
		"response_c": "summary",
	}, body)

	in := analyzer.lastInput(t)
	assert.Equal(t, pngData, in.Image.Data)
	assert.Equal(t, "image/png", in.Image.MIMEType)
	assert.Equal(t, jpegData, in.Heatmap.Data)
	assert.Equal(t, "image/jpeg", in.Heatmap.MIMEType)
	assert.NotEmpty(t, in.RunID)
	assert.NotNil(t, in.Observer)
}

func TestHandleProcessByQuery(t *testing.T) {
	analyzer := &mockAnalyzer{result: newResult("a", "b", "c")}
	srv := newTestServer(t, analyzer)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/process?image_name=nested/advert.png&heatmap_name=heatmap.jpg", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngData, analyzer.lastInput(t).Image.Data)
}

func TestHandleProcessUpload(t *testing.T) {
	analyzer := &mockAnalyzer{result: newResult("a", "b", "c")}
	srv := newTestServer(t, analyzer)

	runID := "5f0c7c0e-8a47-4b6e-9d6f-3f4b0a1f2c3d"
	body, contentType := multipartBody(t, map[string][]byte{
		"image_file":   pngData,
		"heatmap_file": jpegData,
	}, map[string]string{"run_id": runID})

	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c", decodeJSON(t, rec)["response_c"])

	in := analyzer.lastInput(t)
	assert.Equal(t, runID, in.RunID)
	assert.Equal(t, pngData, in.Image.Data)
	assert.Equal(t, jpegData, in.Heatmap.Data)
}

func TestHandleProcessErrors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
	}{
		{
			name: "method not allowed",
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/process", nil)
			},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name: "no input",
			req: func(*testing.T) *http.Request {
				return formRequest("/process", url.Values{})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "only image name",
			req: func(*testing.T) *http.Request {
				return formRequest("/process", url.Values{"image_name": {"advert.png"}})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "only image upload",
			req: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, map[string][]byte{"image_file": pngData}, nil)
				req := httptest.NewRequest(http.MethodPost, "/process", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "image not found",
			req: func(*testing.T) *http.Request {
				return formRequest("/process", url.Values{
					"image_name":   {"missing.png"},
					"heatmap_name": {"heatmap.jpg"},
				})
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "heatmap not found",
			req: func(*testing.T) *http.Request {
				return formRequest("/process", url.Values{
					"image_name":   {"advert.png"},
					"heatmap_name": {"missing.jpg"},
				})
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "path traversal",
			req: func(*testing.T) *http.Request {
				return formRequest("/process", url.Values{
					"image_name":   {"../advert.png"},
					"heatmap_name": {"heatmap.jpg"},
				})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "absolute path",
			req: func(*testing.T) *http.Request {
				return formRequest("/process", url.Values{
					"image_name":   {"/etc/passwd"},
					"heatmap_name": {"heatmap.jpg"},
				})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "not an image",
			req: func(*testing.T) *http.Request {
				return formRequest("/process", url.Values{
					"image_name":   {"notes.html"},
					"heatmap_name": {"heatmap.jpg"},
				})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "empty upload",
			req: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, map[string][]byte{
					"image_file":   {},
					"heatmap_file": jpegData,
				}, nil)
				req := httptest.NewRequest(http.MethodPost, "/process", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid run id",
			req: func(*testing.T) *http.Request {
				return formRequest("/process", url.Values{
					"image_name":   {"advert.png"},
					"heatmap_name": {"heatmap.jpg"},
					"run_id":       {"not-a-uuid"},
				})
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &mockAnalyzer{result: newResult("a", "b", "c")}
			srv := newTestServer(t, analyzer)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, tt.req(t))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, decodeJSON(t, rec)["error"])
			assert.Zero(t, analyzer.calls(), "analyzer must not run on invalid input")
		})
	}
}

func TestHandleProcessWorkflowFailure(t *testing.T) {
	analyzer := &mockAnalyzer{err: errors.New("task A: heatmap_saliency: error processing the prompt")}
	srv := newTestServer(t, analyzer)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, formRequest("/process", url.Values{
		"image_name":   {"advert.png"},
		"heatmap_name": {"heatmap.jpg"},
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeJSON(t, rec)
	assert.Contains(t, body["error"], "heatmap_saliency")
	assert.NotContains(t, body, "response_a")
}

func TestHandleResults(t *testing.T) {
	analyzer := &mockAnalyzer{result: newResult("**salient** logo", "load is `low`", "# Summary")}
	srv := newTestServer(t, analyzer)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, formRequest("/results", url.Values{
		"image_name":   {"advert.png"},
		"heatmap_name": {"heatmap.jpg"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "<strong>salient</strong>")
	assert.Contains(t, html, "<code>low</code>")
	assert.Contains(t, html, "<h1>Summary</h1>")
	assert.Contains(t, html, "Cognitive load")
}

func TestHandleResultsEscapesRawHTML(t *testing.T) {
	analyzer := &mockAnalyzer{result: newResult("<script>alert(1)</script>", "b", "c")}
	srv := newTestServer(t, analyzer)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, formRequest("/results", url.Values{
		"image_name":   {"advert.png"},
		"heatmap_name": {"heatmap.jpg"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
}

func TestHandleResultsError(t *testing.T) {
	srv := newTestServer(t, &mockAnalyzer{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, formRequest("/results", url.Values{
		"image_name":   {"missing.png"},
		"heatmap_name": {"heatmap.jpg"},
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="error"`)
}

func TestHandleHome(t *testing.T) {
	srv := newTestServer(t, &mockAnalyzer{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="image_file"`)
	assert.Contains(t, rec.Body.String(), `name="heatmap_file"`)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStatic(t *testing.T) {
	srv := newTestServer(t, &mockAnalyzer{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &mockAnalyzer{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON(t, rec)["status"])
}
