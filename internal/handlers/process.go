package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/MegaGrindStone/ad-insights/internal/images"
	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/MegaGrindStone/ad-insights/internal/workflow"
	"github.com/google/uuid"
)

const maxMultipartMemory = 32 << 20

var (
	errImagesRequired = errors.New("image and heatmap files are required")
	errInvalidRunID   = errors.New("run_id must be a UUID")
)

type processResponse struct {
	ResponseA string `json:"response_a"`
	ResponseB string `json:"response_b"`
	ResponseC string `json:"response_c"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleProcess runs the analysis of an advert and its attention heatmap and returns the three
// responses as JSON.
//
// The images are given either by name, with the "image_name" and "heatmap_name" values resolved
// against the images directory, or uploaded as the multipart files "image_file" and "heatmap_file".
// An optional "run_id" UUID publishes the progress of the run on the /sse/runs stream.
//
// Missing or invalid input answers 400, a referenced file that doesn't exist answers 404 and a
// failed run answers 500.
func (m Main) HandleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	res, err := m.process(r)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		ResponseA: res.ResponseA.Text(),
		ResponseB: res.ResponseB.Text(),
		ResponseC: res.ResponseC.Text(),
	})
}

// process reads the images of the request and runs the analysis. It is shared by the JSON endpoint
// and the demonstration page.
func (m Main) process(r *http.Request) (workflow.Result, error) {
	if err := parseForm(r); err != nil {
		m.logger.Error("Failed to parse form", slog.String(errLoggerKey, err.Error()))
		return workflow.Result{}, err
	}

	runID := r.FormValue("run_id")
	if runID != "" {
		if _, err := uuid.Parse(runID); err != nil {
			return workflow.Result{}, errInvalidRunID
		}
	} else {
		runID = uuid.New().String()
	}
	logger := m.logger.With(slog.String("runID", runID))

	image, heatmap, err := m.inputImages(r, logger)
	if err != nil {
		logger.Error("Failed to read images", slog.String(errLoggerKey, err.Error()))
		return workflow.Result{}, err
	}
	logger.Info("Image and heatmap files read successfully")

	res, err := m.analyzer.Run(r.Context(), workflow.Input{
		RunID:    runID,
		Image:    image,
		Heatmap:  heatmap,
		Observer: progressPublisher{sseSrv: m.sseSrv, logger: logger},
	})
	m.publishRunEnd(runID, err)
	if err != nil {
		logger.Error("Failed to process images", slog.String(errLoggerKey, err.Error()))
		return workflow.Result{}, err
	}

	logger.Info("Processed images")
	return res, nil
}

func (m Main) inputImages(r *http.Request, logger *slog.Logger) (models.Attachment, models.Attachment, error) {
	imageName, heatmapName := r.FormValue("image_name"), r.FormValue("heatmap_name")
	if imageName != "" && heatmapName != "" {
		logger.Info("Loading image and heatmap from file names",
			slog.String("image", imageName),
			slog.String("heatmap", heatmapName))

		image, err := m.loader.Load(imageName)
		if err != nil {
			return models.Attachment{}, models.Attachment{}, err
		}
		heatmap, err := m.loader.Load(heatmapName)
		if err != nil {
			return models.Attachment{}, models.Attachment{}, err
		}
		return image, heatmap, nil
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File["image_file"]) > 0 && len(r.MultipartForm.File["heatmap_file"]) > 0 {
		logger.Info("Loading image and heatmap from file uploads")

		image, err := m.readUpload(r, "image_file")
		if err != nil {
			return models.Attachment{}, models.Attachment{}, err
		}
		heatmap, err := m.readUpload(r, "heatmap_file")
		if err != nil {
			return models.Attachment{}, models.Attachment{}, err
		}
		return image, heatmap, nil
	}

	logger.Info("Missing input",
		slog.String("image_name", imageName),
		slog.String("heatmap_name", heatmapName))
	return models.Attachment{}, models.Attachment{}, errImagesRequired
}

func (m Main) readUpload(r *http.Request, field string) (models.Attachment, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("%w: error opening %s: %w", errBadForm, field, err)
	}
	defer f.Close()

	m.logger.Info("Received upload",
		slog.String("field", field),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size))

	return m.loader.Read(header.Filename, f)
}

func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return fmt.Errorf("%w: %w", errBadForm, err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %w", errBadForm, err)
	}
	return nil
}

var errBadForm = errors.New("invalid form")

// statusFor maps an error of the ingress path to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, images.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errImagesRequired),
		errors.Is(err, errInvalidRunID),
		errors.Is(err, errBadForm),
		errors.Is(err, http.ErrMissingFile),
		errors.Is(err, images.ErrInvalidName),
		errors.Is(err, images.ErrNotImage),
		errors.Is(err, images.ErrEmpty),
		errors.Is(err, images.ErrUnreadable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
