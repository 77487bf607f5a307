// Package images loads the advert and heatmap images handed to the workflow, either from a local
// directory or from uploads.
package images

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/MegaGrindStone/ad-insights/internal/models"
)

// MaxSize is the size above which an image is reported as too large. Images above it are still
// passed through unchanged.
const MaxSize = 20 * 1024 * 1024

// DefaultMIMEType is used when neither the content nor the file name reveal an image type.
const DefaultMIMEType = "image/png"

var (
	// ErrNotFound is returned when a referenced image doesn't exist in the images directory.
	ErrNotFound = errors.New("image not found")
	// ErrInvalidName is returned for names escaping the images directory.
	ErrInvalidName = errors.New("invalid image name")
	// ErrNotImage is returned when the content is recognised as something other than an image.
	ErrNotImage = errors.New("content is not an image")
	// ErrEmpty is returned for empty payloads.
	ErrEmpty = errors.New("image is empty")
	// ErrUnreadable is returned when an upload cannot be read to the end.
	ErrUnreadable = errors.New("image upload is unreadable")
)

// Loader turns files and uploads into attachments.
type Loader struct {
	dir fs.FS

	logger *slog.Logger
}

// NewLoader creates a Loader resolving image names against dir.
func NewLoader(dir string, logger *slog.Logger) Loader {
	return NewLoaderFS(os.DirFS(dir), logger)
}

// NewLoaderFS creates a Loader resolving image names against fsys.
func NewLoaderFS(fsys fs.FS, logger *slog.Logger) Loader {
	return Loader{
		dir:    fsys,
		logger: logger.With(slog.String("module", "images")),
	}
}

// Load reads the image called name from the images directory.
func (l Loader) Load(name string) (models.Attachment, error) {
	if name == "" || !filepath.IsLocal(name) {
		return models.Attachment{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	data, err := fs.ReadFile(l.dir, path.Clean(filepath.ToSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Attachment{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return models.Attachment{}, fmt.Errorf("error reading image %s: %w", name, err)
	}

	return l.attachment(name, data)
}

// Read reads an uploaded image. name is the client-supplied file name, only used to guess the type
// when the content is inconclusive.
func (l Loader) Read(name string, r io.Reader) (models.Attachment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("%w: error reading upload %s: %w", ErrUnreadable, name, err)
	}

	l.logger.Info("Reading image file", slog.String("name", name), slog.Int("size", len(data)))

	return l.attachment(name, data)
}

func (l Loader) attachment(name string, data []byte) (models.Attachment, error) {
	if len(data) == 0 {
		return models.Attachment{}, fmt.Errorf("%w: %s", ErrEmpty, name)
	}

	mimeType, err := DetectMIMEType(name, data)
	if err != nil {
		return models.Attachment{}, err
	}

	if len(data) > MaxSize {
		data = l.Resize(name, data)
	}

	return models.NewAttachment(mimeType, data), nil
}

// Resize is expected to shrink images above MaxSize. Resizing is not implemented: it logs the
// oversized image and returns data unchanged.
func (l Loader) Resize(name string, data []byte) []byte {
	l.logger.Warn("Image size is too large. Must be less than 20 MB in size.",
		slog.String("name", name),
		slog.Int("size", len(data)),
		slog.Int("maxSize", MaxSize))
	return data
}

// DetectMIMEType returns the image type of data. The content is sniffed first; when it is
// inconclusive binary data the extension of name is used, then DefaultMIMEType. Content recognised
// as a non-image type, text included, is rejected with ErrNotImage.
func DetectMIMEType(name string, data []byte) (string, error) {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	// Only unrecognised binary content is inconclusive; text is never an image.
	if sniffed != "application/octet-stream" {
		return "", fmt.Errorf("%w: %s is %s", ErrNotImage, name, sniffed)
	}

	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(name))); strings.HasPrefix(byExt, "image/") {
		return byExt, nil
	}

	return DefaultMIMEType, nil
}
