package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leapstack-labs/tablescribe/internal/tabular"
)

// ExtractPrompt is the instruction sent with every table image.
const ExtractPrompt = "Analyze this image of a handwritten table. Extract the data into a clean CSV format. " +
	"Rules: 1. Output ONLY the raw CSV text. Do not include markdown formatting."

// ErrUnsupportedImage is returned for images that are not PNG, JPEG or WebP.
var ErrUnsupportedImage = errors.New("unsupported image type")

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// DetectImageType sniffs the MIME type of image data.
func DetectImageType(image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	mime := http.DetectContentType(image)
	if !imageTypes[mime] {
		return "", fmt.Errorf("%w: %s (expected PNG, JPEG or WebP)", ErrUnsupportedImage, mime)
	}
	return mime, nil
}

// Extractor turns a table image into CSV text.
type Extractor struct {
	gen    Generator
	logger *slog.Logger
}

// NewExtractor creates an extractor backed by gen.
func NewExtractor(gen Generator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{gen: gen, logger: logger}
}

// Extract sends the image with ExtractPrompt and returns the answer with any
// code fence removed. The text is not parsed here.
func (e *Extractor) Extract(ctx context.Context, image []byte) (string, error) {
	mime, err := DetectImageType(image)
	if err != nil {
		return "", err
	}

	e.logger.Debug("extracting table from image", slog.String("mime", mime), slog.Int("bytes", len(image)))
	text, err := e.gen.GenerateWithImage(ctx, ExtractPrompt, image, mime)
	if err != nil {
		return "", fmt.Errorf("failed to extract table: %w", err)
	}
	return strings.TrimSpace(tabular.StripCodeFence(text)), nil
}
