package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	// Register the decoders for the accepted upload formats.
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strings"

	"github.com/book-expert/logger"
)

// KindImage labels the OCR extractor in logs and metrics.
const KindImage = "image"

// ErrNoLanguages indicates that the OCR extractor was built without languages.
var ErrNoLanguages = errors.New("at least one OCR language is required")

// ImageExtractor recognizes text in JPEG and PNG images with the tesseract binary.
// All configured languages are recognized in a single pass.
type ImageExtractor struct {
	binaryPath string
	languages  string
	log        *logger.Logger
}

// NewImageExtractor creates an ImageExtractor. binaryPath may be a bare command
// name resolved through PATH.
func NewImageExtractor(binaryPath string, languages []string, log *logger.Logger) (*ImageExtractor, error) {
	if len(languages) == 0 {
		return nil, ErrNoLanguages
	}

	return &ImageExtractor{
		binaryPath: binaryPath,
		languages:  strings.Join(languages, "+"),
		log:        log,
	}, nil
}

// Kind returns KindImage.
func (e *ImageExtractor) Kind() string {
	return KindImage
}

// Extract returns the recognized text trimmed of surrounding whitespace.
func (e *ImageExtractor) Extract(ctx context.Context, path string) (string, error) {
	decodeErr := checkImage(path)
	if decodeErr != nil {
		return "", imageFailure(decodeErr)
	}

	output, err := e.recognize(ctx, path)
	if err != nil {
		e.log.Warn("OCR failed for '%s': %v", path, err)

		return "", imageFailure(err)
	}

	text := strings.TrimSpace(output)
	if text == "" {
		return "", &Failure{Message: MsgNoImageText, Cause: nil}
	}

	e.log.Info("Recognized %d characters (languages: %s)", len(text), e.languages)

	return text, nil
}

func (e *ImageExtractor) recognize(ctx context.Context, path string) (string, error) {
	var stdout, stderr bytes.Buffer

	// #nosec G204 -- binary path and languages come from service configuration
	cmd := exec.CommandContext(ctx, e.binaryPath, path, "stdout", "-l", e.languages)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("tesseract failed: %w: %s", err, detail)
		}

		return "", fmt.Errorf("tesseract failed: %w", err)
	}

	return stdout.String(), nil
}

// checkImage decodes the image header so non-images fail before OCR runs.
func checkImage(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	_, _, err = image.DecodeConfig(file)
	if err != nil {
		return fmt.Errorf("cannot identify image file: %w", err)
	}

	return nil
}
