package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	processPath = "/process/"
	healthPath  = "/healthz"

	fieldSpeakerAudio   = "speaker_audio"
	fieldInputFile      = "input_file"
	headerAudioDuration = "X-Audio-Duration-Seconds"
	maxErrorBodyBytes   = 64 << 10
)

// ErrServiceRejected indicates a non-200 answer from the service.
var ErrServiceRejected = errors.New("service rejected request")

type serviceClient struct {
	baseURL    string
	httpClient *http.Client
}

type processResult struct {
	OutputPath      string
	DurationSeconds string
	Bytes           int64
}

func newServiceClient(baseURL string, timeout time.Duration) *serviceClient {
	return &serviceClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Process uploads both files and writes the returned WAV to outputPath. The
// multipart body is streamed so large documents are not held in memory.
func (c *serviceClient) Process(ctx context.Context, speakerPath, inputPath, outputPath string) (*processResult, error) {
	for _, path := range []string{speakerPath, inputPath} {
		_, statErr := os.Stat(path)
		if statErr != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, statErr)
		}
	}

	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)

	go func() {
		writeErr := writeForm(form, speakerPath, inputPath)
		bodyWriter.CloseWithError(writeErr)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, bodyReader)
	if err != nil {
		_ = bodyReader.Close()

		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach voiceclone-service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rejection(resp)
	}

	written, err := writeOutput(outputPath, resp.Body)
	if err != nil {
		return nil, err
	}

	return &processResult{
		OutputPath:      outputPath,
		DurationSeconds: resp.Header.Get(headerAudioDuration),
		Bytes:           written,
	}, nil
}

// Health returns the status reported by /healthz.
func (c *serviceClient) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach voiceclone-service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", rejection(resp)
	}

	var health struct {
		Status string `json:"status"`
	}

	decodeErr := json.NewDecoder(resp.Body).Decode(&health)
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode health response: %w", decodeErr)
	}

	return health.Status, nil
}

func writeForm(form *multipart.Writer, speakerPath, inputPath string) error {
	parts := []struct {
		field string
		path  string
	}{
		{fieldSpeakerAudio, speakerPath},
		{fieldInputFile, inputPath},
	}

	for _, part := range parts {
		err := copyFilePart(form, part.field, part.path)
		if err != nil {
			return err
		}
	}

	return form.Close()
}

func copyFilePart(form *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	part, err := form.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form part %s: %w", field, err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}

	return nil
}

func writeOutput(outputPath string, body io.Reader) (int64, error) {
	dirErr := os.MkdirAll(filepath.Dir(outputPath), 0o750)
	if dirErr != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	output, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	written, copyErr := io.Copy(output, body)
	closeErr := output.Close()

	if copyErr != nil {
		return 0, fmt.Errorf("failed to save audio: %w", copyErr)
	}

	if closeErr != nil {
		return 0, fmt.Errorf("failed to close output file: %w", closeErr)
	}

	return written, nil
}

// rejection turns an error response into ErrServiceRejected carrying the
// service's detail message when there is one.
func rejection(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var errorBody struct {
		Detail string `json:"detail"`
	}

	if json.Unmarshal(body, &errorBody) == nil && errorBody.Detail != "" {
		return fmt.Errorf("%w (%s): %s", ErrServiceRejected, resp.Status, errorBody.Detail)
	}

	return fmt.Errorf("%w (%s): %s", ErrServiceRejected, resp.Status, strings.TrimSpace(string(body)))
}
