// Package synth provides the voice-cloning speech synthesizer.
//
// The neural model (XTTS v2) runs in a standalone engine process; this package
// holds the HTTP client for that engine and the long-lived Synthesizer that the
// request handler shares.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// API endpoints and paths.
const (
	apiCloneSpeech = "/v1/clone/speech"
	apiHealth      = "/health"
)

// HTTP headers and content types.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeWAV    = "audio/wav"
)

// Form field names understood by the engine.
const (
	formFieldText           = "text"
	formFieldLanguage       = "language"
	formFieldModel          = "model"
	formFieldSplitSentences = "split_sentences"
	formFieldTemperature    = "temperature"
	formFieldSpeakerWAV     = "speaker_wav"
)

const (
	errFmtServiceErrorWithCode = "engine error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "engine returned non-OK status: %s, body: %s"
	maxErrorBodyBytes          = 64 << 10
)

// Static errors.
var (
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrSpeakerPathEmpty   = errors.New("speaker audio path cannot be empty")
	ErrLanguageEmpty      = errors.New("language cannot be empty")
	ErrEmptyAudio         = errors.New("received empty audio data")
	ErrUnexpectedContent  = errors.New("unexpected content type")
	ErrModelNotLoaded     = errors.New("engine reports model not loaded")
	ErrHealthCheckFailure = errors.New("health check failed")
)

// wavContentTypes are the media types engines use for WAV payloads.
var wavContentTypes = map[string]struct{}{
	"audio/wav":   {},
	"audio/x-wav": {},
	"audio/wave":  {},
}

// CloneRequest is one synthesis call to the engine.
type CloneRequest struct {
	Text           string
	SpeakerWAVPath string
	Language       string
	Model          string
	SplitSentences bool
	Temperature    float64
}

// ErrorResponse is the structured error body returned by the engine.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HealthResponse is the body of the engine health endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded *bool  `json:"model_loaded,omitempty"`
}

// Client talks to the voice-cloning engine over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the engine at baseURL (for example
// "http://127.0.0.1:8020"). The timeout applies to every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CloneSpeech uploads the reference speaker clip with the text and copies the
// returned WAV into dst. It returns the number of audio bytes written.
func (c *Client) CloneSpeech(ctx context.Context, req CloneRequest, dst io.Writer) (int64, error) {
	validationErr := validateCloneRequest(req)
	if validationErr != nil {
		return 0, validationErr
	}

	body, contentType, err := buildCloneForm(req)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiCloneSpeech, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentType)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to send request to engine at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, parseErrorResponse(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get(headerContentType))
	if _, ok := wavContentTypes[mediaType]; !ok {
		return 0, fmt.Errorf("%w: expected audio/wav, got %q", ErrUnexpectedContent, resp.Header.Get(headerContentType))
	}

	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		return written, fmt.Errorf("failed to read audio data: %w", err)
	}

	if written == 0 {
		return 0, ErrEmptyAudio
	}

	return written, nil
}

// HealthCheck verifies that the engine is running and has its model loaded.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w for engine at %s: %w", ErrHealthCheckFailure, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w with status: %s", ErrHealthCheckFailure, resp.Status)
	}

	var health HealthResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&health)
	if decodeErr == nil && health.ModelLoaded != nil && !*health.ModelLoaded {
		return ErrModelNotLoaded
	}

	return nil
}

func validateCloneRequest(req CloneRequest) error {
	if req.Text == "" {
		return ErrTextEmpty
	}

	if req.SpeakerWAVPath == "" {
		return ErrSpeakerPathEmpty
	}

	if req.Language == "" {
		return ErrLanguageEmpty
	}

	return nil
}

// buildCloneForm encodes the request as multipart form data. Speaker clips are
// a few seconds of audio, so buffering the form in memory is fine.
func buildCloneForm(req CloneRequest) (*bytes.Buffer, string, error) {
	speaker, err := os.Open(req.SpeakerWAVPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open speaker audio: %w", err)
	}
	defer speaker.Close()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	fields := []struct {
		name  string
		value string
	}{
		{formFieldText, req.Text},
		{formFieldLanguage, req.Language},
		{formFieldModel, req.Model},
		{formFieldSplitSentences, strconv.FormatBool(req.SplitSentences)},
		{formFieldTemperature, strconv.FormatFloat(req.Temperature, 'f', -1, 64)},
	}

	for _, field := range fields {
		if field.value == "" {
			continue
		}

		err = writer.WriteField(field.name, field.value)
		if err != nil {
			return nil, "", fmt.Errorf("failed to write %s field: %w", field.name, err)
		}
	}

	part, err := writer.CreateFormFile(formFieldSpeakerWAV, filepath.Base(req.SpeakerWAVPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	_, err = io.Copy(part, speaker)
	if err != nil {
		return nil, "", fmt.Errorf("failed to copy speaker audio: %w", err)
	}

	closeErr := writer.Close()
	if closeErr != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", closeErr)
	}

	return &buf, writer.FormDataContentType(), nil
}

// parseErrorResponse decodes a structured JSON error from the engine, falling
// back to the raw body so no diagnostic is lost.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
