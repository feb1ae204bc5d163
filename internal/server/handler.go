package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voiceclone-service/internal/audio"
	"github.com/book-expert/voiceclone-service/internal/core"
	"github.com/book-expert/voiceclone-service/internal/extract"
	"github.com/book-expert/voiceclone-service/internal/scratch"
	"github.com/book-expert/voiceclone-service/internal/text"
)

// Multipart field names of the /process endpoint.
const (
	FieldSpeakerAudio = "speaker_audio"
	FieldInputFile    = "input_file"
)

const (
	// HeaderAudioDuration carries the length of the returned clip.
	HeaderAudioDuration = "X-Audio-Duration-Seconds"

	contentTypeWAV       = "audio/wav"
	outputDisposition    = `attachment; filename="output.wav"`
	outputFileName       = "output.wav"
	roleSpeaker          = "speaker"
	roleInput            = "input"
	multipartMemoryBytes = 32 << 20
	archiveTimeout       = 30 * time.Second

	msgSynthesisPrefix = "Error during speech generation: "
	msgBodyTooLarge    = "Upload exceeds the configured size limit."
	msgMissingFieldFmt = "Missing required form field: %s"
	msgInvalidFormFmt  = "Invalid multipart form: %v"
)

// errSynthesis marks failures that happened while producing audio.
var errSynthesis = errors.New("synthesis failed")

// ProcessHandler turns an uploaded document into speech in the voice of an
// uploaded speaker clip.
type ProcessHandler struct {
	scratch        *scratch.Store
	extractors     *extract.Registry
	normalizer     *text.Normalizer
	synthesizer    core.Synthesizer
	archiver       core.Archiver
	metrics        *Metrics
	maxUploadBytes int64
	log            *logger.Logger
}

// result is a finished synthesis ready to send.
type result struct {
	audio    []byte
	duration time.Duration
}

// ServeHTTP implements http.Handler.
func (h *ProcessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.metrics.inFlight.Inc()
	defer h.metrics.inFlight.Dec()

	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		h.log.Error("Recovered panic while processing request: %v", recovered)
		h.metrics.requests.WithLabelValues(outcomeInternalError).Inc()
		writeError(w, fmt.Errorf("%v", recovered))
	}()

	res, err := h.process(w, r)
	if err != nil {
		h.metrics.requests.WithLabelValues(outcomeFor(err)).Inc()
		h.log.Warn("Request failed: %v", err)
		writeError(w, err)

		return
	}

	h.metrics.requests.WithLabelValues(outcomeSuccess).Inc()

	w.Header().Set(headerContentType, contentTypeWAV)
	w.Header().Set("Content-Disposition", outputDisposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.audio)))
	w.Header().Set(HeaderAudioDuration, strconv.FormatFloat(res.duration.Seconds(), 'f', 3, 64))
	w.WriteHeader(http.StatusOK)

	_, writeErr := w.Write(res.audio)
	if writeErr != nil {
		h.log.Warn("Failed to write audio response: %v", writeErr)
	}
}

func (h *ProcessHandler) process(w http.ResponseWriter, r *http.Request) (*result, error) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	err := r.ParseMultipartForm(multipartMemoryBytes)
	if err != nil {
		return nil, formError(err)
	}

	defer func() { _ = r.MultipartForm.RemoveAll() }()

	speaker, speakerHeader, err := formFile(r, FieldSpeakerAudio)
	if err != nil {
		return nil, err
	}
	defer speaker.Close()

	input, inputHeader, err := formFile(r, FieldInputFile)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	extractor, err := h.extractors.ForFilename(inputHeader.Filename)
	if err != nil {
		return nil, newHTTPError(http.StatusBadRequest, extract.MsgUnsupportedType, err)
	}

	workspace, err := h.scratch.NewWorkspace()
	if err != nil {
		return nil, err
	}
	defer workspace.Close()

	speakerPath, err := workspace.Save(roleSpeaker, speakerHeader.Filename, speaker)
	if err != nil {
		return nil, err
	}

	inputPath, err := workspace.Save(roleInput, inputHeader.Filename, input)
	if err != nil {
		return nil, err
	}

	h.log.Info("Request %s: %s input %q with speaker %q",
		workspace.ID, extractor.Kind(), inputHeader.Filename, speakerHeader.Filename)

	content, err := h.extractText(r.Context(), extractor, inputPath)
	if err != nil {
		return nil, err
	}

	outputPath := workspace.Path(outputFileName)

	info, err := h.synthesize(r.Context(), core.SynthesisRequest{
		Text:        content,
		SpeakerPath: speakerPath,
		OutputPath:  outputPath,
	})
	if err != nil {
		return nil, err
	}

	audioData, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	h.archive(r.Context(), workspace.ID, audioData)

	h.log.Info("Request %s: produced %s of audio from %d characters",
		workspace.ID, info.Duration.Round(time.Millisecond), len(content))

	return &result{audio: audioData, duration: info.Duration}, nil
}

func (h *ProcessHandler) extractText(ctx context.Context, extractor core.Extractor, path string) (string, error) {
	started := time.Now()
	content, err := extractor.Extract(ctx, path)
	h.metrics.extractionDuration.WithLabelValues(extractor.Kind()).Observe(time.Since(started).Seconds())

	if err != nil {
		var failure *extract.Failure
		if errors.As(err, &failure) {
			return "", newHTTPError(http.StatusBadRequest, failure.Message, err)
		}

		return "", err
	}

	if h.normalizer != nil {
		content = h.normalizer.Normalize(content)
	}

	return content, nil
}

func (h *ProcessHandler) synthesize(ctx context.Context, req core.SynthesisRequest) (audio.Info, error) {
	started := time.Now()
	err := h.synthesizer.Synthesize(ctx, req)
	h.metrics.synthesisDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		return audio.Info{}, synthesisError(err)
	}

	info, err := audio.InspectFile(req.OutputPath)
	if err != nil {
		return audio.Info{}, synthesisError(err)
	}

	return info, nil
}

// archive hands the audio to the archiver. Failures never reach the client.
func (h *ProcessHandler) archive(ctx context.Context, requestID string, audioData []byte) {
	if h.archiver == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	err := h.archiver.Archive(ctx, requestID, audioData)
	if err != nil {
		h.metrics.archiveFailures.Inc()
		h.log.Error("Failed to archive audio for request %s: %v", requestID, err)
	}
}

func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, newHTTPError(http.StatusBadRequest, fmt.Sprintf(msgMissingFieldFmt, field), err)
		}

		return nil, nil, fmt.Errorf("failed to read form field %s: %w", field, err)
	}

	return file, header, nil
}

func formError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return newHTTPError(http.StatusRequestEntityTooLarge, msgBodyTooLarge, err)
	}

	return newHTTPError(http.StatusBadRequest, fmt.Sprintf(msgInvalidFormFmt, err), err)
}

func synthesisError(err error) error {
	return newHTTPError(http.StatusInternalServerError, msgSynthesisPrefix+err.Error(),
		fmt.Errorf("%w: %w", errSynthesis, err))
}

func outcomeFor(err error) string {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return outcomeInternalError
	}

	switch {
	case errors.Is(err, errSynthesis):
		return outcomeSynthesisError
	case httpErr.Status == http.StatusRequestEntityTooLarge:
		return outcomeTooLarge
	case httpErr.Status == http.StatusBadRequest:
		return outcomeBadRequest
	default:
		return outcomeInternalError
	}
}
