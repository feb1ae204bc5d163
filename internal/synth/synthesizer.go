package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voiceclone-service/internal/config"
	"github.com/book-expert/voiceclone-service/internal/core"
)

const (
	// HealthCheckTimeout bounds the startup and readiness checks.
	HealthCheckTimeout = 10 * time.Second

	filePermissions = 0o600
)

var (
	// ErrOutputPathEmpty indicates that no destination was given.
	ErrOutputPathEmpty = errors.New("output path cannot be empty")
	// ErrNotStarted indicates Synthesize was called before Start succeeded.
	ErrNotStarted = errors.New("synthesizer not started")
)

// Synthesizer owns the connection to the voice-cloning engine. It is built
// once at startup and shared by all requests; at most MaxConcurrent
// inferences run at the same time because the engine model is not reentrant.
type Synthesizer struct {
	client  *Client
	config  config.SynthesisConfig
	slots   chan struct{}
	started bool
	log     *logger.Logger
}

// New creates a Synthesizer for the configured engine.
func New(cfg config.SynthesisConfig, log *logger.Logger) *Synthesizer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	return NewWithClient(cfg, log, NewClient(cfg.ServiceURL, timeout))
}

// NewWithClient creates a Synthesizer around an existing client.
func NewWithClient(cfg config.SynthesisConfig, log *logger.Logger, client *Client) *Synthesizer {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Synthesizer{
		client: client,
		config: cfg,
		slots:  make(chan struct{}, maxConcurrent),
		log:    log,
	}
}

// Start checks once that the engine is up with its model loaded. It must
// succeed before the synthesizer is handed to request handlers.
func (s *Synthesizer) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("voice-cloning engine unavailable: %w", err)
	}

	s.started = true
	s.log.System("Voice-cloning engine ready at %s (model %s, language %s)",
		s.config.ServiceURL, s.config.Model, s.config.Language)

	return nil
}

// HealthCheck reports whether the engine is currently reachable.
func (s *Synthesizer) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	return s.client.HealthCheck(ctx)
}

// Synthesize speaks req.Text in the voice of req.SpeakerPath and writes the WAV
// to req.OutputPath, replacing any existing file.
func (s *Synthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) error {
	if !s.started {
		return ErrNotStarted
	}

	if req.OutputPath == "" {
		return ErrOutputPathEmpty
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	started := time.Now()

	written, err := s.cloneToFile(ctx, req)
	if err != nil {
		return err
	}

	s.log.Info("Synthesized %d bytes of audio for %d characters in %s",
		written, len(req.Text), time.Since(started).Round(time.Millisecond))

	return nil
}

// Close releases engine resources. The HTTP client needs none today.
func (s *Synthesizer) Close() error {
	s.client.httpClient.CloseIdleConnections()

	return nil
}

func (s *Synthesizer) acquire(ctx context.Context) (func(), error) {
	select {
	case s.slots <- struct{}{}:
		return func() { <-s.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for synthesis slot: %w", ctx.Err())
	}
}

func (s *Synthesizer) cloneToFile(ctx context.Context, req core.SynthesisRequest) (int64, error) {
	dirErr := os.MkdirAll(filepath.Dir(req.OutputPath), 0o750)
	if dirErr != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	output, err := os.OpenFile(req.OutputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	written, cloneErr := s.client.CloneSpeech(ctx, CloneRequest{
		Text:           req.Text,
		SpeakerWAVPath: req.SpeakerPath,
		Language:       s.config.Language,
		Model:          s.config.Model,
		// Sentence splitting is always on.
		SplitSentences: true,
		Temperature:    s.config.Temperature,
	}, output)
	closeErr := output.Close()

	if cloneErr != nil {
		return 0, cloneErr
	}

	if closeErr != nil {
		return 0, fmt.Errorf("failed to write output file: %w", closeErr)
	}

	return written, nil
}
