// Package config provides the configuration structure for the voiceclone-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// DefaultPort is used when neither the TOML file nor PORT set one.
	DefaultPort = 7600
	// DefaultHost binds the service to all interfaces.
	DefaultHost = "0.0.0.0"

	maxPort = 65535
)

var (
	// ErrPortRange indicates that the listening port is outside [1, 65535].
	ErrPortRange = errors.New("server port must be between 1 and 65535")
	// ErrOCRLanguagesEmpty indicates that no OCR language was configured.
	ErrOCRLanguagesEmpty = errors.New("extraction.ocr_languages cannot be empty")
	// ErrServiceURLEmpty indicates that the synthesis engine URL is missing.
	ErrServiceURLEmpty = errors.New("synthesis.service_url cannot be empty")
	// ErrLanguageEmpty indicates that no output language was configured.
	ErrLanguageEmpty = errors.New("synthesis.language cannot be empty")
	// ErrMaxConcurrentRange indicates that max_concurrent is below one.
	ErrMaxConcurrentRange = errors.New("synthesis.max_concurrent must be >= 1")
	// ErrArchiveIncomplete indicates that archiving is enabled without NATS settings.
	ErrArchiveIncomplete = errors.New("archive requires nats_url, bucket and subject")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host                     string `toml:"host"`
	Port                     int    `toml:"port"`
	MaxUploadMB              int64  `toml:"max_upload_mb"`
	ReadHeaderTimeoutSeconds int    `toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `toml:"shutdown_timeout_seconds"`
}

// ExtractionConfig holds the text extraction settings.
type ExtractionConfig struct {
	TesseractPath string   `toml:"tesseract_path"`
	OCRLanguages  []string `toml:"ocr_languages"`
}

// SynthesisConfig holds the voice-cloning engine settings.
type SynthesisConfig struct {
	ServiceURL     string  `toml:"service_url"`
	Model          string  `toml:"model"`
	Language       string  `toml:"language"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxConcurrent  int     `toml:"max_concurrent"`
}

// TextConfig controls normalization of extracted text.
type TextConfig struct {
	Normalize bool `toml:"normalize"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	ScratchDir  string `toml:"scratch_dir"`
}

// ArchiveConfig holds the optional NATS result archive settings.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	NATSURL string `toml:"nats_url"`
	Bucket  string `toml:"bucket"`
	Subject string `toml:"subject"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Extraction ExtractionConfig `toml:"extraction"`
	Synthesis  SynthesisConfig  `toml:"synthesis"`
	Text       TextConfig       `toml:"text"`
	Paths      PathsConfig      `toml:"paths"`
	Archive    ArchiveConfig    `toml:"archive"`
}

// envOverrides lists the environment variables that win over the TOML file.
// Unset variables leave the loaded value untouched.
type envOverrides struct {
	Port        int    `envconfig:"PORT"`
	Host        string `envconfig:"VOICECLONE_HOST"`
	ServiceURL  string `envconfig:"VOICECLONE_TTS_URL"`
	Language    string `envconfig:"VOICECLONE_LANGUAGE"`
	ScratchDir  string `envconfig:"VOICECLONE_SCRATCH_DIR"`
	LogsDir     string `envconfig:"VOICECLONE_LOGS_DIR"`
	NATSURL     string `envconfig:"VOICECLONE_NATS_URL"`
	MaxUploadMB int64  `envconfig:"VOICECLONE_MAX_UPLOAD_MB"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:                     DefaultHost,
			Port:                     DefaultPort,
			MaxUploadMB:              0,
			ReadHeaderTimeoutSeconds: 10,
			ShutdownTimeoutSeconds:   15,
		},
		Extraction: ExtractionConfig{
			TesseractPath: "tesseract",
			OCRLanguages:  []string{"eng", "hin", "mar"},
		},
		Synthesis: SynthesisConfig{
			ServiceURL:     "http://127.0.0.1:8020",
			Model:          "tts_models/multilingual/multi-dataset/xtts_v2",
			Language:       "en",
			Temperature:    0.75,
			TimeoutSeconds: 300,
			MaxConcurrent:  1,
		},
		Text: TextConfig{
			Normalize: true,
		},
		Paths: PathsConfig{
			BaseLogsDir: filepath.Join(os.TempDir(), "voiceclone-service", "logs"),
			ScratchDir:  filepath.Join(os.TempDir(), "voiceclone-service", "scratch"),
		},
		Archive: ArchiveConfig{
			Enabled: false,
			NATSURL: "nats://127.0.0.1:4222",
			Bucket:  "VOICECLONE_AUDIO",
			Subject: "voiceclone.audio.created",
		},
	}
}

// Load loads the configuration for the voiceclone-service.
//
// Defaults come first, then the project TOML through the central configurator,
// then an optional .env file and the process environment.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(&cfg, log)
	if err != nil {
		log.Warn("Configurator unavailable, using built-in defaults: %v", err)

		cfg = Default()
	}

	dotenvErr := godotenv.Load()
	if dotenvErr != nil && !errors.Is(dotenvErr, os.ErrNotExist) {
		log.Warn("Failed to read .env file: %v", dotenvErr)
	}

	err = ApplyEnv(&cfg)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overlays the supported environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var env envOverrides

	err := envconfig.Process("", &env)
	if err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}

	if env.Host != "" {
		cfg.Server.Host = env.Host
	}

	if env.ServiceURL != "" {
		cfg.Synthesis.ServiceURL = env.ServiceURL
	}

	if env.Language != "" {
		cfg.Synthesis.Language = env.Language
	}

	if env.ScratchDir != "" {
		cfg.Paths.ScratchDir = env.ScratchDir
	}

	if env.LogsDir != "" {
		cfg.Paths.BaseLogsDir = env.LogsDir
	}

	if env.NATSURL != "" {
		cfg.Archive.NATSURL = env.NATSURL
	}

	if env.MaxUploadMB != 0 {
		cfg.Server.MaxUploadMB = env.MaxUploadMB
	}

	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: got %d", ErrPortRange, c.Server.Port)
	}

	if len(c.Extraction.OCRLanguages) == 0 {
		return ErrOCRLanguagesEmpty
	}

	if c.Synthesis.ServiceURL == "" {
		return ErrServiceURLEmpty
	}

	if c.Synthesis.Language == "" {
		return ErrLanguageEmpty
	}

	if c.Synthesis.MaxConcurrent < 1 {
		return fmt.Errorf("%w: got %d", ErrMaxConcurrentRange, c.Synthesis.MaxConcurrent)
	}

	if c.Archive.Enabled && (c.Archive.NATSURL == "" || c.Archive.Bucket == "" || c.Archive.Subject == "") {
		return ErrArchiveIncomplete
	}

	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MaxUploadBytes returns the request body limit, or 0 when uploads are unlimited.
func (s ServerConfig) MaxUploadBytes() int64 {
	const bytesPerMB = 1 << 20

	if s.MaxUploadMB <= 0 {
		return 0
	}

	return s.MaxUploadMB * bytesPerMB
}
