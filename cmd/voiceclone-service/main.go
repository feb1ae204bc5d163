// main package for the voiceclone-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/voiceclone-service/internal/archive"
	"github.com/book-expert/voiceclone-service/internal/config"
	"github.com/book-expert/voiceclone-service/internal/core"
	"github.com/book-expert/voiceclone-service/internal/extract"
	"github.com/book-expert/voiceclone-service/internal/objectstore"
	"github.com/book-expert/voiceclone-service/internal/scratch"
	"github.com/book-expert/voiceclone-service/internal/server"
	"github.com/book-expert/voiceclone-service/internal/synth"
	"github.com/book-expert/voiceclone-service/internal/text"
	"github.com/nats-io/nats.go"
)

const archiveContentType = "audio/wav"

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "voiceclone-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir, "voiceclone-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	synthesizer := synth.New(cfg.Synthesis, log)
	defer func() { _ = synthesizer.Close() }()

	err = synthesizer.Start(ctx)
	if err != nil {
		log.Error("Failed to start synthesizer: %v", err)

		return err
	}

	deps, cleanup, err := buildDependencies(cfg, synthesizer, log)
	if err != nil {
		log.Error("Failed to initialize service: %v", err)

		return err
	}
	defer cleanup()

	srv, err := server.New(cfg.Server, deps, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.System("voiceclone-service initialized. Accepting jobs on %s", cfg.Server.Addr())

	return srv.Run(ctx)
}

func buildDependencies(
	cfg *config.Config,
	synthesizer *synth.Synthesizer,
	log *logger.Logger,
) (server.Dependencies, func(), error) {
	store, err := scratch.NewStore(cfg.Paths.ScratchDir, log)
	if err != nil {
		return server.Dependencies{}, nil, err
	}

	imageExtractor, err := extract.NewImageExtractor(cfg.Extraction.TesseractPath, cfg.Extraction.OCRLanguages, log)
	if err != nil {
		return server.Dependencies{}, nil, fmt.Errorf("failed to create OCR extractor: %w", err)
	}

	deps := server.Dependencies{
		Scratch:     store,
		Extractors:  extract.NewRegistry(extract.NewPDFExtractor(log), imageExtractor),
		Synthesizer: synthesizer,
	}

	if cfg.Text.Normalize {
		deps.Normalizer = text.NewNormalizer()
	}

	cleanup := func() {}

	if cfg.Archive.Enabled {
		archiver, natsConnection, archiveErr := setupArchive(cfg.Archive, log)
		if archiveErr != nil {
			return server.Dependencies{}, nil, archiveErr
		}

		deps.Archiver = archiver
		cleanup = func() {
			drainErr := natsConnection.Drain()
			if drainErr != nil {
				log.Warn("Failed to drain NATS connection: %v", drainErr)
			}
		}
	}

	return deps, cleanup, nil
}

func setupArchive(cfg config.ArchiveConfig, log *logger.Logger) (core.Archiver, *nats.Conn, error) {
	natsConnection, err := nats.Connect(cfg.NATSURL, nats.Name("voiceclone-service"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.Bucket, archiveContentType)
	if err != nil {
		natsConnection.Close()

		return nil, nil, err
	}

	log.System("Archiving results to bucket %s, announcing on %s", cfg.Bucket, cfg.Subject)

	return archive.New(natsConnection, store, cfg.Subject, log), natsConnection, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
