// Package core defines the interfaces shared by the voiceclone-service packages.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Extractor turns a document on disk into plain text.
//
// Implementations report unusable documents with a typed failure rather than a
// magic string; callers decide how to surface it.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
	Kind() string
}

// SynthesisRequest describes one voice-cloning job.
type SynthesisRequest struct {
	Text        string
	SpeakerPath string
	OutputPath  string
}

// Synthesizer produces speech in the voice of a reference speaker.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) error
	HealthCheck(ctx context.Context) error
}

// Archiver keeps a copy of produced audio outside the request lifetime.
type Archiver interface {
	Archive(ctx context.Context, requestID string, audio []byte) error
}
