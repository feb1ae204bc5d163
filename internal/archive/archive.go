// Package archive publishes finished voice clones to NATS.
//
// Each WAV is uploaded to the object store and announced with an
// AudioChunkCreatedEvent so downstream consumers can pick it up without
// talking to the HTTP service.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voiceclone-service/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const audioKeySuffix = ".wav"

var (
	// ErrRequestIDEmpty indicates that no request ID was supplied.
	ErrRequestIDEmpty = errors.New("request id cannot be empty")
	// ErrAudioEmpty indicates that there is nothing to archive.
	ErrAudioEmpty = errors.New("audio cannot be empty")
)

// NatsArchiver stores audio in an object store and announces it on a subject.
type NatsArchiver struct {
	natsConnection *nats.Conn
	store          core.ObjectStore
	subject        string
	log            *logger.Logger
}

// New creates an archiver that publishes on subject.
func New(natsConnection *nats.Conn, store core.ObjectStore, subject string, log *logger.Logger) *NatsArchiver {
	return &NatsArchiver{
		natsConnection: natsConnection,
		store:          store,
		subject:        subject,
		log:            log,
	}
}

// AudioKey returns the object name used for a request's audio.
func AudioKey(requestID string) string {
	return requestID + audioKeySuffix
}

// Archive uploads audio under the request's key and publishes the event.
func (a *NatsArchiver) Archive(ctx context.Context, requestID string, audio []byte) error {
	if requestID == "" {
		return ErrRequestIDEmpty
	}

	if len(audio) == 0 {
		return ErrAudioEmpty
	}

	audioKey := AudioKey(requestID)

	err := a.store.Upload(ctx, audioKey, audio)
	if err != nil {
		return fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	event := &events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: requestID,
			EventID:    uuid.NewString(),
		},
		AudioKey:   audioKey,
		PageNumber: 1,
		TotalPages: 1,
	}

	err = a.publish(ctx, event)
	if err != nil {
		return err
	}

	a.log.Info("Archived %d bytes of audio as %s", len(audio), audioKey)

	return nil
}

func (a *NatsArchiver) publish(ctx context.Context, event *events.AudioChunkCreatedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audio event: %w", err)
	}

	err = a.natsConnection.Publish(a.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish audio event on %s: %w", a.subject, err)
	}

	flushErr := a.natsConnection.FlushWithContext(ctx)
	if flushErr != nil {
		return fmt.Errorf("failed to flush audio event: %w", flushErr)
	}

	return nil
}
