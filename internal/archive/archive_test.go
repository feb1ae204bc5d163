package archive_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voiceclone-service/internal/archive"
	"github.com/book-expert/voiceclone-service/internal/objectstore"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSubject = "voiceclone.audio.created"

var errMockUpload = errors.New("mock upload error")

type failingStore struct{}

func (failingStore) Download(context.Context, string) ([]byte, error) { return nil, errMockUpload }

func (failingStore) Upload(context.Context, string, []byte) error { return errMockUpload }

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "archive-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)
	t.Cleanup(server.Shutdown)

	natsConnection, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(natsConnection.Close)

	return natsConnection
}

// TestNatsArchiver_Archive verifies that the WAV is uploaded and an AudioChunkCreatedEvent is published.
func TestNatsArchiver_Archive(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "VOICECLONE_AUDIO", "audio/wav")
	require.NoError(t, err)

	sub, err := natsConnection.SubscribeSync(testSubject)
	require.NoError(t, err)

	archiver := archive.New(natsConnection, store, testSubject, createTestLogger(t))
	audio := []byte("RIFF fake wav body")

	require.NoError(t, archiver.Archive(context.Background(), "req-42", audio))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var event events.AudioChunkCreatedEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))

	assert.Equal(t, "req-42.wav", event.AudioKey)
	assert.Equal(t, "req-42", event.Header.WorkflowID)
	assert.NotEmpty(t, event.Header.EventID)
	assert.EqualValues(t, 1, event.PageNumber)
	assert.EqualValues(t, 1, event.TotalPages)

	stored, err := store.Download(context.Background(), event.AudioKey)
	require.NoError(t, err)
	assert.Equal(t, audio, stored)
}

// TestNatsArchiver_UploadFailureSkipsEvent verifies that no event is published when the upload fails.
func TestNatsArchiver_UploadFailureSkipsEvent(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)

	sub, err := natsConnection.SubscribeSync(testSubject)
	require.NoError(t, err)

	archiver := archive.New(natsConnection, failingStore{}, testSubject, createTestLogger(t))

	err = archiver.Archive(context.Background(), "req-1", []byte("audio"))
	require.ErrorIs(t, err, errMockUpload)

	_, err = sub.NextMsg(100 * time.Millisecond)
	require.ErrorIs(t, err, nats.ErrTimeout)
}

func TestNatsArchiver_Validation(t *testing.T) {
	t.Parallel()

	archiver := archive.New(nil, failingStore{}, testSubject, createTestLogger(t))

	require.ErrorIs(t, archiver.Archive(context.Background(), "", []byte("audio")), archive.ErrRequestIDEmpty)
	require.ErrorIs(t, archiver.Archive(context.Background(), "req-1", nil), archive.ErrAudioEmpty)
}

func TestAudioKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc.wav", archive.AudioKey("abc"))
}
