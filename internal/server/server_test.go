package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/book-expert/voiceclone-service/internal/config"
	"github.com/book-expert/voiceclone-service/internal/extract"
	"github.com/book-expert/voiceclone-service/internal/scratch"
	"github.com/book-expert/voiceclone-service/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunnableServer(t *testing.T, port int) *server.Server {
	t.Helper()

	log := createTestLogger(t)

	store, err := scratch.NewStore(t.TempDir(), log)
	require.NoError(t, err)

	cfg := config.Default().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.ShutdownTimeoutSeconds = 5

	srv, err := server.New(cfg, server.Dependencies{
		Scratch:     store,
		Extractors:  extract.NewRegistry(&fakeExtractor{kind: extract.KindPDF}, nil),
		Synthesizer: &fakeSynthesizer{},
	}, log)
	require.NoError(t, err)

	return srv
}

// TestServer_RunShutsDownOnCancel verifies that cancelling the context stops
// the listener and Run reports a clean exit.
func TestServer_RunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	srv := newRunnableServer(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// TestServer_RunReportsListenError verifies that a port already in use is
// returned instead of blocking until shutdown.
func TestServer_RunReportsListenError(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer listener.Close()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)

	srv := newRunnableServer(t, tcpAddr.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = srv.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server failed")
}
