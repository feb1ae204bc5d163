package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeWAV = []byte("RIFF\x24\x00\x00\x00WAVEfake")

func newFakeService(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/process/", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		input, header, err := r.FormFile(fieldInputFile)
		if !assert.NoError(t, err) {
			return
		}
		defer input.Close()

		if filepath.Ext(header.Filename) == ".txt" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"detail": "Unsupported file type. Upload a PDF, JPG, JPEG, or PNG file.",
			})

			return
		}

		speaker, _, err := r.FormFile(fieldSpeakerAudio)
		if !assert.NoError(t, err) {
			return
		}
		defer speaker.Close()

		speakerData, _ := io.ReadAll(speaker)
		assert.Equal(t, []byte("speaker clip"), speakerData)

		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set(headerAudioDuration, "1.250")
		_, _ = w.Write(fakeWAV)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

// TestProcessCommand verifies that the process subcommand uploads both files and saves the returned WAV.
func TestProcessCommand(t *testing.T) {
	t.Parallel()

	service := newFakeService(t)
	speaker := writeTempFile(t, "me.wav", "speaker clip")
	input := writeTempFile(t, "doc.pdf", "%PDF-1.4")
	output := filepath.Join(t.TempDir(), "nested", "result.wav")

	out, err := execute(t, "process", "--url", service.URL,
		"--speaker", speaker, "--input", input, "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "1.250 seconds")
	assert.Contains(t, out, formatSize(int64(len(fakeWAV))))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, fakeWAV, data)
}

// TestProcessCommand_Rejected verifies that the service's detail message is surfaced when a job is rejected.
func TestProcessCommand_Rejected(t *testing.T) {
	t.Parallel()

	service := newFakeService(t)
	speaker := writeTempFile(t, "me.wav", "speaker clip")
	input := writeTempFile(t, "notes.txt", "plain")
	output := filepath.Join(t.TempDir(), "result.wav")

	_, err := execute(t, "process", "--url", service.URL,
		"--speaker", speaker, "--input", input, "--output", output)
	require.ErrorIs(t, err, ErrServiceRejected)
	assert.Contains(t, err.Error(), "Unsupported file type")
	assert.NoFileExists(t, output)
}

// TestProcessCommand_MissingFile verifies that a missing local file fails before any request is sent.
func TestProcessCommand_MissingFile(t *testing.T) {
	t.Parallel()

	service := newFakeService(t)

	_, err := execute(t, "process", "--url", service.URL,
		"--speaker", filepath.Join(t.TempDir(), "absent.wav"), "--input", writeTempFile(t, "doc.pdf", "x"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessCommand_RequiresFlags(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "process", "--input", "doc.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), flagSpeaker)
}

// TestHealthCommand verifies that the health subcommand prints the reported status.
func TestHealthCommand(t *testing.T) {
	t.Parallel()

	service := newFakeService(t)

	out, err := execute(t, "health", "--url", service.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, out, "is healthy")
}
