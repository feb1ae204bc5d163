package audio_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/voiceclone-service/internal/audio"
	"github.com/book-expert/voiceclone-service/internal/audio/audiotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInspect_PCM16 verifies that a canonical 16-bit PCM header is parsed.
func TestInspect_PCM16(t *testing.T) {
	t.Parallel()

	wav := audiotest.PCM16(audiotest.SampleRate*2, 1)

	info, err := audio.Inspect(bytes.NewReader(wav))
	require.NoError(t, err)

	assert.Equal(t, uint16(1), info.AudioFormat)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, audiotest.SampleRate, info.SampleRate)
	assert.Equal(t, 16, info.BitsPerSample)
	assert.Equal(t, int64(44), info.DataOffset)
	assert.Equal(t, int64(audiotest.SampleRate*4), info.DataBytes)
	assert.Equal(t, 2*time.Second, info.Duration)
}

// TestInspect_SkipsUnknownChunks verifies that LIST and other chunks before data are skipped.
func TestInspect_SkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	wav := audiotest.PCM16(audiotest.SampleRate, 2)

	// Insert an odd-sized LIST chunk between fmt and data.
	var list bytes.Buffer

	list.WriteString("LIST")
	_ = binary.Write(&list, binary.LittleEndian, uint32(3))
	list.Write([]byte{'a', 'b', 'c', 0})

	dataOffset := 12 + 8 + 16
	patched := append([]byte{}, wav[:dataOffset]...)
	patched = append(patched, list.Bytes()...)
	patched = append(patched, wav[dataOffset:]...)

	info, err := audio.Inspect(bytes.NewReader(patched))
	require.NoError(t, err)
	assert.Equal(t, time.Second, info.Duration)
	assert.Equal(t, int64(44+12), info.DataOffset, "pad byte counts toward the offset")
}

func TestInspect_Invalid(t *testing.T) {
	t.Parallel()

	wav := audiotest.PCM16(100, 3)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: audio.ErrNotWAV},
		{name: "json error body", data: []byte(`{"detail":"model crashed"}`), wantErr: audio.ErrNotWAV},
		{name: "header only", data: wav[:12], wantErr: audio.ErrMissingFormat},
		{name: "no data chunk", data: wav[:36], wantErr: audio.ErrMissingData},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := audio.Inspect(bytes.NewReader(testCase.data))
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestInspectFile(t *testing.T) {
	t.Parallel()

	wav := audiotest.WithText("hello")
	path := filepath.Join(t.TempDir(), "output.wav")
	require.NoError(t, os.WriteFile(path, wav, 0o600))

	info, err := audio.InspectFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(wav)), info.FileSize)
	assert.Positive(t, info.Duration)

	_, err = audio.InspectFile(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

// TestInspectFile_Truncated verifies that a data chunk declaring more bytes
// than the file holds is rejected instead of reported with a guessed duration.
func TestInspectFile_Truncated(t *testing.T) {
	t.Parallel()

	wav := audiotest.PCM16(audiotest.SampleRate, 4)
	dir := t.TempDir()

	truncatedPath := filepath.Join(dir, "truncated.wav")
	require.NoError(t, os.WriteFile(truncatedPath, wav[:len(wav)-100], 0o600))

	_, err := audio.InspectFile(truncatedPath)
	require.ErrorIs(t, err, audio.ErrTruncated)

	headerOnlyPath := filepath.Join(dir, "header-only.wav")
	require.NoError(t, os.WriteFile(headerOnlyPath, wav[:44], 0o600))

	_, err = audio.InspectFile(headerOnlyPath)
	require.ErrorIs(t, err, audio.ErrTruncated)

	// Trailing bytes after the data chunk are tolerated.
	paddedPath := filepath.Join(dir, "trailing.wav")
	require.NoError(t, os.WriteFile(paddedPath, append(append([]byte{}, wav...), 0, 0), 0o600))

	info, err := audio.InspectFile(paddedPath)
	require.NoError(t, err)
	assert.Equal(t, time.Second, info.Duration)
}
