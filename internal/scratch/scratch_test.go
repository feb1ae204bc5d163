package scratch_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/voiceclone-service/internal/scratch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*scratch.Store, string) {
	t.Helper()

	log, err := logger.New(t.TempDir(), "scratch-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	root := filepath.Join(t.TempDir(), "scratch")

	store, err := scratch.NewStore(root, log)
	require.NoError(t, err)

	return store, root
}

// TestNewStore_EmptyRoot verifies that a store needs a root directory.
func TestNewStore_EmptyRoot(t *testing.T) {
	t.Parallel()

	_, err := scratch.NewStore("", nil)
	require.ErrorIs(t, err, scratch.ErrRootEmpty)
}

// TestWorkspace_SaveAndRemove verifies that saved uploads land in the
// workspace and that removing it twice is harmless.
func TestWorkspace_SaveAndRemove(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)

	workspace, err := store.NewWorkspace()
	require.NoError(t, err)
	assert.Equal(t, root, filepath.Dir(workspace.Dir))

	path, err := workspace.Save("input", "report.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workspace.Dir, "input_report.pdf"), path)
	assert.Equal(t, ".pdf", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	require.NoError(t, workspace.Remove())
	require.NoError(t, workspace.Remove(), "second remove is a no-op")

	_, err = os.Stat(workspace.Dir)
	assert.True(t, os.IsNotExist(err))
}

// TestWorkspace_SaveRejectsTraversal verifies that upload names cannot
// escape the workspace directory.
func TestWorkspace_SaveRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	workspace, err := store.NewWorkspace()
	require.NoError(t, err)

	defer workspace.Close()

	path, err := workspace.Save("speaker", "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, workspace.Dir, filepath.Dir(path))

	path, err = workspace.Save("input", "", strings.NewReader("y"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workspace.Dir, "input"), path)
}

// TestWorkspace_Unique verifies that concurrent requests never share a
// directory.
func TestWorkspace_Unique(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	const workspaces = 32

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		seen      = make(map[string]struct{}, workspaces)
	)

	for range workspaces {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			workspace, err := store.NewWorkspace()
			if !assert.NoError(t, err) {
				return
			}

			defer workspace.Close()

			mutex.Lock()
			seen[workspace.Dir] = struct{}{}
			mutex.Unlock()
		}()
	}

	waitGroup.Wait()
	assert.Len(t, seen, workspaces)
}

// TestSanitizeFilename verifies that every character invalid in common
// filesystems, including path separators and NUL, becomes an underscore.
func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already valid", input: "valid_filename.txt", expected: "valid_filename.txt"},
		{name: "reserved characters", input: "in<va>l:id\"/\\|?*name.txt", expected: "in_va_l_id______name.txt"},
		{name: "nul byte", input: "scan\x00.png", expected: "scan_.png"},
		{name: "empty", input: "", expected: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, scratch.SanitizeFilename(testCase.input))
		})
	}
}

// TestWorkspace_SaveNamesByRole verifies that saved files are prefixed with
// their role and that a missing upload name falls back to the bare role.
func TestWorkspace_SaveNamesByRole(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	workspace, err := store.NewWorkspace()
	require.NoError(t, err)

	defer workspace.Close()

	testCases := []struct {
		role     string
		filename string
		expected string
	}{
		{role: "speaker", filename: "voice.wav", expected: "speaker_voice.wav"},
		{role: "input", filename: "a\x00b.pdf", expected: "input_a_b.pdf"},
		{role: "unnamed", filename: "", expected: "unnamed"},
	}

	for _, testCase := range testCases {
		path, saveErr := workspace.Save(testCase.role, testCase.filename, strings.NewReader("data"))
		require.NoError(t, saveErr)
		assert.Equal(t, filepath.Join(workspace.Dir, testCase.expected), path)
	}
}
