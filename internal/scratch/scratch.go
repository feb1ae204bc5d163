// Package scratch allocates request-scoped working directories for uploads and
// synthesis output.
//
// Every workspace lives in its own uniquely named directory, so concurrent
// requests never share a path.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

const (
	dirPermissions  = 0o700
	filePermissions = 0o600

	invalidCharReplacement = "_"
)

// ErrRootEmpty indicates that the scratch root was not configured.
var ErrRootEmpty = errors.New("scratch root directory cannot be empty")

var filenameReplacer = strings.NewReplacer(
	"<", invalidCharReplacement,
	">", invalidCharReplacement,
	":", invalidCharReplacement,
	"\"", invalidCharReplacement,
	"/", invalidCharReplacement,
	"\\", invalidCharReplacement,
	"|", invalidCharReplacement,
	"?", invalidCharReplacement,
	"*", invalidCharReplacement,
	"\x00", invalidCharReplacement,
)

// Store creates workspaces below a root directory.
type Store struct {
	root string
	log  *logger.Logger
}

// NewStore creates the root directory if needed and returns a Store.
func NewStore(root string, log *logger.Logger) (*Store, error) {
	if root == "" {
		return nil, ErrRootEmpty
	}

	err := os.MkdirAll(root, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch root '%s': %w", root, err)
	}

	return &Store{root: root, log: log}, nil
}

// Workspace is one request's private directory.
type Workspace struct {
	ID  string
	Dir string
	log *logger.Logger
}

// NewWorkspace allocates a fresh directory named by a random UUID.
func (s *Store) NewWorkspace() (*Workspace, error) {
	workspaceID := uuid.NewString()
	dir := filepath.Join(s.root, workspaceID)

	err := os.Mkdir(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace '%s': %w", dir, err)
	}

	return &Workspace{ID: workspaceID, Dir: dir, log: s.log}, nil
}

// Save writes r to a file in the workspace and returns its path. The name is
// role followed by the sanitized original filename, keeping the extension.
func (w *Workspace) Save(role, filename string, r io.Reader) (string, error) {
	path := w.Path(fileName(role, filename))

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create '%s': %w", path, err)
	}

	_, copyErr := io.Copy(file, r)
	closeErr := file.Close()

	if copyErr != nil {
		return "", fmt.Errorf("failed to write '%s': %w", path, copyErr)
	}

	if closeErr != nil {
		return "", fmt.Errorf("failed to close '%s': %w", path, closeErr)
	}

	return path, nil
}

// Path returns the location of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Remove deletes the workspace and everything in it. It is safe to call more
// than once.
func (w *Workspace) Remove() error {
	err := os.RemoveAll(w.Dir)
	if err != nil {
		return fmt.Errorf("failed to remove workspace '%s': %w", w.Dir, err)
	}

	return nil
}

// Close removes the workspace and logs instead of returning failures, for use
// in defer.
func (w *Workspace) Close() {
	err := w.Remove()
	if err != nil {
		w.log.Warn("Failed to clean up workspace %s: %v", w.ID, err)
	}
}

// SanitizeFilename replaces characters that are invalid in most filesystems,
// including path separators.
func SanitizeFilename(filename string) string {
	return filenameReplacer.Replace(filename)
}

func fileName(role, filename string) string {
	sanitized := SanitizeFilename(filename)
	if sanitized == "" {
		return role
	}

	return role + "_" + sanitized
}
