// Package paths locates the .huddle/ directory that holds a client's
// config, preferences database and runtime files.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirName      = ".huddle"
	redirectName = "redirect"
)

// ErrNotFound is returned by FindHuddleRoot when no ancestor has a .huddle/.
var ErrNotFound = errors.New("no .huddle/ directory found")

// FindHuddleRoot returns the nearest directory at or above startPath that
// contains a .huddle/ directory, walking parents the way git finds .git/.
func FindHuddleRoot(startPath string) (string, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	for dir := absPath; ; {
		if info, err := os.Stat(filepath.Join(dir, dirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w (searched from %s to /)", ErrNotFound, absPath)
		}
		dir = parent
	}
}

// ResolveHuddleDir returns the .huddle/ directory used for root. A
// .huddle/redirect file holding an absolute path sends every checkout that
// carries it to one shared directory, so they share one prefs.db and host
// socket. Only a single hop is followed.
func ResolveHuddleDir(root string) (string, error) {
	local := filepath.Join(root, dirName)
	redirectPath := filepath.Join(local, redirectName)

	data, err := os.ReadFile(redirectPath) //nolint:gosec // G304 - path inside the .huddle directory
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return local, nil
	case err != nil:
		return "", fmt.Errorf("read redirect file: %w", err)
	}

	target := strings.TrimSpace(string(data))
	if target == "" {
		return "", fmt.Errorf("redirect file is empty: %s", redirectPath)
	}
	if !filepath.IsAbs(target) {
		return "", fmt.Errorf("redirect target must be absolute path, got: %s", target)
	}

	info, err := os.Stat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("redirect target does not exist: %s", target)
	case err != nil:
		return "", fmt.Errorf("stat redirect target: %w", err)
	case !info.IsDir():
		return "", fmt.Errorf("redirect target is not a directory: %s", target)
	}

	if _, err := os.Stat(filepath.Join(target, redirectName)); err == nil {
		return "", fmt.Errorf("redirect chain detected: %s points to %s which also has a redirect file", redirectPath, target)
	}
	return target, nil
}

// IsRedirected reports whether root/.huddle carries a redirect file.
func IsRedirected(root string) bool {
	_, err := os.Stat(filepath.Join(root, dirName, redirectName))
	return err == nil
}

// ResolveFrom finds the .huddle/ directory for startPath. When no ancestor
// has one, it returns startPath/.huddle without creating it.
func ResolveFrom(startPath string) (string, error) {
	root, err := FindHuddleRoot(startPath)
	if errors.Is(err, ErrNotFound) {
		abs, absErr := filepath.Abs(startPath)
		if absErr != nil {
			return "", fmt.Errorf("resolve absolute path: %w", absErr)
		}
		return filepath.Join(abs, dirName), nil
	}
	if err != nil {
		return "", err
	}
	return ResolveHuddleDir(root)
}

// VarDir returns the runtime directory (prefs.db, host.sock, project.json).
func VarDir(huddleDir string) string {
	return filepath.Join(huddleDir, "var")
}

// PrefsDBPath returns the preferences database location.
func PrefsDBPath(huddleDir string) string {
	return filepath.Join(VarDir(huddleDir), "prefs.db")
}

// HostSocketPath returns the default Unix socket of a local host.
func HostSocketPath(huddleDir string) string {
	return filepath.Join(VarDir(huddleDir), "host.sock")
}
