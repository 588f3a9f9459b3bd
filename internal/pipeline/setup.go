package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// prepare validates both roots and makes sure the destination is writable.
// It returns absolute, cleaned paths.
func prepare(src, dst string) (string, string, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return "", "", &SetupError{Op: "source", Path: src, Err: err}
	}
	info, err := os.Stat(absSrc)
	if err != nil {
		return "", "", &SetupError{Op: "source", Path: src, Err: err}
	}
	if !info.IsDir() {
		return "", "", &SetupError{Op: "source", Path: src, Err: ErrNotDirectory}
	}
	// Resolve links so the overlap check below compares real locations.
	if resolved, err := filepath.EvalSymlinks(absSrc); err == nil {
		absSrc = resolved
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return "", "", &SetupError{Op: "destination", Path: dst, Err: err}
	}
	if within(absSrc, resolveExisting(absDst)) {
		return "", "", &SetupError{Op: "destination", Path: dst, Err: ErrDestinationInsideSource}
	}

	if err := os.MkdirAll(absDst, 0o755); err != nil {
		return "", "", &SetupError{Op: "destination", Path: dst, Err: fmt.Errorf("%w: %w", ErrNotWritable, err)}
	}
	scratch, err := os.CreateTemp(absDst, ".filigram-write-*")
	if err != nil {
		return "", "", &SetupError{Op: "destination", Path: dst, Err: fmt.Errorf("%w: %w", ErrNotWritable, err)}
	}
	scratch.Close()
	os.Remove(scratch.Name())

	return absSrc, absDst, nil
}

// resolveExisting resolves symlinks in the longest existing prefix of path.
func resolveExisting(path string) string {
	var rest []string
	for dir := path; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
	}
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
