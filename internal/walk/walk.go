// Package walk enumerates the files of a source tree and mirrors its
// directories into a destination tree.
package walk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
)

// DefaultDirMode is the permission used for mirrored directories.
const DefaultDirMode os.FileMode = 0o755

// Kind classifies a walked entry by file type.
type Kind int

const (
	KindFile    Kind = iota // Regular file
	KindDir                 // Directory below the root
	KindSymlink             // Symbolic link, never followed
	KindOther               // Socket, device, named pipe...
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Entry is one node found under the root.
type Entry struct {
	Path string      // Path on disk
	Rel  string      // Path relative to the root
	Kind Kind        // File type
	Info os.FileInfo // Lstat result, nil when Err is set
	Err  error       // Set when the node could not be read or mirrored
}

// Options configure a Walker.
type Options struct {
	// Mirror is the destination root. When set, every directory found is
	// created below it before the walk descends into the directory.
	Mirror  string
	DirMode os.FileMode
	Logger  *zap.Logger
}

// Walker walks one root. It holds no state between walks: every call to
// Walk reads the filesystem again.
type Walker struct {
	root   string
	opts   Options
	logger *zap.Logger
}

// New returns a Walker for root.
func New(root string, opts Options) *Walker {
	if opts.DirMode == 0 {
		opts.DirMode = DefaultDirMode
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{root: filepath.Clean(root), opts: opts, logger: logger}
}

// Root returns the cleaned root path.
func (w *Walker) Root() string {
	return w.root
}

// Walk calls fn for every entry below the root in lexical order, parents
// before children. Symbolic links are reported with KindSymlink and never
// followed. Entries that cannot be read are reported with Err set and the
// walk goes on. A non-nil error from fn, or the cancellation of ctx, stops
// the walk and is returned.
func (w *Walker) Walk(ctx context.Context, fn func(Entry) error) error {
	w.logger.Debug("starting walk", zap.String("root", w.root), zap.String("mirror", w.opts.Mirror))

	var fnErr error

	options := &godirwalk.Options{
		FollowSymbolicLinks: false,
		Unsorted:            false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if path == w.root {
				return w.mirror(".")
			}

			rel, err := filepath.Rel(w.root, path)
			if err != nil {
				return err
			}
			entry := Entry{Path: path, Rel: rel}

			switch {
			case de.IsSymlink():
				entry.Kind = KindSymlink
			case de.IsDir():
				entry.Kind = KindDir
				if err := w.mirror(rel); err != nil {
					entry.Err = err
					if fnErr = fn(entry); fnErr != nil {
						return fnErr
					}
					return filepath.SkipDir
				}
			case de.IsRegular():
				entry.Kind = KindFile
			default:
				entry.Kind = KindOther
			}

			if entry.Info, err = os.Lstat(path); err != nil {
				entry.Info, entry.Err = nil, err
			}
			fnErr = fn(entry)
			return fnErr
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			if errors.Is(err, fnErr) || ctx.Err() != nil {
				return godirwalk.Halt
			}
			rel, relErr := filepath.Rel(w.root, path)
			if relErr != nil {
				rel = path
			}
			w.logger.Warn("walk error", zap.String("path", path), zap.Error(err))
			if fnErr = fn(Entry{Path: path, Rel: rel, Kind: KindOther, Err: err}); fnErr != nil {
				return godirwalk.Halt
			}
			return godirwalk.SkipNode
		},
	}

	err := godirwalk.Walk(w.root, options)
	if fnErr != nil {
		return fnErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !errors.Is(err, filepath.SkipDir) {
		return fmt.Errorf("walk %s: %w", w.root, err)
	}
	return nil
}

// mirror creates the destination directory for rel. Creating a directory
// that already exists is not an error.
func (w *Walker) mirror(rel string) error {
	if w.opts.Mirror == "" {
		return nil
	}
	dir := filepath.Join(w.opts.Mirror, rel)
	if err := os.MkdirAll(dir, w.opts.DirMode); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// Count returns the number of regular files below the root. It does not
// mirror anything.
func Count(ctx context.Context, root string) (int, error) {
	var n int
	err := New(root, Options{}).Walk(ctx, func(e Entry) error {
		if e.Kind == KindFile && e.Err == nil {
			n++
		}
		return nil
	})
	return n, err
}
