// Package capture acquires step photos into the photo directory.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for files whose extension is not a known
// image format.
var ErrUnsupportedType = errors.New("unsupported image type")

// Extensions lists the accepted image file extensions.
var Extensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// FileSource copies an operator-chosen image file into Dir.
//
// An empty choice means the operator cancelled the picker; Acquire then
// returns an empty path and no error.
type FileSource struct {
	dir    string
	choice string
	ids    IDGenerator
}

// Option configures a FileSource.
type Option func(*FileSource)

// WithIDGenerator overrides the generator used for file names.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *FileSource) { s.ids = g }
}

// NewFileSource creates a source that will copy choice into dir.
func NewFileSource(dir, choice string, opts ...Option) *FileSource {
	s := &FileSource{dir: dir, choice: strings.TrimSpace(choice), ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire copies the chosen file to <dir>/photo_<step>_<id><ext> and returns
// the new path. A partially copied file is removed.
func (s *FileSource) Acquire(ctx context.Context, stepID int64) (string, error) {
	if s.choice == "" {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(s.choice))
	if !supported(ext) {
		return "", fmt.Errorf("%s: %w", filepath.Base(s.choice), ErrUnsupportedType)
	}

	src, err := os.Open(s.choice)
	if err != nil {
		return "", fmt.Errorf("open photo: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}

	dst := filepath.Join(s.dir, fmt.Sprintf("photo_%d_%s%s", stepID, s.ids.Generate(), ext))
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create photo: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy photo: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("close photo: %w", err)
	}
	return dst, nil
}

func supported(ext string) bool {
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
