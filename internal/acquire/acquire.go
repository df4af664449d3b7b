// Package acquire turns picked or dropped image files into background
// references.
package acquire

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedImage = errors.New("acquire: unsupported image type")
	ErrTooLarge         = errors.New("acquire: image too large")
)

// Result is what an acquisition returns: a locator, or a cancellation.
type Result struct {
	URI      string
	Canceled bool
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsImage reports whether name has an accepted image extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// FileURI returns the file:// locator for path.
func FileURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// LocalPath resolves a file:// locator or an absolute path to a filesystem
// path. Other references are not local.
func LocalPath(ref string) (string, bool) {
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil || u.Path == "" {
			return "", false
		}
		return filepath.FromSlash(u.Path), true
	}
	if filepath.IsAbs(ref) {
		return ref, true
	}
	return "", false
}

// Within resolves a local reference and reports whether it names a file
// inside one of roots. Symlinks are resolved on both sides, so a link that
// leaves its root is refused. Missing files and empty roots never match.
func Within(ref string, roots ...string) (string, bool) {
	path, ok := LocalPath(ref)
	if !ok {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", false
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return "", false
	}
	for _, root := range roots {
		if root == "" {
			continue
		}
		base, err := filepath.EvalSymlinks(root)
		if err != nil {
			continue
		}
		if base, err = filepath.Abs(base); err != nil {
			continue
		}
		rel, err := filepath.Rel(base, resolved)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
			continue
		}
		return resolved, true
	}
	return "", false
}

// SaveUpload copies an uploaded image into dir under a fresh name. An upload
// with no file name or no content is treated as a cancellation.
func SaveUpload(dir, filename string, r io.Reader, maxBytes int64) (Result, error) {
	if filename == "" {
		return Result{Canceled: true}, nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExts[ext] {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedImage, filename)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create media dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+ext)
	f, err := os.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("create image: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		_ = os.Remove(path)
		return Result{}, fmt.Errorf("write image: %w", err)
	case n > maxBytes:
		_ = os.Remove(path)
		return Result{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxBytes)
	case n == 0:
		_ = os.Remove(path)
		return Result{Canceled: true}, nil
	}

	uri, err := FileURI(path)
	if err != nil {
		return Result{}, err
	}
	return Result{URI: uri}, nil
}
