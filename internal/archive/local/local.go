package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned for keys with no archived document.
var ErrNotFound = errors.New("archived document not found")

// stampLayout sorts lexically in time order.
const stampLayout = "20060102T150405.000000000"

// LocalArchive lays documents out as <owner>/<timestamp><ext> under a base
// directory. Writes go to a temporary file first so a key never names a
// partial document.
type LocalArchive struct {
	basePath string
	now      func() time.Time
}

func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath, now: time.Now}, nil
}

func (a *LocalArchive) Save(ctx context.Context, owner, contentType string, r io.Reader) (string, error) {
	if owner == "" || strings.ContainsAny(owner, `/\`) {
		return "", fmt.Errorf("invalid archive owner %q", owner)
	}
	key := path.Join(owner, a.now().UTC().Format(stampLayout)+extFor(contentType))

	dest, err := a.resolve(key)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := writeAndClose(tmp, r); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if _, err := os.Stat(dest); err == nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("archive key %s already exists", key)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return key, nil
}

func writeAndClose(f *os.File, r io.Reader) error {
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close document: %w", err)
	}
	return nil
}

func (a *LocalArchive) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	p, err := a.resolve(key)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, contentTypeFor(p), nil
}

// Delete removes the document and, when it was the owner's last one, the
// owner directory.
func (a *LocalArchive) Delete(ctx context.Context, key string) error {
	p, err := a.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	// Fails harmlessly while other documents remain.
	_ = os.Remove(filepath.Dir(p))
	return nil
}

// resolve maps a key to a path inside basePath, rejecting anything that
// would escape it.
func (a *LocalArchive) resolve(key string) (string, error) {
	base, err := filepath.Abs(a.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	p, err := filepath.Abs(filepath.Join(base, filepath.FromSlash(key)))
	if err != nil {
		return "", fmt.Errorf("invalid key: %w", err)
	}
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("archive key %q escapes the archive", key)
	}
	return p, nil
}

func extFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return ".json"
	case strings.HasPrefix(contentType, "text/html"):
		return ".html"
	default:
		return ".txt"
	}
}

func contentTypeFor(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
