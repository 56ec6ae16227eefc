package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS writes objects under a local directory. The API server exposes that
// directory at baseURL.
type FS struct {
	dir     string
	baseURL string
}

func NewFS(dir, baseURL string) *FS {
	return &FS{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (f *FS) Put(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := CleanKey(obj.Key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(f.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, obj.Data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return f.baseURL + "/" + key, nil
}

// Dir is the root directory objects are written to.
func (f *FS) Dir() string { return f.dir }
