// Package blobstore uploads rendered maps and builds the public links that
// point at them.
package blobstore

import (
	"context"
	"errors"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid object key")

// Object is one upload.
type Object struct {
	Key          string
	ContentType  string
	CacheControl string
	// Public requests a world-readable object where the backend supports
	// per-object ACLs.
	Public bool
	Data   []byte
}

// Store writes objects and returns their public URL.
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
}

// CleanKey validates a slash-separated relative key.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
