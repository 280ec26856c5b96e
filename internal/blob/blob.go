// Package blob stores opaque documents under slash-separated keys such as
// "db/krb_config/CAS/<uuid>_0". The document backend keeps one blob per
// item; the store knows nothing about their contents.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned by Get and Delete for keys that hold no blob.
var ErrNotFound = errors.New("blob not found")

// Store provides an interface for document storage backends.
// All operations use io.Reader/io.Writer for streaming.
type Store interface {
	// Put stores the size bytes read from r under key, replacing any
	// previous blob. Readers never observe a partially written blob.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the blob stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Delete removes the blob stored under key.
	Delete(ctx context.Context, key string) error

	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// ValidateSetup verifies that the store is accessible.
	ValidateSetup(ctx context.Context) error
}

// checkKey rejects keys that could escape the store root.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid blob key %q", key)
		}
	}
	return nil
}

func notFound(key string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}
