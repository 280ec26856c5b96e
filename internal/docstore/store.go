// Package docstore is the legacy document backend of the project database.
// Every item is one XML envelope stored at <root>/<domain>/<uuid>_0 in a
// blob store. A domain is the collection of documents under its prefix;
// reads load the collection into an envelope.Index and answer queries with
// path expressions over it.
package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"projectdb-go/internal/blob"
	"projectdb-go/internal/encryption"
	"projectdb-go/internal/envelope"
	"projectdb-go/internal/projectdb"
)

const (
	schemaVersion = "1"

	docSuffix    = "_0"
	loadedSuffix = ".last_loaded"
	markerName   = ".collection"
	versionName  = ".schema_version"

	// fetchLimit bounds concurrent blob reads while loading a collection.
	fetchLimit = 8
)

// Store implements projectdb.Backend on a blob store.
type Store struct {
	blobs         blob.Store
	enc           encryption.Encryptor
	dec           encryption.DecryptionContext
	root          string
	removeOrphans bool

	// mu serializes writers. The blob store has no transactions, so a save
	// validates everything before its first write.
	mu sync.Mutex
}

var _ projectdb.Backend = (*Store)(nil)

// New creates a Store keeping documents under root (e.g. "/db/krb_config")
// in blobs. dec must be able to read what enc writes.
func New(blobs blob.Store, enc encryption.Encryptor, dec encryption.DecryptionContext, root string, removeOrphans bool) *Store {
	return &Store{
		blobs:         blobs,
		enc:           enc,
		dec:           dec,
		root:          strings.Trim(root, "/"),
		removeOrphans: removeOrphans,
	}
}

func (s *Store) domainPrefix(domain string) string {
	return path.Join(s.root, domain) + "/"
}

func (s *Store) docKey(domain, uuid string) string {
	return path.Join(s.root, domain, uuid+docSuffix)
}

func (s *Store) loadedKey(domain, uuid string) string {
	return s.docKey(domain, uuid) + loadedSuffix
}

func checkDomain(domain string) error {
	if domain == "" || strings.ContainsAny(domain, "/\\") || domain == "." || domain == ".." {
		return projectdb.Errorf(projectdb.KindSchema, "invalid domain name %q", domain)
	}
	return nil
}

// Initialize checks the blob store and records the schema version.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.blobs.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("checking document store: %w", err)
	}
	key := path.Join(s.root, versionName)
	err := s.blobs.Get(ctx, key, &bytes.Buffer{})
	if errors.Is(err, blob.ErrNotFound) {
		return s.put(ctx, key, []byte(schemaVersion))
	}
	return err
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	err := s.blobs.Get(ctx, path.Join(s.root, versionName), &buf)
	if errors.Is(err, blob.ErrNotFound) {
		return schemaVersion, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading schema version: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Domains

func (s *Store) ListDomains(ctx context.Context) ([]string, error) {
	prefix := s.root + "/"
	keys, err := s.blobs.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		i := strings.IndexByte(rest, '/')
		if i <= 0 {
			continue
		}
		if name := rest[:i]; !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) DomainExists(ctx context.Context, domain string) (bool, error) {
	if checkDomain(domain) != nil {
		return false, nil
	}
	keys, err := s.blobs.List(ctx, s.domainPrefix(domain))
	if err != nil {
		return false, fmt.Errorf("finding domain: %w", err)
	}
	return len(keys) > 0, nil
}

// AddDomain writes the collection marker. Rewriting it is harmless, so
// concurrent creators cannot collide.
func (s *Store) AddDomain(ctx context.Context, domain string) error {
	if err := checkDomain(domain); err != nil {
		return err
	}
	return s.put(ctx, path.Join(s.root, domain, markerName), nil)
}

// Blob access

func (s *Store) put(ctx context.Context, key string, data []byte) error {
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// readDoc returns the decrypted document at key, or blob.ErrNotFound.
func (s *Store) readDoc(ctx context.Context, key string) ([]byte, error) {
	var raw bytes.Buffer
	if err := s.blobs.Get(ctx, key, &raw); err != nil {
		return nil, err
	}
	var plain bytes.Buffer
	if err := s.dec.Decrypt(&raw, &plain); err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", key, err)
	}
	return plain.Bytes(), nil
}

func (s *Store) writeItem(ctx context.Context, domain string, it *envelope.Item) error {
	text, err := envelope.Emit(it)
	if err != nil {
		return fmt.Errorf("rendering %s %s: %w", it.Type, it.UUID, err)
	}
	var sealed bytes.Buffer
	if err := s.enc.Encrypt(strings.NewReader(text), &sealed); err != nil {
		return fmt.Errorf("encrypting %s: %w", it.UUID, err)
	}
	return s.put(ctx, s.docKey(domain, it.UUID), sealed.Bytes())
}

// deleteItem removes a document and its load stamp.
func (s *Store) deleteItem(ctx context.Context, domain, uuid string) error {
	if err := s.blobs.Delete(ctx, s.docKey(domain, uuid)); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("deleting %s: %w", uuid, err)
	}
	if err := s.blobs.Delete(ctx, s.loadedKey(domain, uuid)); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("deleting load stamp of %s: %w", uuid, err)
	}
	return nil
}

// collection loads every document of domain into an index. Documents are
// fetched concurrently and added in key order.
func (s *Store) collection(ctx context.Context, domain string) (*envelope.Index, error) {
	keys, err := s.blobs.List(ctx, s.domainPrefix(domain))
	if err != nil {
		return nil, fmt.Errorf("listing domain %s: %w", domain, err)
	}
	var docs []string
	for _, k := range keys {
		if strings.HasSuffix(k, docSuffix) {
			docs = append(docs, k)
		}
	}

	data := make([][]byte, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, key := range docs {
		g.Go(func() error {
			b, err := s.readDoc(gctx, key)
			if errors.Is(err, blob.ErrNotFound) {
				// Deleted between List and Get.
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading %s: %w", key, err)
			}
			data[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := envelope.NewIndex()
	for i, key := range docs {
		if data[i] == nil {
			continue
		}
		if _, err := idx.Add(key, data[i]); err != nil {
			return nil, err
		}
	}
	return idx, nil
}
