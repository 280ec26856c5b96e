package testutil

import (
	"context"
	"testing"

	"projectdb-go/internal/blob"
	"projectdb-go/internal/database"
	"projectdb-go/internal/docstore"
	"projectdb-go/internal/encryption"
	"projectdb-go/internal/projectdb"
)

// DocumentRoot is the collection root used by NewTestDocStore.
const DocumentRoot = "/db/krb_config"

// NewTestDatabase creates an in-memory sqlite backend with the schema
// applied. It is closed when the test completes.
func NewTestDatabase(t *testing.T, removeOrphans bool) *database.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", removeOrphans)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Initialize(context.Background()); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// NewTestDocStore creates a document backend over in-memory blobs. Stored
// documents go through the test encryptor so that nothing reads them as
// plain XML by accident.
func NewTestDocStore(t *testing.T, removeOrphans bool) *docstore.Store {
	t.Helper()

	enc := encryption.NewTestEncryptor()
	dec, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("failed to unlock test encryptor: %v", err)
	}
	s := docstore.New(blob.NewMemoryStore(), enc, dec, DocumentRoot, removeOrphans)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize document store: %v", err)
	}
	return s
}

// BackendFactory builds a fresh backend for one test.
type BackendFactory func(t *testing.T, removeOrphans bool) projectdb.Backend

// Backends lists every backend implementation, for tests that must hold
// for all of them.
var Backends = map[string]BackendFactory{
	"relational": func(t *testing.T, removeOrphans bool) projectdb.Backend {
		return NewTestDatabase(t, removeOrphans)
	},
	"document": func(t *testing.T, removeOrphans bool) projectdb.Backend {
		return NewTestDocStore(t, removeOrphans)
	},
}

// NewTestService wires backend into a Service with a fixed clock, stub ids
// and no logging. The clock is returned so tests can advance it.
func NewTestService(backend projectdb.Backend) (*projectdb.Service, *StubClock) {
	clock := FixedClock()
	return projectdb.NewService(backend, projectdb.NopLogger{}, clock, NewStubIDGenerator()), clock
}
