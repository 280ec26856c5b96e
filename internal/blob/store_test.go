package blob

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// storeFactories builds every store that runs without external services.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
	"filesystem": func(t *testing.T) Store {
		s, err := NewFileSystemStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		return s
	},
}

func put(t *testing.T, s Store, key, data string) {
	t.Helper()
	if err := s.Put(context.Background(), key, strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put(%s) error = %v", key, err)
	}
}

func TestStore_PutGet(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			put(t, s, "db/krb_config/CAS/abc_0", "<xml/>")
			put(t, s, "db/krb_config/CAS/abc_0", "<xml uuid='abc'/>")

			var buf bytes.Buffer
			if err := s.Get(ctx, "db/krb_config/CAS/abc_0", &buf); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if buf.String() != "<xml uuid='abc'/>" {
				t.Errorf("Get() = %q, want the second write", buf.String())
			}

			err := s.Get(ctx, "db/krb_config/CAS/missing_0", &buf)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_PutSizeMismatch(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			if err := s.Put(ctx, "a/b", strings.NewReader("hello"), 100); err == nil {
				t.Fatal("Put() expected size mismatch error")
			}
			if err := s.Get(ctx, "a/b", &bytes.Buffer{}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after failed Put error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_InvalidKeys(t *testing.T) {
	keys := []string{"", "/abs", "dir/", "a//b", "a/../b", "./a"}
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			for _, key := range keys {
				if err := s.Put(context.Background(), key, strings.NewReader("x"), 1); err == nil {
					t.Errorf("Put(%q) expected error", key)
				}
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			put(t, s, "root/CAS/abc_0", "x")

			if err := s.Delete(ctx, "root/CAS/abc_0"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := s.Get(ctx, "root/CAS/abc_0", &bytes.Buffer{}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, "root/CAS/abc_0"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_List(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			for _, key := range []string{"root/SPB/b_0", "root/CAS/z_0", "root/CAS/a_0", "other/x"} {
				put(t, s, key, "x")
			}

			tests := []struct {
				prefix string
				want   []string
			}{
				{"root/CAS/", []string{"root/CAS/a_0", "root/CAS/z_0"}},
				{"root/", []string{"root/CAS/a_0", "root/CAS/z_0", "root/SPB/b_0"}},
				{"root/CAS/a", []string{"root/CAS/a_0"}},
				{"root/MID/", nil},
				{"nowhere/", nil},
			}
			for _, tt := range tests {
				got, err := s.List(ctx, tt.prefix)
				if err != nil {
					t.Fatalf("List(%q) error = %v", tt.prefix, err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("List(%q) mismatch (-want +got):\n%s", tt.prefix, diff)
				}
			}
		})
	}
}

func TestStore_ValidateSetup(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			if err := newStore(t).ValidateSetup(context.Background()); err != nil {
				t.Errorf("ValidateSetup() error = %v", err)
			}
		})
	}
}
