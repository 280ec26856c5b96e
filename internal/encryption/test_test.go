package encryption

import (
	"bytes"
	"strings"
	"testing"

	"projectdb-go/internal/config"
)

func TestTestEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, input := range []string{sampleDocument, ""} {
		e := NewTestEncryptor()
		var encrypted bytes.Buffer
		if err := e.Encrypt(strings.NewReader(input), &encrypted); err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if !bytes.HasPrefix(encrypted.Bytes(), testHeader) {
			t.Error("encrypted output does not start with test header")
		}

		dc, err := e.Unlock("any")
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		var decrypted bytes.Buffer
		if err := dc.Decrypt(&encrypted, &decrypted); err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if decrypted.String() != input {
			t.Errorf("round-trip failed: got %q, want %q", decrypted.String(), input)
		}
	}
}

func TestTestEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := NewTestEncryptor()
	if err := e.Setup("any"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.setupCalled {
		t.Error("Setup() did not record that it was called")
	}
}

func TestTestDecryptionContext_BadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"plain document", sampleDocument},
		{"truncated header", "PDB"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := &TestDecryptionContext{}
			if err := dc.Decrypt(strings.NewReader(tt.input), &bytes.Buffer{}); err == nil {
				t.Error("Decrypt() expected error")
			}
		})
	}
}

func TestNoneEncryptor(t *testing.T) {
	t.Parallel()

	e := NoneEncryptor{}
	var stored bytes.Buffer
	if err := e.Encrypt(strings.NewReader(sampleDocument), &stored); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if stored.String() != sampleDocument {
		t.Errorf("stored = %q, want the document unchanged", stored.String())
	}

	dc, err := e.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var out bytes.Buffer
	if err := dc.Decrypt(&stored, &out); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if out.String() != sampleDocument {
		t.Errorf("Decrypt() = %q, want the document", out.String())
	}
	if err := e.Setup("x"); err == nil {
		t.Error("Setup() expected error when encryption is disabled")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		want    string
		wantErr bool
	}{
		{"default", config.EncryptionConfig{}, "none", false},
		{"none", config.EncryptionConfig{Type: "none"}, "none", false},
		{"test", config.EncryptionConfig{Type: "test"}, "test", false},
		{"age", config.EncryptionConfig{Type: "age", PublicKeyPath: "/k.pub", PrivateKeyPath: "/k.key"}, "age", false},
		{"age without keys", config.EncryptionConfig{Type: "age"}, "", true},
		{"unknown", config.EncryptionConfig{Type: "rot13"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			var kind string
			switch got.(type) {
			case NoneEncryptor:
				kind = "none"
			case *TestEncryptor:
				kind = "test"
			case *AgeEncryptor:
				kind = "age"
			}
			if kind != tt.want {
				t.Errorf("NewEncryptorFromConfig() = %T, want %s", got, tt.want)
			}
		})
	}
}
