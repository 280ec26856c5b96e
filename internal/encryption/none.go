package encryption

import (
	"fmt"
	"io"
)

// NoneEncryptor stores documents as plain XML, the legacy layout.
type NoneEncryptor struct{}

var _ Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(passphrase string) error {
	return fmt.Errorf("document encryption is disabled")
}

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (NoneEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	return plaintext{}, nil
}

func (NoneEncryptor) IsConfigured() bool { return true }

type plaintext struct{}

func (plaintext) Decrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
