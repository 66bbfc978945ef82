package encryption

import (
	"fmt"
	"io"

	"msync/internal/bt"
)

// TestHeader is prepended to data by TestEncryptor.
var TestHeader = []byte("MSYNCENC")

// TestEncryptor is a simple, deterministic encryptor for testing.
// It prepends a fixed 8-byte header so that encrypted output differs from
// plaintext without requiring any keys.
type TestEncryptor struct {
	setupCalled bool
}

var _ bt.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(TestHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Verify(passphrase string) error {
	return nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}
