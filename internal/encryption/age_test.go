package encryption

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"

	"msync/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	cfg := config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "msync.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "msync.key"),
	}
	return NewAgeEncryptor(cfg)
}

// decryptWith unlocks e's private key and decrypts ciphertext with it.
func decryptWith(t *testing.T, e *AgeEncryptor, passphrase string, ciphertext []byte) []byte {
	t.Helper()
	identity, err := e.unlock(passphrase)
	if err != nil {
		t.Fatalf("unlock() error = %v", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		t.Fatalf("age.Decrypt() error = %v", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading plaintext: %v", err)
	}
	return plaintext
}

func TestAgeEncryptor_IsConfigured_BeforeSetup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
}

func TestAgeEncryptor_Setup_IsConfigured(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if err := e.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}

	info, err := os.Stat(e.privateKeyPath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("private key mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestAgeEncryptor_SetupRefusesToOverwrite(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if err := e.Setup("first"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	pub, _ := os.ReadFile(e.publicKeyPath)

	if err := e.Setup("second"); !errors.Is(err, ErrKeysExist) {
		t.Errorf("second Setup() error = %v, want ErrKeysExist", err)
	}
	after, _ := os.ReadFile(e.publicKeyPath)
	if !bytes.Equal(pub, after) {
		t.Error("second Setup() replaced the public key")
	}
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			passphrase := "test-passphrase"
			e := newTestAgeEncryptor(t)
			if err := e.Setup(passphrase); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(encrypted.Bytes(), tt.input) {
				t.Error("encrypted output contains the plaintext")
			}

			got := decryptWith(t, e, passphrase, encrypted.Bytes())
			if !bytes.Equal(got, tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", len(got), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_Verify(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if err := e.Verify("correct-passphrase"); err != nil {
		t.Errorf("Verify() with correct passphrase error = %v", err)
	}
	if err := e.Verify("wrong-passphrase"); err == nil {
		t.Error("Verify() with wrong passphrase should return error")
	}
}

func TestAgeEncryptor_VerifyDetectsMismatchedKeys(t *testing.T) {
	t.Parallel()

	a := newTestAgeEncryptor(t)
	b := newTestAgeEncryptor(t)
	if err := a.Setup("pass"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := b.Setup("pass"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	// Pair a's private key with b's public key.
	mixed := &AgeEncryptor{publicKeyPath: b.publicKeyPath, privateKeyPath: a.privateKeyPath}
	if err := mixed.Verify("pass"); err == nil {
		t.Error("Verify() with mismatched key pair should return error")
	}
}

func TestAgeEncryptor_EncryptBeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	var buf bytes.Buffer
	err := e.Encrypt(bytes.NewReader([]byte("data")), &buf)
	if err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
}

func TestAgeEncryptor_VerifyBeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Verify("passphrase"); err == nil {
		t.Error("Verify() before Setup should return error")
	}
}
