package bt

import "io"

// Encryptor encrypts file content before it leaves the machine.
// Encryption uses the public key only, so no user interaction is needed
// during a backup run.
type Encryptor interface {
	// Setup performs one-time key generation. Called by `msync config keys init`.
	// Generates a key pair, stores the public key in plaintext, and encrypts
	// the private key with the provided passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Verify checks that passphrase unlocks the private key and that the
	// private key matches the public key used by Encrypt.
	Verify(passphrase string) error

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}
