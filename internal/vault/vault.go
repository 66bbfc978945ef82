package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"msync/internal/bt"
)

// EncryptedSuffix is appended to the key of every encrypted object.
const EncryptedSuffix = ".age"

// ObjectStore holds the objects of one bucket.
type ObjectStore interface {
	// Put stores the content read from r under key, replacing any previous object.
	Put(ctx context.Context, key string, r io.Reader) error
	// Delete removes the object under key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Validate verifies the bucket is reachable, provisioning it if needed.
	Validate(ctx context.Context) error
}

// ObjectVault implements bt.Vault on top of an ObjectStore, optionally
// encrypting content before it is stored.
type ObjectVault struct {
	store     ObjectStore
	encryptor bt.Encryptor
	open      func(path string) (io.ReadCloser, error)
}

var _ bt.Vault = (*ObjectVault)(nil)

// Option configures an ObjectVault.
type Option func(*ObjectVault)

// WithFilesystem makes the vault read local files through fsmgr instead of
// opening them directly.
func WithFilesystem(fsmgr bt.FilesystemManager) Option {
	return func(v *ObjectVault) {
		v.open = func(path string) (io.ReadCloser, error) {
			return fsmgr.Open(bt.NewPath(path, false, nil))
		}
	}
}

// NewObjectVault creates a vault writing to store. encryptor may be nil.
func NewObjectVault(store ObjectStore, encryptor bt.Encryptor, opts ...Option) *ObjectVault {
	v := &ObjectVault{
		store:     store,
		encryptor: encryptor,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Store returns the underlying object store.
func (v *ObjectVault) Store() ObjectStore {
	return v.store
}

// Key returns the object key a local file is stored under.
func (v *ObjectVault) Key(localPath string) string {
	key := bt.ObjectKey(localPath)
	if v.encryptor != nil {
		key += EncryptedSuffix
	}
	return key
}

// UploadFile stores the content of localPath. Encrypted content is streamed
// to the store without being buffered in full.
func (v *ObjectVault) UploadFile(ctx context.Context, localPath string) error {
	f, err := v.open(localPath)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	key := v.Key(localPath)
	if v.encryptor == nil {
		return v.store.Put(ctx, key, f)
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := v.encryptor.Encrypt(f, pw)
		pw.CloseWithError(err)
		done <- err
	}()

	putErr := v.store.Put(ctx, key, pr)
	// Unblock the encryptor if the store stopped reading early.
	pr.Close()
	encErr := <-done

	if putErr != nil {
		return putErr
	}
	if encErr != nil {
		return fmt.Errorf("encrypting: %w", encErr)
	}
	return nil
}

// DeleteObject removes the object stored for key, as produced by bt.ObjectKey.
func (v *ObjectVault) DeleteObject(ctx context.Context, key string) error {
	if v.encryptor != nil {
		key += EncryptedSuffix
	}
	return v.store.Delete(ctx, key)
}

func (v *ObjectVault) ValidateSetup(ctx context.Context) error {
	return v.store.Validate(ctx)
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// BucketName derives the bucket of a location: prefix followed by the
// lowercased location name with every non-alphanumeric character replaced
// by '-'.
func BucketName(prefix, locationName string) string {
	return prefix + strings.ToLower(nonAlnum.ReplaceAllString(locationName, "-"))
}
