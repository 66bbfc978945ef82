package testutil

import (
	"msync/internal/bt"
	"msync/internal/vault"
)

// NewTestVault creates a plaintext vault over an in-memory store that reads
// local files through fsmgr. The store is returned for inspection and
// failure injection.
func NewTestVault(fsmgr bt.FilesystemManager) (*vault.ObjectVault, *vault.MemoryStore) {
	store := vault.NewMemoryStore()
	return vault.NewObjectVault(store, nil, vault.WithFilesystem(fsmgr)), store
}
