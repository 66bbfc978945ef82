package bt

// CacheEntry records the fingerprint of a file as it was last uploaded.
type CacheEntry struct {
	Path        string
	Fingerprint Fingerprint
}

// FingerprintStore is the persistent cache of what the remote side holds for
// one backup location. Every method is transactional: it either fully
// applies or has no effect.
type FingerprintStore interface {
	// ListAll returns every cached entry. Order is not significant.
	ListAll() ([]CacheEntry, error)

	// Upsert inserts or replaces the given entries, keyed by path.
	Upsert(entries []CacheEntry) error

	// DeleteAll removes the entries for the given paths.
	// Paths that are not cached are ignored.
	DeleteAll(paths []string) error

	// IsKnown reports whether path has a cache entry.
	IsKnown(path string) (bool, error)

	// IsNewOrChanged reports whether path is not cached or is cached with a
	// fingerprint that differs from fp.
	IsNewOrChanged(path string, fp Fingerprint) (bool, error)

	// Clear removes every entry.
	Clear() error

	// Close releases the underlying storage.
	Close() error
}
