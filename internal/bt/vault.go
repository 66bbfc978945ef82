package bt

import (
	"context"
	"strings"
)

// Vault is the remote object store that backed-up files are pushed to.
// Failures are returned as errors; the engine never expects a panic.
type Vault interface {
	// UploadFile uploads the file at localPath under ObjectKey(localPath).
	// Uploading the same path again replaces the object.
	UploadFile(ctx context.Context, localPath string) error

	// DeleteObject removes the object stored under key.
	DeleteObject(ctx context.Context, key string) error

	// ValidateSetup verifies that the vault is reachable and provisioned.
	ValidateSetup(ctx context.Context) error
}

// ObjectKey derives the remote object key for a local file path by
// stripping leading path separators.
func ObjectKey(localPath string) string {
	return strings.TrimLeft(localPath, "/")
}
