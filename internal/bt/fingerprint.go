package bt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// FingerprintKind identifies how a Fingerprint value was computed.
type FingerprintKind string

const (
	// KindChecksum is a hex-encoded SHA-256 digest of the file content.
	KindChecksum FingerprintKind = "sha256"
	// KindModTime is the file modification time in fractional epoch seconds.
	KindModTime FingerprintKind = "mtime"
)

// MTimeTolerance is the largest difference, in seconds, at which two
// modification-time fingerprints are still considered equal.
const MTimeTolerance = 1e-5

// Fingerprint is a comparable value used to detect that a file changed.
// Fingerprints of different kinds never compare equal.
type Fingerprint struct {
	Kind  FingerprintKind
	Value string
}

// String encodes the fingerprint as "<kind>:<value>", the form stored in the cache.
func (f Fingerprint) String() string {
	return string(f.Kind) + ":" + f.Value
}

// Equal reports whether f and other describe the same file state.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.Kind != other.Kind {
		return false
	}
	if f.Kind != KindModTime {
		return f.Value == other.Value
	}

	a, errA := strconv.ParseFloat(f.Value, 64)
	b, errB := strconv.ParseFloat(other.Value, 64)
	if errA != nil || errB != nil {
		return f.Value == other.Value
	}
	return math.Abs(a-b) < MTimeTolerance
}

// ParseFingerprint decodes a fingerprint previously produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Fingerprint{}, fmt.Errorf("malformed fingerprint: %q", s)
	}
	switch FingerprintKind(kind) {
	case KindChecksum, KindModTime:
		return Fingerprint{Kind: FingerprintKind(kind), Value: value}, nil
	default:
		return Fingerprint{}, fmt.Errorf("unknown fingerprint kind: %q", kind)
	}
}

// FingerprintStrategy computes the fingerprint of a regular file.
// Exactly one strategy is used per deployment; switching strategies makes
// every cached entry look changed, so it must be combined with a reset.
type FingerprintStrategy interface {
	Kind() FingerprintKind
	Fingerprint(path *Path) (Fingerprint, error)
}

// NewFingerprintStrategy returns the strategy registered under name.
// An empty name selects the checksum strategy.
func NewFingerprintStrategy(name string, fsmgr FilesystemManager) (FingerprintStrategy, error) {
	switch name {
	case "checksum", "":
		return &ChecksumStrategy{fsmgr: fsmgr}, nil
	case "mtime":
		return ModTimeStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown fingerprint strategy: %q", name)
	}
}

// ChecksumStrategy fingerprints a file by reading its full content.
type ChecksumStrategy struct {
	fsmgr FilesystemManager
}

// NewChecksumStrategy creates a ChecksumStrategy reading files through fsmgr.
func NewChecksumStrategy(fsmgr FilesystemManager) *ChecksumStrategy {
	return &ChecksumStrategy{fsmgr: fsmgr}
}

func (s *ChecksumStrategy) Kind() FingerprintKind { return KindChecksum }

func (s *ChecksumStrategy) Fingerprint(path *Path) (Fingerprint, error) {
	r, err := s.fsmgr.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("opening file: %w", err)
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Fingerprint{}, fmt.Errorf("hashing file: %w", err)
	}
	return Fingerprint{Kind: KindChecksum, Value: hex.EncodeToString(h.Sum(nil))}, nil
}

// ModTimeStrategy fingerprints a file by its modification time only.
// It never reads content, so a change that preserves mtime goes unnoticed.
type ModTimeStrategy struct{}

func (ModTimeStrategy) Kind() FingerprintKind { return KindModTime }

func (ModTimeStrategy) Fingerprint(path *Path) (Fingerprint, error) {
	info := path.Info()
	if info == nil {
		return Fingerprint{}, fmt.Errorf("no file info for %s", path.String())
	}
	mtime := info.ModTime()
	seconds := float64(mtime.Unix()) + float64(mtime.Nanosecond())/1e9
	return Fingerprint{Kind: KindModTime, Value: strconv.FormatFloat(seconds, 'f', 6, 64)}, nil
}
