package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"msync/internal/bt"
	"msync/internal/config"
	"msync/internal/database"
	"msync/internal/encryption"
	"msync/internal/fs"
	"msync/internal/history"
	"msync/internal/notify"
	"msync/internal/vault"
)

// ErrUnknownLocation is returned when a location name or path matches no
// configured location.
var ErrUnknownLocation = errors.New("unknown location")

// Options tunes how an App reports what it does.
type Options struct {
	// Verbose enables debug logging of every file.
	Verbose bool
	// Console receives log lines in addition to the log file. Defaults to stderr.
	Console io.Writer
	// IDs generates the run ID. Defaults to random UUIDs.
	IDs bt.IDGenerator
	// Clock defaults to the system clock.
	Clock bt.Clock
}

// App is the application layer between the CLI and the backup engine.
// It constructs all dependencies from config and exposes one method per
// CLI command. The caller must call Close when done.
type App struct {
	cfg     *config.Config
	fsmgr   *fs.OSFilesystemManager
	history *history.Ledger
	logger  bt.Logger
	clock   bt.Clock
	op      *Operation
	logFile *os.File
}

// FileStatus is the cache state of a single file.
type FileStatus struct {
	Path     string
	Location bt.Location
	// Known reports whether the file has a cache entry.
	Known bool
	// Changed reports whether the next backup would upload the file.
	Changed bool
}

// NewApp creates an App from a validated config.
// command identifies the CLI command being run (e.g. "backup", "status").
func NewApp(cfg *config.Config, command string, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var ids bt.IDGenerator = bt.UUIDGenerator{}
	if opts.IDs != nil {
		ids = opts.IDs
	}
	var clock bt.Clock = bt.RealClock{}
	if opts.Clock != nil {
		clock = opts.Clock
	}

	op := NewOperation(ids.New(), command, clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, console, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &App{
		cfg:     cfg,
		fsmgr:   fs.NewOSFilesystemManager(cfg.Filesystem.Ignore),
		history: history.NewLedger(filepath.Join(cfg.HomeDir, history.FileName)),
		logger:  &slogAdapter{l: logger},
		clock:   clock,
		op:      op,
		logFile: logFile,
	}, nil
}

// Locations returns the configured backup locations.
func (a *App) Locations() ([]bt.Location, error) {
	locations, err := a.cfg.Backup.Locations()
	if err != nil {
		return nil, fmt.Errorf("resolving locations: %w", err)
	}
	return locations, nil
}

// RunBackup backs up every location, one at a time.
//
// Provisioning problems (missing keys, an unreachable vault) abort before any
// location runs. A location that cannot run is reported and the next one
// starts. The returned error names every location that did not back up
// cleanly. Cancelling ctx stops after the current location commits its
// progress.
func (a *App) RunBackup(ctx context.Context, dryRun, reset bool) ([]*bt.RunResult, error) {
	locations, err := a.Locations()
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, errors.New("no backup locations found")
	}

	encryptor, err := a.encryptor(dryRun)
	if err != nil {
		return nil, err
	}
	notifier, err := notify.NewNotifierFromConfig(a.cfg.Notification, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}
	reporter := bt.NewReporter(a.logger, notifier, a.cfg.Fingerprint == "checksum")

	vaults := make([]bt.Vault, len(locations))
	if !dryRun {
		for i, loc := range locations {
			v, err := vault.NewVaultFromConfig(ctx, a.cfg.Vault, loc.Name, encryptor, vault.WithFilesystem(a.fsmgr))
			if err != nil {
				return nil, fmt.Errorf("creating vault for %s: %w", loc.Name, err)
			}
			if err := v.ValidateSetup(ctx); err != nil {
				return nil, fmt.Errorf("validating vault for %s: %w", loc.Name, err)
			}
			vaults[i] = v
		}
	}

	opts := bt.RunOptions{
		DryRun:           dryRun,
		Reset:            reset,
		ProgressInterval: a.cfg.ProgressInterval,
	}

	var results []*bt.RunResult
	for i, loc := range locations {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		a.logger.Info("Starting backup", "location", loc.Name, "root", loc.Root)
		result, err := a.backupLocation(ctx, loc, vaults[i], reporter, opts)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			if ctx.Err() != nil {
				a.logger.Warn("backup interrupted", "location", loc.Name)
				return results, err
			}
			reporter.ReportFailure(ctx, loc, err, dryRun)
			a.op.Fail(loc.Name)
			continue
		}
		if result.Failed() {
			a.op.Fail(loc.Name)
		}
		a.logger.Info("Finished backup", "location", loc.Name)
	}

	return results, a.op.Err()
}

// backupLocation runs the engine on one location with its own store.
// v is nil for a dry run.
func (a *App) backupLocation(ctx context.Context, loc bt.Location, v bt.Vault, reporter *bt.Reporter, opts bt.RunOptions) (*bt.RunResult, error) {
	store, err := database.NewStoreFromConfig(a.cfg.Database, loc.Name)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	strategy, err := bt.NewFingerprintStrategy(a.cfg.Fingerprint, a.fsmgr)
	if err != nil {
		return nil, err
	}

	engine := bt.NewEngine(store, v, a.fsmgr, strategy, a.history, reporter, a.logger, a.clock)
	return engine.Run(ctx, loc, opts)
}

// encryptor returns the configured encryptor, or nil when encryption is off.
// Keys are only required when something will be uploaded.
func (a *App) encryptor(dryRun bool) (bt.Encryptor, error) {
	if !a.cfg.Encryption.Enabled {
		return nil, nil
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if !dryRun && !enc.IsConfigured() {
		return nil, errors.New("encryption is enabled but no keys are set up: run 'msync config keys init'")
	}
	return enc, nil
}

// Status reports the cache state of the file at rawPath.
func (a *App) Status(rawPath string) (*FileStatus, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if p.IsDir() {
		return nil, fmt.Errorf("%s is a directory", p.String())
	}

	loc, err := a.locationOf(p.String())
	if err != nil {
		return nil, err
	}

	store, err := database.NewStoreFromConfig(a.cfg.Database, loc.Name)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	strategy, err := bt.NewFingerprintStrategy(a.cfg.Fingerprint, a.fsmgr)
	if err != nil {
		return nil, err
	}
	fp, err := strategy.Fingerprint(p)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting: %w", err)
	}

	known, err := store.IsKnown(p.String())
	if err != nil {
		return nil, err
	}
	changed, err := store.IsNewOrChanged(p.String(), fp)
	if err != nil {
		return nil, err
	}

	return &FileStatus{Path: p.String(), Location: loc, Known: known, Changed: changed}, nil
}

// locationOf returns the location with the deepest root containing absPath.
func (a *App) locationOf(absPath string) (bt.Location, error) {
	locations, err := a.Locations()
	if err != nil {
		return bt.Location{}, err
	}

	var best bt.Location
	for _, loc := range locations {
		if !strings.HasPrefix(absPath, loc.Root+string(filepath.Separator)) {
			continue
		}
		if len(loc.Root) > len(best.Root) {
			best = loc
		}
	}
	if best.Root == "" {
		return bt.Location{}, fmt.Errorf("%w: %s is not inside a backup location", ErrUnknownLocation, absPath)
	}
	return best, nil
}

// History returns the last clean backup of every recorded root.
func (a *App) History() ([]history.Entry, error) {
	return a.history.All()
}

// ClearCache empties the cache of the named location and forgets its last
// backup, so the next run uploads every file again.
func (a *App) ClearCache(name string) error {
	locations, err := a.Locations()
	if err != nil {
		return err
	}

	for _, loc := range locations {
		if loc.Name != name {
			continue
		}
		store, err := database.NewStoreFromConfig(a.cfg.Database, loc.Name)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer store.Close()

		if err := store.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		if err := a.history.Remove(loc.Root); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		a.logger.Info("cache cleared", "location", loc.Name)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownLocation, name)
}

// KeysInit generates the encryption key pair, protecting the private key
// with passphrase.
func (a *App) KeysInit(passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	a.logger.Info("encryption keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// KeysVerify checks that passphrase unlocks the private key and that the key
// pair matches.
func (a *App) KeysVerify(passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	return enc.Verify(passphrase)
}

// Close logs the outcome of the operation and releases the log file.
func (a *App) Close() error {
	a.logger.Debug("operation finished",
		"command", a.op.Command,
		"status", a.op.Status(),
		"duration", a.clock.Now().Sub(a.op.StartedAt))

	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}
