package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"msync/internal/config"
	"msync/internal/encryption"
	"msync/internal/testutil"
)

// testEnv is a config with two locations ("2023" and "2024") below a
// temporary source root, backed up to a filesystem vault.
type testEnv struct {
	cfg   *config.Config
	src   string
	vault string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "2023", "a.jpg"), "aaa")
	writeFile(t, filepath.Join(src, "2024", "b.jpg"), "bbb")

	cfg := config.NewConfig(home)
	cfg.Backup.Roots = []string{src}
	cfg.Vault = config.VaultConfig{
		Type:         "filesystem",
		BucketPrefix: "test--",
		FSRoot:       filepath.Join(home, "vault"),
	}
	cfg.Notification.Type = "log"

	return &testEnv{cfg: cfg, src: src, vault: cfg.Vault.FSRoot}
}

// objectPath returns where the filesystem vault keeps the object of localPath.
func (e *testEnv) objectPath(location, localPath string) string {
	return filepath.Join(e.vault, "test--"+location, strings.TrimLeft(localPath, "/"))
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewApp(cfg, "test", Options{
		Console: io.Discard,
		IDs:     &testutil.StubIDGenerator{},
		Clock:   testutil.FixedClock(),
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readLog(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.LogDir, LogFileName))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	return string(data)
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	// No folders or roots.
	if _, err := NewApp(cfg, "test", Options{Console: io.Discard}); err == nil {
		t.Error("NewApp() expected error for config without locations")
	}
}

func TestApp_Locations(t *testing.T) {
	env := newTestEnv(t)
	a := newTestApp(t, env.cfg)

	locations, err := a.Locations()
	if err != nil {
		t.Fatalf("Locations() error = %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("Locations() returned %d locations, want 2", len(locations))
	}
	if locations[0].Name != "2023" || locations[0].Root != filepath.Join(env.src, "2023") {
		t.Errorf("locations[0] = %+v", locations[0])
	}
	if locations[1].Name != "2024" {
		t.Errorf("locations[1] = %+v", locations[1])
	}
}

func TestApp_RunBackup(t *testing.T) {
	env := newTestEnv(t)
	a := newTestApp(t, env.cfg)
	ctx := context.Background()

	results, err := a.RunBackup(ctx, false, false)
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if len(r.Added) != 1 || r.Failed() {
			t.Errorf("%s: Added = %v, Errors = %v", r.Location.Name, r.Added, r.Errors)
		}
	}

	aPath := filepath.Join(env.src, "2023", "a.jpg")
	data, err := os.ReadFile(env.objectPath("2023", aPath))
	if err != nil {
		t.Fatalf("object not stored: %v", err)
	}
	if string(data) != "aaa" {
		t.Errorf("object content = %q, want aaa", data)
	}

	entries, err := a.History()
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("History() has %d entries, want 2", len(entries))
	}
	if want := testutil.FixedClock().Now(); !entries[0].LastBackup.Equal(want) {
		t.Errorf("LastBackup = %v, want %v", entries[0].LastBackup, want)
	}

	log := readLog(t, env.cfg)
	for _, want := range []string{"\trun-1\tStarting backup", "Finished backup", "Success:"} {
		if !strings.Contains(log, want) {
			t.Errorf("log does not contain %q:\n%s", want, log)
		}
	}

	// A second run finds nothing to do.
	results, err = a.RunBackup(ctx, false, false)
	if err != nil {
		t.Fatalf("second RunBackup() error = %v", err)
	}
	for _, r := range results {
		if len(r.Added)+len(r.Updated)+len(r.Deleted) != 0 || r.Skipped != 1 {
			t.Errorf("%s: second run changed something: %+v", r.Location.Name, r)
		}
	}
}

func TestApp_RunBackup_DryRun(t *testing.T) {
	env := newTestEnv(t)
	a := newTestApp(t, env.cfg)

	results, err := a.RunBackup(context.Background(), true, false)
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	for _, r := range results {
		if !r.DryRun || len(r.Added) != 1 {
			t.Errorf("%s: DryRun = %v, Added = %v", r.Location.Name, r.DryRun, r.Added)
		}
	}

	if _, err := os.Stat(env.vault); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dry run touched the vault: %v", err)
	}
	entries, _ := a.History()
	if len(entries) != 0 {
		t.Errorf("dry run recorded history: %v", entries)
	}
}

func TestApp_RunBackup_MissingLocationContinues(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Backup.Folders = []string{filepath.Join(env.src, "missing")}
	a := newTestApp(t, env.cfg)

	results, err := a.RunBackup(context.Background(), false, false)

	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("RunBackup() error = %v, want failure naming the missing location", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want the 2 healthy locations", len(results))
	}
	if !strings.Contains(readLog(t, env.cfg), "Backup of 'missing' aborted") {
		t.Error("aborted location was not notified")
	}
}

func TestApp_RunBackup_Encryption(t *testing.T) {
	t.Run("keys required", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.Encryption.Enabled = true
		a := newTestApp(t, env.cfg)

		if _, err := a.RunBackup(context.Background(), false, false); err == nil {
			t.Fatal("RunBackup() expected error without keys")
		}
		if _, err := os.Stat(env.vault); !errors.Is(err, os.ErrNotExist) {
			t.Error("vault provisioned although keys are missing")
		}
	})

	t.Run("encrypted objects", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.Encryption.Enabled = true
		env.cfg.Encryption.Type = "test"
		a := newTestApp(t, env.cfg)

		if _, err := a.RunBackup(context.Background(), false, false); err != nil {
			t.Fatalf("RunBackup() error = %v", err)
		}

		aPath := filepath.Join(env.src, "2023", "a.jpg")
		data, err := os.ReadFile(env.objectPath("2023", aPath) + ".age")
		if err != nil {
			t.Fatalf("encrypted object not stored: %v", err)
		}
		if !bytes.HasPrefix(data, encryption.TestHeader) {
			t.Errorf("object is not encrypted: %q", data)
		}
	})
}

func TestApp_RunBackup_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	a := newTestApp(t, env.cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.RunBackup(ctx, false, false); !errors.Is(err, context.Canceled) {
		t.Errorf("RunBackup() error = %v, want context.Canceled", err)
	}
}

func TestApp_Status(t *testing.T) {
	env := newTestEnv(t)
	a := newTestApp(t, env.cfg)
	aPath := filepath.Join(env.src, "2023", "a.jpg")

	before, err := a.Status(aPath)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if before.Known || !before.Changed || before.Location.Name != "2023" {
		t.Errorf("Status() before backup = %+v", before)
	}

	if _, err := a.RunBackup(context.Background(), false, false); err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	after, err := a.Status(aPath)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !after.Known || after.Changed {
		t.Errorf("Status() after backup = %+v", after)
	}

	writeFile(t, aPath, "changed")
	modified, err := a.Status(aPath)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !modified.Known || !modified.Changed {
		t.Errorf("Status() after change = %+v", modified)
	}

	outside := filepath.Join(t.TempDir(), "x.jpg")
	writeFile(t, outside, "x")
	if _, err := a.Status(outside); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("Status() outside locations error = %v, want ErrUnknownLocation", err)
	}
}

func TestApp_ClearCache(t *testing.T) {
	env := newTestEnv(t)
	a := newTestApp(t, env.cfg)
	if _, err := a.RunBackup(context.Background(), false, false); err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	if err := a.ClearCache("2023"); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}

	status, err := a.Status(filepath.Join(env.src, "2023", "a.jpg"))
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Known {
		t.Error("cache entry survived ClearCache")
	}
	entries, _ := a.History()
	if len(entries) != 1 || entries[0].Root != filepath.Join(env.src, "2024") {
		t.Errorf("History() = %+v, want only the 2024 root", entries)
	}

	if err := a.ClearCache("1999"); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("ClearCache() unknown location error = %v", err)
	}
}

func TestApp_Keys(t *testing.T) {
	env := newTestEnv(t)
	a := newTestApp(t, env.cfg)

	if err := a.KeysInit("correct horse"); err != nil {
		t.Fatalf("KeysInit() error = %v", err)
	}
	if err := a.KeysInit("correct horse"); err == nil {
		t.Error("KeysInit() should refuse to replace existing keys")
	}
	if err := a.KeysVerify("correct horse"); err != nil {
		t.Errorf("KeysVerify() error = %v", err)
	}
	if err := a.KeysVerify("wrong"); err == nil {
		t.Error("KeysVerify() expected error for wrong passphrase")
	}
}
