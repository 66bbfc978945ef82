package database

import (
	"os"
	"path/filepath"
	"testing"

	"msync/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory store", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "memory"}
		got, err := NewStoreFromConfig(cfg, "2023/holidays")
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()
	})

	t.Run("sqlite store is named after the location", func(t *testing.T) {
		dataDir := filepath.Join(t.TempDir(), "db")
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: dataDir}
		got, err := NewStoreFromConfig(cfg, "2023/holidays")
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		want := filepath.Join(dataDir, "2023%2Fholidays.db")
		if _, err := os.Stat(want); err != nil {
			t.Errorf("expected store file %s: %v", want, err)
		}
	})

	t.Run("sqlite store without data_dir", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite"}
		got, err := NewStoreFromConfig(cfg, "photos")
		if err == nil {
			t.Error("NewStoreFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			t.Error("NewStoreFromConfig() should return nil on error")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "postgres"}
		if _, err := NewStoreFromConfig(cfg, "photos"); err == nil {
			t.Error("NewStoreFromConfig() expected error for unknown type, got nil")
		}
	})
}

func TestStorePath(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "photos", want: "/data/photos.db"},
		{name: "2023 trip", want: "/data/2023+trip.db"},
		{name: "a/b", want: "/data/a%2Fb.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StorePath("/data", tt.name); got != tt.want {
				t.Errorf("StorePath() = %q, want %q", got, tt.want)
			}
		})
	}
}
