package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"msync/internal/bt"
)

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

// Locations resolves the configured folders and roots into backup locations,
// sorted by root. Each location is named by its path relative to the common
// path of all folders; a lone folder is named by its base name.
func (b BackupConfig) Locations() ([]bt.Location, error) {
	var folders []string
	for _, f := range b.Folders {
		folder, err := absFolder(f)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}

	for _, r := range b.Roots {
		root, err := absFolder(r)
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading backup root: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				folders = append(folders, filepath.Join(root, entry.Name()))
			}
		}
	}

	slices.Sort(folders)
	folders = slices.Compact(folders)
	if len(folders) == 0 {
		return nil, nil
	}

	common := commonPath(folders)
	locations := make([]bt.Location, 0, len(folders))
	seen := make(map[string]string, len(folders))
	for _, folder := range folders {
		name, err := filepath.Rel(common, folder)
		if err != nil || name == "." {
			name = filepath.Base(folder)
		}
		if other, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate location name %q for %s and %s", name, other, folder)
		}
		seen[name] = folder
		locations = append(locations, bt.Location{Name: name, Root: folder})
	}
	return locations, nil
}

func absFolder(path string) (string, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}

// commonPath returns the longest directory path that contains every path.
// Paths must be absolute and clean.
func commonPath(paths []string) string {
	common := strings.Split(paths[0], string(filepath.Separator))
	for _, p := range paths[1:] {
		parts := strings.Split(p, string(filepath.Separator))
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	joined := strings.Join(common, string(filepath.Separator))
	if joined == "" {
		return string(filepath.Separator)
	}
	return joined
}
