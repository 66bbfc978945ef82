package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"msync/internal/app"
	"msync/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"], defaults["home_dir"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "backup", "status").
func newApp(cmd *cobra.Command, command string) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewApp(cfg, command, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echoing the input.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "msync",
	Short:        "Incremental backup of directory trees to object storage",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["home_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Home Dir: %s\n", cfg.HomeDir)
		fmt.Printf("Cache:    %s\n", defaults["data_dir"])
		fmt.Printf("Keys:     %s\n", filepath.Dir(defaults["public_key_path"]))
		fmt.Printf("History:  %s\n", defaults["history_path"])
		fmt.Println("Add folders or roots to the [backup] section before running a backup.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		shown := *cfg
		if shown.Vault.SecretAccessKey != "" {
			shown.Vault.SecretAccessKey = "********"
		}

		fmt.Printf("# Configuration from %s (with defaults)\n\n", defaults["config_path"])
		m := &config.Manager{}
		return m.Write(os.Stdout, &shown)
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "keys-init")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase for the private key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return errors.New("passphrases do not match")
		}
		if passphrase == "" {
			return errors.New("passphrase must not be empty")
		}

		if err := a.KeysInit(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys created. Keep the passphrase safe: it is required to restore files.")
		return nil
	},
}

var configKeysVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the passphrase and key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "keys-verify")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		if err := a.KeysVerify(passphrase); err != nil {
			return err
		}
		fmt.Println("Keys OK")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up every location",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		reset, _ := cmd.Flags().GetBool("reset")

		a, err := newApp(cmd, "backup")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, err := a.RunBackup(ctx, dryRun, reset)
		for _, r := range results {
			fmt.Printf("%-30s %d new, %d updated, %d deleted, %d errors, %d skipped\n",
				r.Location.Name, len(r.Added), len(r.Updated), len(r.Deleted), len(r.Errors), r.Skipped)
		}
		return err
	},
}

// locations command
var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List backup locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "locations")
		if err != nil {
			return err
		}
		defer a.Close()

		locations, err := a.Locations()
		if err != nil {
			return err
		}
		if len(locations) == 0 {
			fmt.Println("No locations configured.")
			return nil
		}
		for _, loc := range locations {
			fmt.Printf("%-30s %s\n", loc.Name, loc.Root)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status PATH",
	Short: "View the backup status of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "status")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Status(args[0])
		if err != nil {
			return err
		}

		var indicator string
		switch {
		case s.Known && s.Changed:
			indicator = "BM"
		case s.Known:
			indicator = "B "
		default:
			indicator = "? "
		}
		fmt.Printf("%s %s  [%s]\n", indicator, s.Path, s.Location.Name)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View the last successful backup of each location",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No backups recorded.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", e.LastBackup.Local().Format(time.DateTime), e.Root)
		}
		return nil
	},
}

// cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage fingerprint caches",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear NAME",
	Short: "Forget everything backed up for a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "cache-clear")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearCache(args[0]); err != nil {
			return err
		}
		fmt.Printf("Cache of %s cleared. The next backup uploads every file again.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every file")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)
	configKeysCmd.AddCommand(configKeysVerifyCmd)

	// cache subcommands
	cacheCmd.AddCommand(cacheClearCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().Bool("dry-run", false, "Report what would change without uploading or updating the cache")
	backupCmd.Flags().Bool("reset", false, "Clear the cache first and upload every file again")
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cacheCmd)
}
