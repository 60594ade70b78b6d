package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"feid-go/internal/app"
	"feid-go/internal/config"
	"feid-go/internal/feid"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a FEIDApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Edit", "Commit").
func newApp(cmd *cobra.Command, operation string) (*app.FEIDApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewFEIDApp(cmd.Context(), cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase returns FEID_PASSPHRASE when set, otherwise prompts on the
// terminal without echo.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("FEID_PASSPHRASE"); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("passphrase required: set FEID_PASSPHRASE or run from a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// unlock prompts for the passphrase when the local store is encrypted.
func unlock(a *app.FEIDApp) error {
	if !a.Encrypted() {
		return nil
	}
	p, err := readPassphrase("Passphrase: ")
	if err != nil {
		return err
	}
	return a.Unlock(p)
}

var rootCmd = &cobra.Command{
	Use:          "feid",
	Short:        "Space weather event catalogue",
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

		profileID := uuid.New().String()
		cfg := config.NewConfig(profileID, defaults["base_dir"])
		if url, _ := cmd.Flags().GetString("url"); url != "" {
			cfg.API.BaseURL = url
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Profile ID: %s\n", profileID)
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Profile ID: %s\n", cfg.ProfileID)
		fmt.Printf("API:        %s\n", cfg.API.BaseURL)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Staging:    %s\n", cfg.Staging.Type)
		for _, s := range cfg.Stores {
			fmt.Printf("Store:      %s (%s)\n", s.Name, s.Type)
		}
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Refresh:    %s\n", cfg.Refresh.Schedule)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the key pair for local store encryption",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "SetupKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if os.Getenv("FEID_PASSPHRASE") == "" {
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if confirm != p {
				return errors.New("passphrases do not match")
			}
		}
		if err := a.SetupKeys(p); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}
		fmt.Println("Key pair generated.")
		return nil
	},
}

var configStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Verify the local store is reachable and writable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ValidateStore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateStore(cmd.Context()); err != nil {
			return fmt.Errorf("local store check failed: %w", err)
		}
		fmt.Println("Local store OK.")
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		printOperations(ops)
		return nil
	},
}

func printOperations(ops []*feid.Operation) {
	for _, op := range ops {
		duration := ""
		if !op.FinishedAt.IsZero() {
			duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
		}
		fmt.Printf("#%d  %-15s  %s  %-8s  %-8s  %s\n",
			op.ID,
			op.Operation,
			op.StartedAt.Format("2006-01-02 15:04:05"),
			op.Status,
			duration,
			op.Parameters,
		)
	}
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh cached tables on the configured schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Watch")
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Watching for changes, press Ctrl-C to stop.")
		return a.Watch(cmd.Context(), func(err error) {
			stamp := time.Now().Format("15:04:05")
			if err != nil {
				fmt.Printf("%s  refresh failed: %v\n", stamp, err)
				return
			}
			fmt.Printf("%s  refreshed\n", stamp)
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("url", "", "Events API base URL")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configStoreCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(watchCmd)

	addTableCommands(rootCmd)
	addSampleCommands(rootCmd)
	addLayoutCommands(rootCmd)
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
