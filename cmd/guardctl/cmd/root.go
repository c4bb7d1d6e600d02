// Package cmd implements the guardctl CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gatewarden/gatewarden/internal/version"
	"github.com/gatewarden/gatewarden/pkg/realm"
)

var (
	// Global flags
	outputFormat string
	dbPath       string

	// Shared realm instance, opened for commands that touch accounts
	accountRealm *realm.SQLiteRealm
)

var rootCmd = &cobra.Command{
	Use:   "guardctl",
	Short: "Gatewarden operator CLI",
	Long: `guardctl manages the gatewarden account realm and mints
security tokens for clients.

It provides commands to add, lock, and list accounts, to grant and
check permissions, and to seal a credential into the header value a
client presents to the gateway.`,
	Version:      version.String(),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Token minting and help do not touch the account database.
		switch cmd.Name() {
		case "help", "completion", "mint":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "token" {
			return nil
		}

		path := dbPath
		if path == "" {
			path = defaultDBPath()
		}
		var err error
		accountRealm, err = realm.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if accountRealm != nil {
			accountRealm.Close()
		}
	},
}

// defaultDBPath returns the database path following the XDG spec.
func defaultDBPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "guardctl", "gatewarden.db")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: ~/.local/share/guardctl/gatewarden.db)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// formatOutput handles output formatting based on the --output flag.
func formatOutput(data interface{}) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}
