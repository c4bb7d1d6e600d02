package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	okFmt   = color.New(color.FgGreen).SprintFunc()
	warnFmt = color.New(color.FgRed).SprintFunc()
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountLockCmd)
	accountCmd.AddCommand(accountUnlockCmd)

	accountAddCmd.Flags().StringP("secret", "s", "", "Account secret (required)")
	accountAddCmd.MarkFlagRequired("secret")
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
	Long:  `Commands to add, lock, unlock, and list realm accounts.`,
}

var accountAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if err := accountRealm.AddAccount(cmd.Context(), args[0], []byte(secret)); err != nil {
			return fmt.Errorf("failed to add account: %w", err)
		}
		fmt.Printf("Account %s added\n", args[0])
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts, err := accountRealm.ListAccounts(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}

		if outputFormat != "table" {
			return formatOutput(accounts)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tSTATUS\tCREATED")
		for _, a := range accounts {
			status := okFmt("active")
			if a.Locked {
				status = warnFmt("locked")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Username, status, a.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var accountLockCmd = &cobra.Command{
	Use:   "lock <username>",
	Short: "Lock an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := accountRealm.SetLocked(cmd.Context(), args[0], true); err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}
		fmt.Printf("Account %s locked\n", args[0])
		return nil
	},
}

var accountUnlockCmd = &cobra.Command{
	Use:   "unlock <username>",
	Short: "Unlock an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := accountRealm.SetLocked(cmd.Context(), args[0], false); err != nil {
			return fmt.Errorf("failed to unlock account: %w", err)
		}
		fmt.Printf("Account %s unlocked\n", args[0])
		return nil
	},
}
