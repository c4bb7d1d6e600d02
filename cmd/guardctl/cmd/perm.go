package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatewarden/gatewarden/pkg/realm"
)

func init() {
	rootCmd.AddCommand(permCmd)
	permCmd.AddCommand(permGrantCmd)
	permCmd.AddCommand(permRevokeCmd)
	permCmd.AddCommand(permListCmd)
	permCmd.AddCommand(permCheckCmd)
}

var permCmd = &cobra.Command{
	Use:   "perm",
	Short: "Manage permissions",
	Long:  `Commands to grant, revoke, list, and check account permissions.`,
}

var permGrantCmd = &cobra.Command{
	Use:   "grant <username> <permission>",
	Short: "Grant a permission to an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := accountRealm.GrantPermission(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to grant permission: %w", err)
		}
		fmt.Printf("Granted %s to %s\n", args[1], args[0])
		return nil
	},
}

var permRevokeCmd = &cobra.Command{
	Use:   "revoke <username> <permission>",
	Short: "Revoke a permission from an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := accountRealm.RevokePermission(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to revoke permission: %w", err)
		}
		fmt.Printf("Revoked %s from %s\n", args[1], args[0])
		return nil
	},
}

var permListCmd = &cobra.Command{
	Use:   "list <username>",
	Short: "List an account's granted permissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		perms, err := accountRealm.Permissions(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list permissions: %w", err)
		}
		if outputFormat != "table" {
			return formatOutput(perms)
		}
		for _, p := range perms {
			fmt.Println(p)
		}
		return nil
	},
}

var permCheckCmd = &cobra.Command{
	Use:   "check <username> <permission>",
	Short: "Check whether an account's grants imply a permission",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		perms, err := accountRealm.Permissions(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list permissions: %w", err)
		}
		for _, granted := range perms {
			if realm.Implies(granted, args[1]) {
				fmt.Printf("%s (implied by %s)\n", okFmt("PERMITTED"), granted)
				return nil
			}
		}
		fmt.Println(warnFmt("DENIED"))
		return nil
	},
}
