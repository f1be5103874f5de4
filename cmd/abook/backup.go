package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"abook/internal/app"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("keys init", args, func(a *app.ABookApp) error {
			if a.KeysConfigured() {
				return errors.New("backup keys already exist")
			}
			passphrase, err := readPassphrase("Passphrase for the private key: ", true)
			if err != nil {
				return err
			}
			if passphrase == "" {
				return errors.New("passphrase must not be empty")
			}
			if err := a.SetupKeys(passphrase); err != nil {
				return err
			}
			fmt.Println("Backup keys created. Keep the passphrase safe: restores need it.")
			return nil
		})
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write an encrypted backup to a vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")
		return withApp("backup", args, func(a *app.ABookApp) error {
			name, err := a.Backup(vault)
			if err != nil {
				return err
			}
			fmt.Printf("Backup written: %s\n", name)
			return nil
		})
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backups in a vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")
		return withApp("backups", args, func(a *app.ABookApp) error {
			names, err := a.ListBackups(vault)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No backups.")
				return nil
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore NAME",
	Short: "Restore contacts missing from the store out of a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")
		return withApp("restore", args, func(a *app.ABookApp) error {
			passphrase, err := readPassphrase("Passphrase: ", false)
			if err != nil {
				return err
			}
			res, err := a.Restore(vault, args[0], passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d contact(s)\n", len(res.Contacts))
			if res.PreTag != "" {
				fmt.Printf("Undo with: abook rollback --to-tag %s\n", res.PreTag)
			}
			return nil
		})
	},
}

func init() {
	keysCmd.AddCommand(keysInitCmd)
	backupCmd.Flags().String("vault", "", "Vault name (default: first configured vault)")
	backupsCmd.Flags().String("vault", "", "Vault name (default: first configured vault)")
	restoreCmd.Flags().String("vault", "", "Vault name (default: first configured vault)")

	rootCmd.AddCommand(keysCmd, backupCmd, backupsCmd, restoreCmd)
}
