package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"abook/internal/app"
	"abook/internal/provider"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage sync providers",
}

var providerAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		path, _ := cmd.Flags().GetString("path")
		return withApp("provider add", args, func(a *app.ABookApp) error {
			if err := a.AddProvider(provider.Entry{Name: args[0], Type: typ, Path: path}); err != nil {
				return err
			}
			fmt.Printf("Provider %s added.\n", args[0])
			return nil
		})
	},
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("provider list", args, func(a *app.ABookApp) error {
			entries, err := a.ListProviders()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No providers.")
				return nil
			}
			for _, e := range entries {
				last := "never"
				if e.LastSync != nil {
					last = e.LastSync.Local().Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-16s %-8s %-40s last sync: %s\n", e.Name, e.Type, e.Path, last)
			}
			return nil
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync NAME",
	Short: "Exchange changes with a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("sync", args, func(a *app.ABookApp) error {
			res, err := a.Sync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Pulled: %d created, %d updated\n", res.Created, res.Updated)
			fmt.Printf("Pushed: %d created, %d updated, %d deleted\n", res.Pushed, res.RemoteUpdated, res.RemoteDeleted)
			if res.PreTag != "" {
				fmt.Printf("Undo with: abook rollback --to-tag %s\n", res.PreTag)
			}
			return nil
		})
	},
}

func init() {
	providerAddCmd.Flags().String("type", provider.TypeLocal, "Provider type")
	providerAddCmd.Flags().String("path", "", "Directory of vCard files (type local)")
	providerCmd.AddCommand(providerAddCmd, providerListCmd)

	rootCmd.AddCommand(providerCmd, syncCmd)
}
