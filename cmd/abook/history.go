package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"abook/internal/abook"
	"abook/internal/app"
)

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the change history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		id, _ := cmd.Flags().GetString("id")
		return withApp("history", args, func(a *app.ABookApp) error {
			entries, err := a.History(limit, id)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %s  %-8s  %s\n",
					shortHash(e.Hash), e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Operation, e.Subject())
			}
			return nil
		})
	},
}

// rollbackOptions maps the mutually exclusive rollback flags to options.
func rollbackOptions(cmd *cobra.Command) (abook.RollbackOptions, error) {
	f := cmd.Flags()
	dryRun, _ := f.GetBool("dry-run")
	opts := abook.RollbackOptions{DryRun: dryRun}

	set := 0
	if f.Changed("last") {
		opts.Mode = abook.RollbackLast
		opts.Count, _ = f.GetInt("last")
		set++
	}
	if f.Changed("to-commit") {
		opts.Mode = abook.RollbackToCommit
		opts.Target, _ = f.GetString("to-commit")
		set++
	}
	if f.Changed("to-tag") {
		opts.Mode = abook.RollbackToTag
		opts.Target, _ = f.GetString("to-tag")
		set++
	}
	if set != 1 {
		return opts, errors.New("specify exactly one of --last, --to-commit or --to-tag")
	}
	return opts, nil
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert recent changes",
	Long: `Revert recent changes by adding revert commits.

A safety tag is written first, so a rollback can itself be undone with
'abook rollback --to-tag TAG'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := rollbackOptions(cmd)
		if err != nil {
			return err
		}
		return withApp("rollback", args, func(a *app.ABookApp) error {
			res, err := a.Rollback(opts)
			if err != nil {
				return err
			}
			if res.DryRun {
				fmt.Printf("Would revert %d commit(s):\n", len(res.Commits))
			} else {
				fmt.Printf("Reverted %d commit(s):\n", res.Reverted)
			}
			for _, c := range res.Commits {
				fmt.Printf("  %s  %s\n", shortHash(c.Hash), c.Subject())
			}
			if res.SafetyTag != "" {
				fmt.Printf("Safety tag: %s\n", res.SafetyTag)
			}
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")
	historyCmd.Flags().String("id", "", "Only show changes to this contact")
	rollbackCmd.Flags().Int("last", 1, "Revert the last N changes")
	rollbackCmd.Flags().String("to-commit", "", "Revert every change after this commit")
	rollbackCmd.Flags().String("to-tag", "", "Revert every change after this tag")
	rollbackCmd.Flags().Bool("dry-run", false, "Show what would be reverted")

	rootCmd.AddCommand(historyCmd, rollbackCmd)
}
