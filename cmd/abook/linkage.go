package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"abook/internal/app"
	"abook/internal/model"
)

func fieldNames(fields []model.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Find likely duplicate contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp("dupes", args, func(a *app.ABookApp) error {
			candidates, err := a.Duplicates(threshold, limit)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Println("No duplicates found.")
				return nil
			}
			for _, c := range candidates {
				fmt.Printf("%.2f  %s (%s)  <->  %s (%s)  [%s]\n",
					c.Confidence, c.A.Label(), c.A.ID, c.B.Label(), c.B.ID, fieldNames(c.Fields))
			}
			return nil
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge ID ID...",
	Short: "Merge contacts into the first one",
	Long: `Merge contacts into the first one and archive the others.

Use --field name=ID to take a field from a specific contact, for example
--field note=2f1c... or --field emails=9a0b...`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, _ := cmd.Flags().GetString("strategy")
		fields, _ := cmd.Flags().GetStringArray("field")
		return withApp("merge", args, func(a *app.ABookApp) error {
			res, err := a.Merge(args, strategy, fields)
			if err != nil {
				return err
			}
			fmt.Printf("Merged into %s (%s)\n", res.Contact.Label(), res.Contact.ID)
			for _, id := range res.SourceIDs {
				if fields := res.FieldsFromEach[id]; len(fields) > 0 {
					fmt.Printf("  from %s: %s\n", id, fieldNames(fields))
				}
			}
			fmt.Printf("Archived: %s\n", strings.Join(res.Secondaries(), ", "))
			return nil
		})
	},
}

var mergeLogCmd = &cobra.Command{
	Use:   "merge-log",
	Short: "Show past merges",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("merge-log", args, func(a *app.ABookApp) error {
			entries, err := a.MergeLog()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No merges recorded.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %s  <-  %s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.PrimaryID, strings.Join(e.SecondaryIDs, ", "))
			}
			return nil
		})
	},
}

func init() {
	dupesCmd.Flags().Float64("threshold", 0, "Minimum confidence (default from config)")
	dupesCmd.Flags().Int("limit", 0, "Maximum number of pairs (default from config)")
	mergeCmd.Flags().String("strategy", "union", "Field strategy: union, keep-newest or keep-oldest")
	mergeCmd.Flags().StringArray("field", nil, "Take a field from a contact, as name=ID (repeatable)")

	rootCmd.AddCommand(dupesCmd, mergeCmd, mergeLogCmd)
}
