package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"abook/internal/app"
	"abook/internal/model"
)

// addContactFlags registers the flags shared by add and edit.
func addContactFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("given", "", "Given name")
	cmd.Flags().String("family", "", "Family name")
	cmd.Flags().StringArray("email", nil, "Email address (repeatable)")
	cmd.Flags().StringArray("phone", nil, "Phone number (repeatable)")
	cmd.Flags().String("org", "", "Organization")
	cmd.Flags().String("title", "", "Job title")
	cmd.Flags().String("birthday", "", "Birthday (YYYY-MM-DD)")
	cmd.Flags().StringArray("url", nil, "Web address (repeatable)")
	cmd.Flags().String("note", "", "Free-form note")
	cmd.Flags().StringArray("category", nil, "Category (repeatable)")
}

func emailsFrom(values []string) []model.Email {
	var out []model.Email
	for i, v := range values {
		out = append(out, model.Email{Value: v, Primary: i == 0})
	}
	return out
}

func phonesFrom(values []string) []model.Phone {
	var out []model.Phone
	for i, v := range values {
		out = append(out, model.Phone{Value: v, Primary: i == 0})
	}
	return out
}

func organizationFrom(org, title string) *model.Organization {
	if org == "" && title == "" {
		return nil
	}
	return &model.Organization{Name: org, Title: title}
}

// contactFromFlags builds a new contact from the add flags.
func contactFromFlags(cmd *cobra.Command) *model.Contact {
	f := cmd.Flags()
	name, _ := f.GetString("name")
	given, _ := f.GetString("given")
	family, _ := f.GetString("family")
	emails, _ := f.GetStringArray("email")
	phones, _ := f.GetStringArray("phone")
	org, _ := f.GetString("org")
	title, _ := f.GetString("title")
	birthday, _ := f.GetString("birthday")
	urls, _ := f.GetStringArray("url")
	note, _ := f.GetString("note")
	categories, _ := f.GetStringArray("category")

	return &model.Contact{
		DisplayName:  name,
		Name:         model.StructuredName{Given: given, Family: family},
		Emails:       emailsFrom(emails),
		Phones:       phonesFrom(phones),
		Organization: organizationFrom(org, title),
		Birthday:     birthday,
		URLs:         urls,
		Note:         note,
		Categories:   categories,
	}
}

// patchFromFlags sets only the fields whose flags were given.
func patchFromFlags(cmd *cobra.Command, current *model.Contact) model.Patch {
	f := cmd.Flags()
	var p model.Patch
	if f.Changed("name") {
		v, _ := f.GetString("name")
		p.DisplayName = model.Some(v)
	}
	if f.Changed("given") || f.Changed("family") {
		n := current.Name
		if f.Changed("given") {
			n.Given, _ = f.GetString("given")
		}
		if f.Changed("family") {
			n.Family, _ = f.GetString("family")
		}
		p.Name = model.Some(n)
	}
	if f.Changed("email") {
		v, _ := f.GetStringArray("email")
		p.Emails = model.Some(emailsFrom(v))
	}
	if f.Changed("phone") {
		v, _ := f.GetStringArray("phone")
		p.Phones = model.Some(phonesFrom(v))
	}
	if f.Changed("org") || f.Changed("title") {
		var org, title string
		if current.Organization != nil {
			org, title = current.Organization.Name, current.Organization.Title
		}
		if f.Changed("org") {
			org, _ = f.GetString("org")
		}
		if f.Changed("title") {
			title, _ = f.GetString("title")
		}
		p.Organization = model.Some(organizationFrom(org, title))
	}
	if f.Changed("birthday") {
		v, _ := f.GetString("birthday")
		p.Birthday = model.Some(v)
	}
	if f.Changed("url") {
		v, _ := f.GetStringArray("url")
		p.URLs = model.Some(v)
	}
	if f.Changed("note") {
		v, _ := f.GetString("note")
		p.Note = model.Some(v)
	}
	if f.Changed("category") {
		v, _ := f.GetStringArray("category")
		p.Categories = model.Some(v)
	}
	return p
}

func printContact(w io.Writer, c *model.Contact) {
	fmt.Fprintf(w, "ID:       %s\n", c.ID)
	fmt.Fprintf(w, "Name:     %s\n", c.Label())
	for _, e := range c.Emails {
		fmt.Fprintf(w, "Email:    %s%s\n", e.Value, typeSuffix(e.Type, e.Primary))
	}
	for _, p := range c.Phones {
		fmt.Fprintf(w, "Phone:    %s%s\n", p.Value, typeSuffix(p.Type, p.Primary))
	}
	for _, a := range c.Addresses {
		parts := []string{a.Street, a.City, a.State, a.PostalCode, a.Country}
		fmt.Fprintf(w, "Address:  %s%s\n", joinNonEmpty(parts, ", "), typeSuffix(a.Type, false))
	}
	if o := c.Organization; o != nil {
		fmt.Fprintf(w, "Org:      %s\n", joinNonEmpty([]string{o.Name, o.Department, o.Title}, ", "))
	}
	if c.Birthday != "" {
		fmt.Fprintf(w, "Birthday: %s\n", c.Birthday)
	}
	for _, u := range c.URLs {
		fmt.Fprintf(w, "URL:      %s\n", u)
	}
	if len(c.Categories) > 0 {
		fmt.Fprintf(w, "Tags:     %s\n", strings.Join(c.Categories, ", "))
	}
	for name, rid := range c.Metadata.ProviderIDs {
		fmt.Fprintf(w, "Linked:   %s:%s\n", name, rid)
	}
	if c.Metadata.Archived {
		fmt.Fprintln(w, "Status:   archived")
	}
	fmt.Fprintf(w, "Modified: %s\n", c.Metadata.Modified.Format("2006-01-02 15:04:05"))
	if c.Note != "" {
		fmt.Fprintf(w, "\n%s\n", c.Note)
	}
}

func typeSuffix(typ string, primary bool) string {
	var tags []string
	if typ != "" {
		tags = append(tags, typ)
	}
	if primary {
		tags = append(tags, "primary")
	}
	if len(tags) == 0 {
		return ""
	}
	return " (" + strings.Join(tags, ", ") + ")"
}

func joinNonEmpty(parts []string, sep string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func firstEmail(c *model.Contact) string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0].Value
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a contact",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("add", args, func(a *app.ABookApp) error {
			c, err := a.AddContact(contactFromFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", c.Label(), c.ID)
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("show", args, func(a *app.ABookApp) error {
			c, err := a.ShowContact(args[0])
			if err != nil {
				return err
			}
			printContact(os.Stdout, c)
			return nil
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change fields of a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("edit", args, func(a *app.ABookApp) error {
			current, err := a.ShowContact(args[0])
			if err != nil {
				return err
			}
			c, err := a.EditContact(args[0], patchFromFlags(cmd, current))
			if err != nil {
				return err
			}
			fmt.Printf("Updated %s (%s)\n", c.Label(), c.ID)
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Archive a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		permanent, _ := cmd.Flags().GetBool("permanent")
		return withApp("rm", args, func(a *app.ABookApp) error {
			if err := a.RemoveContact(args[0], permanent); err != nil {
				return err
			}
			if permanent {
				fmt.Printf("Deleted %s\n", args[0])
			} else {
				fmt.Printf("Archived %s\n", args[0])
			}
			return nil
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		archived, _ := cmd.Flags().GetBool("archived")
		return withApp("ls", args, func(a *app.ABookApp) error {
			contacts, err := a.ListContacts(archived)
			if err != nil {
				return err
			}
			if len(contacts) == 0 {
				fmt.Println("No contacts.")
				return nil
			}
			for _, c := range contacts {
				mark := " "
				if c.Metadata.Archived {
					mark = "A"
				}
				fmt.Printf("%s %-36s  %-30s  %s\n", mark, c.ID, c.Label(), firstEmail(c))
			}
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Import vCard files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		return withApp("import", args, func(a *app.ABookApp) error {
			res, err := a.Import(args[0], recursive)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d contact(s) from %d file(s)\n", len(res.Contacts), res.Files)
			for _, s := range res.Skipped {
				fmt.Printf("  skipped %s\n", s)
			}
			fmt.Printf("Undo with: abook rollback --to-tag %s\n", res.PreTag)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export contacts as vCards",
	RunE: func(cmd *cobra.Command, args []string) error {
		archived, _ := cmd.Flags().GetBool("archived")
		output, _ := cmd.Flags().GetString("output")
		return withApp("export", args, func(a *app.ABookApp) error {
			var w io.Writer = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			n, err := a.Export(w, archived)
			if err != nil {
				return err
			}
			if w != os.Stdout {
				fmt.Printf("Exported %d contact(s) to %s\n", n, output)
			}
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search contacts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		archived, _ := cmd.Flags().GetBool("archived")
		return withApp("search", args, func(a *app.ABookApp) error {
			hits, err := a.Search(strings.Join(args, " "), limit, archived)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("No matches.")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%.2f  %-36s  %-30s  %s\n", h.Score, h.ID, h.DisplayName, strings.Join(h.Emails, ", "))
			}
			return nil
		})
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("reindex", args, func(a *app.ABookApp) error {
			if err := a.Reindex(); err != nil {
				return err
			}
			fmt.Println("Search index rebuilt.")
			return nil
		})
	},
}

func init() {
	addContactFlags(addCmd)
	addContactFlags(editCmd)
	rmCmd.Flags().Bool("permanent", false, "Destroy the contact instead of archiving it")
	lsCmd.Flags().Bool("archived", false, "Include archived contacts")
	importCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	exportCmd.Flags().Bool("archived", false, "Include archived contacts")
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	searchCmd.Flags().IntP("limit", "n", 0, "Maximum number of results")
	searchCmd.Flags().Bool("archived", false, "Include archived contacts")

	rootCmd.AddCommand(addCmd, showCmd, editCmd, rmCmd, lsCmd, importCmd, exportCmd, searchCmd, reindexCmd)
}
