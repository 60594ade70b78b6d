package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"feid-go/internal/app"
	"feid-go/internal/model"
	"feid-go/internal/tables"

	"github.com/spf13/cobra"
)

// printRows writes rows as an aligned table. markers, when non-nil, adds a
// leading picking-mode column.
func printRows(rows []model.Row, columns []model.Column, markers []string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer w.Flush()

	header := make([]string, 0, len(columns)+1)
	if markers != nil {
		header = append(header, "")
	}
	for _, c := range columns {
		header = append(header, c.Name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for i, r := range rows {
		cells := make([]string, 0, len(r)+1)
		if markers != nil {
			cells = append(cells, markers[i])
		}
		for _, v := range r {
			cells = append(cells, model.FormatValue(v))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

// fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [TABLE...]",
	Short: "Re-fetch tables from the server, keeping pending edits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Fetch")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			if err := a.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("refreshing: %w", err)
			}
			fmt.Println("All tables refreshed.")
			return nil
		}
		for _, table := range args {
			rows, _, err := a.Fetch(cmd.Context(), table, true)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", table, err)
			}
			fmt.Printf("%s: %d row(s)\n", table, len(rows))
		}
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show [TABLE]",
	Short: "Show a table with pending edits applied",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		sampleID, _ := cmd.Flags().GetString("sample")

		a, err := newApp(cmd, "Show")
		if err != nil {
			return err
		}
		defer a.Close()

		table := tables.FEID
		if len(args) > 0 {
			table = args[0]
		}

		var rows []model.Row
		var columns []model.Column
		if sampleID != "" {
			if table != tables.FEID {
				return fmt.Errorf("samples only apply to the %s table", tables.FEID)
			}
			rows, columns, err = a.ApplySample(cmd.Context(), sampleID)
		} else {
			rows, columns, err = a.Fetch(cmd.Context(), table, force)
		}
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			fmt.Println("No rows.")
			return nil
		}
		printRows(rows, columns, nil)
		return nil
	},
}

// edit command
var editCmd = &cobra.Command{
	Use:   "edit TABLE ID COLUMN VALUE",
	Short: "Change one cell; an empty VALUE or 'null' clears it",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Edit")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Edit(cmd.Context(), args[0], args[1], args[2], args[3]); err != nil {
			return err
		}
		fmt.Printf("Changed %s %s.%s\n", args[0], args[1], args[2])
		return nil
	},
}

// create command
var createCmd = &cobra.Command{
	Use:   "create TABLE [COLUMN=VALUE...]",
	Short: "Create a row",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Create")
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.Create(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("Created %s row %d\n", args[0], id)
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete TABLE ID",
	Short: "Mark a row for deletion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Delete(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s row %s\n", args[0], args[1])
		return nil
	},
}

// link command
var linkCmd = &cobra.Command{
	Use:   "link SOURCE_TABLE EVENT_ID [SOURCE_ID]",
	Short: "Link a source to an event, creating the source when no id is given",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Link")
		if err != nil {
			return err
		}
		defer a.Close()

		existing := ""
		if len(args) == 3 {
			existing = args[2]
		}
		src, join, err := a.Link(cmd.Context(), args[0], args[1], existing)
		if err != nil {
			return err
		}
		fmt.Printf("Linked %s row %d to event %s (link %d)\n", args[0], src, args[1], join)
		return nil
	},
}

// discard command
var discardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Discard pending edits",
}

func discardRunE(kind app.DiscardKind, withColumn bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Discard")
		if err != nil {
			return err
		}
		defer a.Close()

		var table, id, column string
		if len(args) >= 2 {
			table, id = args[0], args[1]
		}
		if withColumn {
			column = args[2]
		}
		if err := a.Discard(cmd.Context(), kind, table, id, column); err != nil {
			return err
		}
		fmt.Println("Discarded.")
		return nil
	}
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending edits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		pending, err := a.Status()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending changes.")
			return nil
		}

		for _, name := range tables.Editable {
			p, ok := pending[name]
			if !ok {
				continue
			}
			fmt.Printf("%s:\n", name)
			changes := append([]model.Change(nil), p.Changes...)
			sort.SliceStable(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
			for _, c := range changes {
				fmt.Printf("  M %d %s = %s\n", c.ID, c.Column, model.FormatValue(c.Value))
			}
			for _, r := range p.Created {
				fmt.Printf("  A %d\n", r.ID())
			}
			for _, id := range p.Deleted {
				fmt.Printf("  D %d\n", id)
			}
		}
		return nil
	},
}

// commit command
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Submit all pending edits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Commit")
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.Commit(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("Nothing to commit.")
			return nil
		}
		fmt.Printf("Committed %s\n", strings.Join(names, ", "))
		return nil
	},
}

// changelog command
var changelogCmd = &cobra.Command{
	Use:   "changelog TABLE ID",
	Short: "Show the edit history of a row",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Changelog")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Changelog(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No recorded edits (is api.changelog enabled?).")
			return nil
		}

		columns := make([]string, 0, len(entries))
		for c := range entries {
			columns = append(columns, c)
		}
		sort.Strings(columns)
		for _, c := range columns {
			for _, e := range entries[c] {
				fmt.Printf("%s  %-12s  %-10s  %s -> %s %s\n",
					e.Time.Format("2006-01-02 15:04:05"),
					c,
					e.Author,
					model.FormatValue(e.Old),
					model.FormatValue(e.New),
					e.Special,
				)
			}
		}
		return nil
	},
}

func addTableCommands(root *cobra.Command) {
	root.AddCommand(fetchCmd)
	root.AddCommand(showCmd)
	showCmd.Flags().BoolP("force", "f", false, "Re-fetch instead of using the cache")
	showCmd.Flags().StringP("sample", "s", "", "Only show events selected by this sample")
	root.AddCommand(editCmd)
	root.AddCommand(createCmd)
	root.AddCommand(deleteCmd)
	root.AddCommand(linkCmd)

	discardCmd.AddCommand(&cobra.Command{
		Use:   "change TABLE ID COLUMN",
		Short: "Discard the pending edit of one cell",
		Args:  cobra.ExactArgs(3),
		RunE:  discardRunE(app.DiscardChange, true),
	})
	discardCmd.AddCommand(&cobra.Command{
		Use:   "created TABLE ID",
		Short: "Discard a created row",
		Args:  cobra.ExactArgs(2),
		RunE:  discardRunE(app.DiscardCreated, false),
	})
	discardCmd.AddCommand(&cobra.Command{
		Use:   "deleted TABLE ID",
		Short: "Restore a row marked for deletion",
		Args:  cobra.ExactArgs(2),
		RunE:  discardRunE(app.DiscardDeleted, false),
	})
	discardCmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Discard every pending edit",
		Args:  cobra.NoArgs,
		RunE:  discardRunE(app.DiscardAll, false),
	})
	root.AddCommand(discardCmd)

	root.AddCommand(statusCmd)
	root.AddCommand(commitCmd)
	root.AddCommand(changelogCmd)
}
