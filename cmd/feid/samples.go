package main

import (
	"fmt"
	"strconv"
	"strings"

	"feid-go/internal/model"
	"feid-go/internal/sample"

	"github.com/spf13/cobra"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Manage event samples",
}

var sampleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd, "ListSamples")
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.ListSamples(cmd.Context(), force)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No samples.")
			return nil
		}
		for _, s := range list {
			visibility := "private"
			if s.Public {
				visibility = "public"
			}
			fmt.Printf("#%d  %-24s  %-7s  %s  filters:%d +%d -%d includes:%v\n",
				s.ID, s.Name, visibility, strings.Join(s.Authors, ","),
				len(s.Filters), len(s.Whitelist), len(s.Blacklist), s.Includes)
		}
		return nil
	},
}

var sampleCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an empty sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "CreateSample")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.CreateSample(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created sample #%d %s\n", s.ID, s.Name)
		return nil
	},
}

var sampleRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Delete a sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "RemoveSample")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveSample(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed sample #%s\n", args[0])
		return nil
	},
}

var sampleMarkersCmd = &cobra.Command{
	Use:   "markers ID",
	Short: "Show events with their filter and pick markers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sortBy, _ := cmd.Flags().GetBool("sort")
		asc, _ := cmd.Flags().GetBool("asc")

		a, err := newApp(cmd, "SampleMarkers")
		if err != nil {
			return err
		}
		defer a.Close()

		rows, markers, columns, err := a.SampleMarkers(cmd.Context(), args[0], sortBy, !asc)
		if err != nil {
			return err
		}
		printRows(rows, columns, markers)
		return nil
	},
}

var samplePickCmd = &cobra.Command{
	Use:   "pick ID EVENT_ID...",
	Short: "Toggle events in the sample whitelist (or blacklist with --black)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		black, _ := cmd.Flags().GetBool("black")

		ids := make([]int64, len(args)-1)
		for i, raw := range args[1:] {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid event id %q", raw)
			}
			ids[i] = id
		}

		a, err := newApp(cmd, "PickSample")
		if err != nil {
			return err
		}
		defer a.Close()

		saved, err := a.EditSample(cmd.Context(), args[0], "pick "+strings.Join(args[1:], ","), func(d *sample.Draft, _ []model.Column) error {
			for _, id := range ids {
				d.Pick(id, !black)
			}
			return nil
		})
		return reportSaved(saved, err)
	},
}

// parseFilter parses "column,operator[,value]".
func parseFilter(raw string) (model.Filter, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) < 2 {
		return model.Filter{}, fmt.Errorf("invalid filter %q, expected column,operator[,value]", raw)
	}
	f := model.Filter{Column: strings.TrimSpace(parts[0]), Operator: model.Operator(strings.TrimSpace(parts[1]))}
	if len(parts) == 3 {
		f.Value = parts[2]
	}
	return f, nil
}

var sampleSetCmd = &cobra.Command{
	Use:   "set ID",
	Short: "Change the name, visibility, filters or includes of a sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		var filters []model.Filter
		if flags.Changed("filter") {
			raw, _ := flags.GetStringArray("filter")
			filters = []model.Filter{}
			for _, r := range raw {
				if strings.TrimSpace(r) == "" {
					continue
				}
				f, err := parseFilter(r)
				if err != nil {
					return err
				}
				filters = append(filters, f)
			}
		}
		var includes []int64
		if flags.Changed("include") {
			raw, _ := flags.GetString("include")
			includes = []int64{}
			for _, item := range splitList(raw) {
				id, err := strconv.ParseInt(item, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid sample id %q", item)
				}
				includes = append(includes, id)
			}
		}

		a, err := newApp(cmd, "UpdateSample")
		if err != nil {
			return err
		}
		defer a.Close()

		saved, err := a.EditSample(cmd.Context(), args[0], "set", func(d *sample.Draft, columns []model.Column) error {
			if flags.Changed("name") {
				name, _ := flags.GetString("name")
				d.SetName(name)
			}
			if flags.Changed("public") {
				public, _ := flags.GetBool("public")
				d.SetPublic(public)
			}
			if filters != nil {
				if err := d.SetFilters(filters, columns); err != nil {
					return err
				}
			}
			if includes != nil {
				return d.SetIncludes(includes)
			}
			return nil
		})
		return reportSaved(saved, err)
	},
}

func reportSaved(saved bool, err error) error {
	if err != nil {
		return err
	}
	if saved {
		fmt.Println("Sample saved.")
	} else {
		fmt.Println("No changes.")
	}
	return nil
}

func addSampleCommands(root *cobra.Command) {
	sampleCmd.AddCommand(sampleListCmd)
	sampleListCmd.Flags().BoolP("force", "f", false, "Re-fetch instead of using the cache")
	sampleCmd.AddCommand(sampleCreateCmd)
	sampleCmd.AddCommand(sampleRemoveCmd)
	sampleCmd.AddCommand(sampleMarkersCmd)
	sampleMarkersCmd.Flags().Bool("sort", false, "Order rows by marker")
	sampleMarkersCmd.Flags().Bool("asc", false, "Sort ascending instead of descending")
	sampleCmd.AddCommand(samplePickCmd)
	samplePickCmd.Flags().Bool("black", false, "Toggle in the blacklist instead")
	sampleCmd.AddCommand(sampleSetCmd)
	sampleSetCmd.Flags().String("name", "", "New name")
	sampleSetCmd.Flags().Bool("public", false, "Share the sample with other users")
	sampleSetCmd.Flags().StringArray("filter", nil, "Filter as column,operator[,value]; repeatable; --filter '' clears all filters")
	sampleSetCmd.Flags().String("include", "", "Comma separated ids of samples to include")
	root.AddCommand(sampleCmd)
}
