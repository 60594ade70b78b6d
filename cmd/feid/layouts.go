package main

import (
	"fmt"
	"sort"
	"strings"

	"feid-go/internal/app"
	"feid-go/internal/layout"
	"feid-go/internal/model"

	"github.com/spf13/cobra"
)

// openUnlocked creates the app and unlocks the local store when it is
// encrypted. The caller must defer app.Close().
func openUnlocked(cmd *cobra.Command, operation string) (*app.FEIDApp, error) {
	a, err := newApp(cmd, operation)
	if err != nil {
		return nil, err
	}
	if err := unlock(a); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// printTree writes the layout tree rooted at id, indented by depth.
func printTree(l *layout.Layout, id string, depth int) {
	indent := strings.Repeat("  ", depth)
	if split, ok := l.Tree[id]; ok {
		fmt.Printf("%s%s  %s %.2f\n", indent, id, split.Split, split.Ratio)
		for _, child := range split.Children {
			printTree(l, child, depth+1)
		}
		return
	}

	item := l.Items[id]
	typ := item.Type
	if typ == "" {
		typ = "(empty)"
	}
	keys := make([]string, 0, len(item.Params))
	for k := range item.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]string, len(keys))
	for i, k := range keys {
		params[i] = k + "=" + item.Params[k]
	}
	fmt.Printf("%s%s  %s %s\n", indent, id, typ, strings.Join(params, " "))
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Arrange dashboard panels",
}

var layoutShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openUnlocked(cmd, "ShowLayout")
		if err != nil {
			return err
		}
		defer a.Close()

		ls, err := a.Layouts(cmd.Context())
		if err != nil {
			return err
		}
		names := make([]string, 0, len(ls.Layouts))
		for name := range ls.Layouts {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("Layouts: %s (active: %s)\n\n", strings.Join(names, ", "), ls.Active)
		printTree(ls.Current(), layout.RootID, 0)
		return nil
	},
}

var layoutSplitCmd = &cobra.Command{
	Use:   "split NODE row|column",
	Short: "Split a panel in two",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inverse, _ := cmd.Flags().GetBool("inverse")
		duplicate, _ := cmd.Flags().GetBool("duplicate")

		a, err := openUnlocked(cmd, "SplitLayout")
		if err != nil {
			return err
		}
		defer a.Close()

		keep, added, err := a.Split(cmd.Context(), args[0], layout.Orientation(args[1]), inverse, duplicate)
		if err != nil {
			return err
		}
		fmt.Printf("Split %s into %s and %s\n", args[0], keep, added)
		return nil
	},
}

var layoutRelinquishCmd = &cobra.Command{
	Use:   "relinquish NODE",
	Short: "Remove a panel, giving its space to its sibling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openUnlocked(cmd, "RelinquishLayout")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Relinquish(cmd.Context(), args[0])
	},
}

var layoutRatioCmd = &cobra.Command{
	Use:   "ratio NODE RATIO",
	Short: "Set the share of the first child of a split",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openUnlocked(cmd, "RatioLayout")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Ratio(cmd.Context(), args[0], args[1])
	},
}

var layoutSwapCmd = &cobra.Command{
	Use:   "swap NODE NODE",
	Short: "Exchange the panels of two leaves",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openUnlocked(cmd, "SwapLayout")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Swap(cmd.Context(), args[0], args[1])
	},
}

var layoutSetCmd = &cobra.Command{
	Use:   "set NODE TYPE [KEY=VALUE...]",
	Short: "Set the panel shown by a leaf",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openUnlocked(cmd, "SetPanel")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.SetPanel(cmd.Context(), args[0], args[1], args[2:])
	},
}

var layoutUseCmd = &cobra.Command{
	Use:   "use NAME",
	Short: "Switch to a named layout, creating it if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openUnlocked(cmd, "UseLayout")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.UseLayout(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Active layout: %s\n", args[0])
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change dashboard settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		a, err := openUnlocked(cmd, "Settings")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.UpdateSettings(cmd.Context(), func(s *model.Settings) error {
			if flags.Changed("theme") {
				s.Theme, _ = flags.GetString("theme")
			}
			if flags.Changed("changelog") {
				s.Changelog, _ = flags.GetBool("changelog")
			}
			if flags.Changed("default-sample") {
				s.DefaultSampleID, _ = flags.GetInt64("default-sample")
			}
			panels, _ := flags.GetStringArray("panel-default")
			for _, p := range panels {
				key, value, ok := strings.Cut(p, "=")
				if !ok || key == "" {
					return fmt.Errorf("invalid panel default %q, expected type=value", p)
				}
				s.PanelDefaults[key] = value
			}
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Printf("Theme:          %s\n", s.Theme)
		fmt.Printf("Changelog:      %t\n", s.Changelog)
		fmt.Printf("Default sample: %d\n", s.DefaultSampleID)
		for k, v := range s.PanelDefaults {
			fmt.Printf("Panel %s: %s\n", k, v)
		}
		return nil
	},
}

func addLayoutCommands(root *cobra.Command) {
	layoutCmd.AddCommand(layoutShowCmd)
	layoutCmd.AddCommand(layoutSplitCmd)
	layoutSplitCmd.Flags().Bool("inverse", false, "Place the existing panel second")
	layoutSplitCmd.Flags().Bool("duplicate", false, "Copy the panel into the new leaf")
	layoutCmd.AddCommand(layoutRelinquishCmd)
	layoutCmd.AddCommand(layoutRatioCmd)
	layoutCmd.AddCommand(layoutSwapCmd)
	layoutCmd.AddCommand(layoutSetCmd)
	layoutCmd.AddCommand(layoutUseCmd)
	root.AddCommand(layoutCmd)

	settingsCmd.Flags().String("theme", "", "Color theme")
	settingsCmd.Flags().Bool("changelog", false, "Show edit history in tables")
	settingsCmd.Flags().Int64("default-sample", 0, "Sample applied when the dashboard opens")
	settingsCmd.Flags().StringArray("panel-default", nil, "Default parameter per panel type as type=value")
	root.AddCommand(settingsCmd)
}
