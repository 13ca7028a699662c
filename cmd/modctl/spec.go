package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/modloader/internal/spec"
)

func newSpecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Work with manifest spec versions",
	}
	cmd.AddCommand(newSpecParseCmd(), newSpecCompareCmd())
	return cmd
}

func newSpecParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [version]",
		Short: "Parse a spec version; no argument yields the default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text *string
			if len(args) == 1 {
				text = &args[0]
			}
			v, err := spec.Parse(text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (major=%d minor=%d)\n", v, v.Major, v.Minor)
			return nil
		},
	}
}

func newSpecCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Compare two spec versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := spec.ParseString(args[0])
			if err != nil {
				return err
			}
			b, err := spec.ParseString(args[1])
			if err != nil {
				return err
			}
			o := spec.Compare(a, b)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%s)\n", a, orderingSymbol[o], b, o)
			return nil
		},
	}
}

var orderingSymbol = map[spec.Ordering]string{
	spec.Less:    "<",
	spec.Equal:   "==",
	spec.Greater: ">",
}
