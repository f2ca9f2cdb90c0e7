package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/planos/internal/core"
)

func (c *cli) newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the concept rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CONCEPTO\tNOMBRE\tARCHIVO\tCOLUMNA")
			for _, r := range core.DefaultRules() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%q\n", r.Concept, r.Label, r.Dataset, r.ValueColumn)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(c.stdout, "planos %s\n", version)
			return err
		},
	}
}
