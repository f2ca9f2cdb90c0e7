package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/planos/internal/config"
	"github.com/JonMunkholm/planos/internal/core"
)

type checkOptions struct {
	cash       string
	benefits   string
	dateLayout string
}

func (c *cli) newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check --cash FILE --benefits FILE",
		Short: "Report what a run would produce without writing a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.dateLayout == "" {
				opts.dateLayout = c.cfg.Extract.DateLayout
			}
			return c.check(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.cash, "cash", "", "CAJA spreadsheet (xlsx or csv)")
	f.StringVar(&opts.benefits, "benefits", "", "BIG PASS spreadsheet (xlsx or csv)")
	f.StringVar(&opts.dateLayout, "date-layout", "", "Go layout for FECHA (default from EXTRACT_DATE_LAYOUT)")
	_ = cmd.MarkFlagRequired("cash")
	_ = cmd.MarkFlagRequired("benefits")

	return cmd
}

func (c *cli) check(cmd *cobra.Command, opts checkOptions) error {
	if !config.ValidDateLayout(opts.dateLayout) {
		return fmt.Errorf("invalid option: date layout %q must contain day, month and year", opts.dateLayout)
	}

	svc := core.NewService(c.cfg.Settings(), nil)
	p, err := svc.PreviewFiles(cmd.Context(), opts.cash, opts.benefits, opts.dateLayout)
	if err != nil {
		return err
	}

	for _, in := range p.Inputs {
		fmt.Fprintf(c.stdout, "%s: %d filas\n", in.Name, in.Rows)
	}
	fmt.Fprintln(c.stdout)

	tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONCEPTO\tFILAS\tVALIDAS\tTOTAL\tDESCARTADAS\tFECHAS INVALIDAS")
	for _, rc := range p.Rules {
		if rc.Skipped {
			fmt.Fprintf(tw, "%s\t-\t-\t-\tfalta columna %q\t-\n", rc.Concept, rc.ValueColumn)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%d\n",
			rc.Concept, rc.Rows, rc.Qualifying, rc.Total, filteredSummary(rc.Filtered), rc.BadDates)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "\nRegistros: %d (%s)\n", p.Records, p.Outcome)
	return nil
}

// filteredSummary renders the drop counts as "reason=n" sorted by reason.
func filteredSummary(filtered map[core.FilterReason]int) string {
	if len(filtered) == 0 {
		return "0"
	}
	parts := make([]string, 0, len(filtered))
	for reason, n := range filtered {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
