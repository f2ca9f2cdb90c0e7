package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/planos/internal/config"
	"github.com/JonMunkholm/planos/internal/core"
	"github.com/JonMunkholm/planos/internal/flatfile"
	"github.com/JonMunkholm/planos/internal/logging"
)

type runOptions struct {
	cash       string
	benefits   string
	outDir     string
	format     string
	timestamp  bool
	dateLayout string
}

func (c *cli) newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run --cash FILE --benefits FILE",
		Short: "Generate the flat file",
		Long: `Read both spreadsheets, apply the concept rules and write the flat file.

A run whose rows all lack a positive amount writes no file and exits 0.`,
		Example: `  planos run --cash caja.xlsx --benefits bigpass.xlsx
  planos run --cash caja.xlsx --benefits bigpass.xlsx --format csv --out salida --timestamp=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.applyRunDefaults(cmd, &opts)
			return c.run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.cash, "cash", "", "CAJA spreadsheet (xlsx or csv)")
	f.StringVar(&opts.benefits, "benefits", "", "BIG PASS spreadsheet (xlsx or csv)")
	f.StringVarP(&opts.outDir, "out", "o", "", "output directory (default from OUTPUT_DIR)")
	f.StringVarP(&opts.format, "format", "f", "", "output format: xlsx, csv (default from OUTPUT_FORMAT)")
	f.BoolVar(&opts.timestamp, "timestamp", true, "append _YYYYMMDD_HHMMSS to the file name (default from OUTPUT_TIMESTAMP)")
	f.StringVar(&opts.dateLayout, "date-layout", "", "Go layout for FECHA (default from EXTRACT_DATE_LAYOUT)")
	_ = cmd.MarkFlagRequired("cash")
	_ = cmd.MarkFlagRequired("benefits")

	return cmd
}

// applyRunDefaults fills every flag the user did not set from configuration.
func (c *cli) applyRunDefaults(cmd *cobra.Command, opts *runOptions) {
	if opts.outDir == "" {
		opts.outDir = c.cfg.Output.Dir
	}
	if opts.format == "" {
		opts.format = c.cfg.Output.Format
	}
	if !cmd.Flags().Changed("timestamp") {
		opts.timestamp = c.cfg.Output.Timestamp
	}
	if opts.dateLayout == "" {
		opts.dateLayout = c.cfg.Extract.DateLayout
	}
}

func (c *cli) run(cmd *cobra.Command, opts runOptions) error {
	format, err := flatfile.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if !config.ValidDateLayout(opts.dateLayout) {
		return fmt.Errorf("invalid option: date layout %q must contain day, month and year", opts.dateLayout)
	}

	ctx := cmd.Context()
	svc := core.NewService(c.cfg.Settings(), nil)

	res, err := svc.RunFiles(ctx, opts.cash, opts.benefits, opts.dateLayout)
	if err != nil {
		return err
	}

	if res.Empty() {
		fmt.Fprintln(c.stdout, "Sin registros: ninguna fila tiene un valor mayor a cero (no qualifying rows). No se generó archivo.")
		return nil
	}

	ff := flatfile.FromResult(res)
	path, err := ff.SaveTo(opts.outDir, flatfile.SaveOptions{
		Format:    format,
		Timestamp: opts.timestamp,
		Now:       time.Now(),
	})
	if err != nil {
		return err
	}
	logging.WithFields(ctx, "run_id", res.RunID).Info("flat file written", "path", path, "records", ff.Len())

	if err := ff.WriteSummary(c.stdout, flatfile.DefaultLanguage); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "\nArchivo generado: %s\n", path)
	return nil
}
