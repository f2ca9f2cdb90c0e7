package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/planos/internal/config"
	"github.com/JonMunkholm/planos/internal/logging"
)

// cli holds state shared by the subcommands of one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config

	logLevel  string
	logFormat string
	verbose   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "planos",
		Short: "Payroll flat file generator",
		Long: `planos reads the CAJA (cash register) and BIG PASS (benefits) spreadsheets
and writes the SAP payroll flat file with columns SAP, FECHA, CONCEPTO, VALOR.

Settings are read from the environment (and a .env file); flags override them.`,
		Version:           version,
		PersistentPreRunE: c.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("planos {{.Version}}\n")

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format: text, json (default from LOG_FORMAT)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")

	root.AddCommand(
		c.newRunCmd(),
		c.newCheckCmd(),
		c.newRulesCmd(),
		c.newVersionCmd(),
	)
	return root
}

// setup loads configuration and sends logs to stderr so stdout carries only
// command output.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg

	level := cfg.Logging.Level
	if c.logLevel != "" {
		level = c.logLevel
	}
	if c.verbose {
		level = "debug"
	}
	format := cfg.Logging.Format
	if c.logFormat != "" {
		format = c.logFormat
	}
	logging.SetupWriter(c.stderr, level, format)
	return nil
}
