package flatfile

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JonMunkholm/planos/internal/core"
)

// DefaultLanguage formats summary numbers with Spanish digit grouping (1.234.567).
var DefaultLanguage = language.Spanish

// WriteSummary prints a per-concept table followed by the grand total:
//
//	Concepto      Registros  Valor Total  Promedio
//	CAJA (Z498)   2          $3.500       $1.750
func (f *FlatFile) WriteSummary(w io.Writer, tag language.Tag) error {
	p := message.NewPrinter(tag)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "Concepto\tRegistros\tValor Total\tPromedio")
	for _, e := range f.Stats.Entries() {
		name := fmt.Sprintf("%s (%s)", e.Label, e.Concept)
		fmt.Fprintln(tw, summaryLine(p, name, e))
	}
	fmt.Fprintln(tw, summaryLine(p, "TOTAL GENERAL", f.Stats.GrandTotal()))

	return tw.Flush()
}

// Summary returns WriteSummary output in the default language.
func (f *FlatFile) Summary() string {
	var buf bytes.Buffer
	_ = f.WriteSummary(&buf, DefaultLanguage)
	return buf.String()
}

func summaryLine(p *message.Printer, name string, e core.RuleStats) string {
	return p.Sprintf("%s\t%d\t$%d\t$%.0f", name, e.RecordCount, e.TotalAmount, e.Average())
}
