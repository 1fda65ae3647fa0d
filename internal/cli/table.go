package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/born-ml/dataset/internal/options"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/prometheus/client_golang/prometheus"
)

// newTable returns a table writer rendering to w with headers as given.
func newTable(w io.Writer, header ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row(header))
	return t
}

// formatValue renders an option or metadata value for a table cell.
func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case []string:
		return "[" + strings.Join(v, ", ") + "]"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// appendOptions adds one row per entry of o, prefixed by lead.
func appendOptions(t table.Writer, o *options.Options, lead ...interface{}) {
	o.Range(func(k string, v interface{}) bool {
		row := append(table.Row{}, lead...)
		t.AppendRow(append(row, k, formatValue(v)))
		return true
	})
}

// writeMetrics renders every counter gathered by g.
func writeMetrics(g prometheus.Gatherer, w io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	t := newTable(w, "metric", "labels", "value")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)
			t.AppendRow(table.Row{mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()})
		}
	}
	t.Render()
	return nil
}
