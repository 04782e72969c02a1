package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/donaldgifford/slo-reporter/internal/api/handlers"
	"github.com/donaldgifford/slo-reporter/internal/engine"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printRunResult(w io.Writer, r *engine.RunResult) error {
	tw := newTabWriter(w)
	tw.writef("Run:\t%s\n", r.ID)
	tw.writef("Window:\t%s .. %s (%dd)\n",
		r.Window.Start.Format(domain.DateLayout),
		r.Window.End.Format(domain.DateLayout),
		r.Window.Days,
	)
	tw.writef("Delivery:\t%s\n", r.Delivery)
	tw.writef("Took:\t%s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	tw.writef("\n")
	tw.writef("CLASS\tVALUES\tFAILED\tPRIOR\n")
	for i := range r.Classes {
		c := &r.Classes[i]
		failed := "-"
		if len(c.Failed) > 0 {
			failed = strings.Join(c.Failed, ",")
		}
		tw.writef("%s\t%s\t%s\t%v\n", c.Name, formatValues(c.Values), failed, c.HasPrior)
	}
	return tw.finish()
}

func printIndicatorTable(w io.Writer, indicators []handlers.Indicator) error {
	tw := newTabWriter(w)
	tw.writef("CLASS\tTITLE\tQUERIES\tCOLUMNS\n")
	for i := range indicators {
		ind := &indicators[i]
		tw.writef("%s\t%s\t%d\t%s\n",
			ind.Name,
			ind.Title,
			len(ind.Queries),
			truncate(strings.Join(ind.Columns, ","), 60),
		)
	}
	return tw.finish()
}

func printIndicatorQueries(w io.Writer, ind *handlers.Indicator) error {
	if ind.Days > 0 {
		_, err := fmt.Fprintf(w, "%s summarizes %d daily tables with columns %s.\n",
			ind.Name, ind.Days, strings.Join(ind.Columns, ","))
		return err
	}

	tw := newTabWriter(w)
	tw.writef("QUERY\tMODE\tREDUCE\tEXPR\n")
	for _, q := range ind.Queries {
		mode := "instant"
		if q.Range {
			mode = "range"
		}
		tw.writef("%s\t%s\t%s\t%s\n", q.Name, mode, q.Policy, q.Expr)
	}
	return tw.finish()
}

// formatValues renders values as name=value pairs in name order.
func formatValues(vs domain.Values) string {
	if len(vs) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(vs))
	for _, name := range slices.Sorted(maps.Keys(vs)) {
		parts = append(parts, name+"="+vs[name].String())
	}
	return strings.Join(parts, " ")
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
