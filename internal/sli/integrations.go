package sli

import (
	"math"
	"time"

	"github.com/donaldgifford/slo-reporter/internal/report"
	"github.com/donaldgifford/slo-reporter/pkg/reduce"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// integrations reports how often each Thoth integration requested advice.
type integrations struct {
	instance string
	names    []string
}

func newIntegrations(p Params) *integrations {
	return &integrations{instance: p.Instance, names: p.Integrations}
}

func periodicColumn(name string) string { return columnName(name) + "_periodic" }
func totalColumn(name string) string    { return columnName(name) + "_total" }

func (i *integrations) Name() string  { return "thoth_integrations" }
func (i *integrations) Title() string { return "Thoth Integrations" }

func (i *integrations) Columns() []string {
	cols := make([]string, 0, 2*len(i.names))
	for _, n := range i.names {
		cols = append(cols, periodicColumn(n), totalColumn(n))
	}
	return cols
}

func (i *integrations) Queries() []domain.Query {
	queries := make([]domain.Query, 0, 2*len(i.names))
	for _, n := range i.names {
		expr := "thoth_graphdb_adviser_count_per_source_type" + selector("instance", i.instance, "thoth_integration", n)
		queries = append(queries,
			domain.Query{Name: columnName(n) + "_counts_use", Expr: expr, Range: true, Policy: reduce.Delta},
			domain.Query{Name: columnName(n) + "_counts_total", Expr: expr, Range: true, Policy: reduce.Latest},
		)
	}
	return queries
}

func (i *integrations) Evaluate(raw domain.Values) domain.Values {
	out := make(domain.Values, 2*len(i.names))
	for _, n := range i.names {
		out[periodicColumn(n)] = raw.Get(columnName(n) + "_counts_use").Map(truncAbs)
		out[totalColumn(n)] = raw.Get(columnName(n) + "_counts_total").Map(math.Trunc)
	}
	return out
}

func (i *integrations) Render(values domain.Values, prior *domain.Row) report.Section {
	s := report.Section{
		Name:        i.Name(),
		Title:       i.Title(),
		Description: "Advise requests per integration.",
		Headers:     []string{"Integration", "Requests in period", "Total requests", "Change"},
	}
	for _, n := range i.names {
		total := values.Get(totalColumn(n))
		s.Rows = append(s.Rows, []string{
			n,
			FormatCount(values.Get(periodicColumn(n))),
			FormatCount(total),
			FormatChange(Change(total, prior, totalColumn(n))),
		})
	}
	return s
}

func (i *integrations) ToRow(values domain.Values, _ *domain.Row, at time.Time) domain.Row {
	row := domain.Row{Class: i.Name(), Date: at, Values: make(domain.Values, 2*len(i.names))}
	for _, col := range i.Columns() {
		row.Values[col] = values.Get(col)
	}
	return row
}
