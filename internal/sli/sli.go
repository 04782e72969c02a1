// Package sli defines the Thoth service level indicator classes: the queries
// each class sends to the metrics backend, how raw results are evaluated into
// reported values, and how those values are rendered and stored.
package sli

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/common/model"

	"github.com/donaldgifford/slo-reporter/internal/config"
	"github.com/donaldgifford/slo-reporter/internal/report"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// Indicator is one indicator class.
type Indicator interface {
	// Name is the class identifier used in object keys and push labels.
	Name() string
	Title() string
	// Columns is the persisted schema, in order.
	Columns() []string
	Queries() []domain.Query
	// Evaluate turns raw query values, keyed by query name, into reported
	// values keyed by column.
	Evaluate(raw domain.Values) domain.Values
	Render(values domain.Values, prior *domain.Row) report.Section
	ToRow(values domain.Values, prior *domain.Row, at time.Time) domain.Row
}

// Workflow is an Argo workflow observed by the quality and latency classes.
type Workflow struct {
	Component string
	Name      string
	Namespace string
	Instance  string
}

// Params carries the deployment specific values the classes build their
// queries from.
type Params struct {
	Environment     string
	Instance        string
	UserAPIInstance string
	WindowDays      int
	LearningRate    time.Duration
	Workflows       []Workflow
	WorkflowTasks   []Workflow
	LatencyBuckets  []string
	Integrations    []string
	AdviserDays     int
}

// ParamsFromConfig derives Params from the application configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	workflows := func(in []config.WorkflowConfig) []Workflow {
		out := make([]Workflow, 0, len(in))
		for _, w := range in {
			out = append(out, Workflow{
				Component: w.Component,
				Name:      w.Name,
				Namespace: cfg.Namespaces.Resolve(w.Namespace),
				Instance:  w.Instance,
			})
		}
		return out
	}

	return Params{
		Environment:     cfg.Environment,
		Instance:        cfg.Instances.MetricsExporter,
		UserAPIInstance: cfg.Instances.UserAPI,
		WindowDays:      cfg.Window.Days,
		LearningRate:    cfg.Indicators.LearningRate,
		Workflows:       workflows(cfg.Indicators.Workflows),
		WorkflowTasks:   workflows(cfg.Indicators.WorkflowTasks),
		LatencyBuckets:  cfg.Indicators.LatencyBuckets,
		Integrations:    cfg.Indicators.Integrations,
		AdviserDays:     cfg.Indicators.AdviserDays,
	}
}

func (p Params) interval() string {
	return fmt.Sprintf("%dd", p.WindowDays)
}

// Registry is the ordered list of indicator classes of a report.
type Registry []Indicator

// NewRegistry returns every indicator class, in report order. The adviser
// digests come last.
func NewRegistry(p Params) Registry {
	r := Registry{
		newLearning(p),
		newKnowledgeGraph(p),
		newPyPIKnowledgeGraph(p),
		newKebechet(p),
		newUserAPI(p),
		newWorkflowQuality(qualityComponents, p.Workflows),
		newWorkflowQuality(qualityTasks, p.WorkflowTasks),
		newWorkflowLatency(p),
		newIntegrations(p),
	}
	return append(r, newDigests(p)...)
}

// Lookup returns the class called name.
func (r Registry) Lookup(name string) (Indicator, bool) {
	for _, ind := range r {
		if ind.Name() == name {
			return ind, true
		}
	}
	return nil, false
}

// Names returns the class names in order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for _, ind := range r {
		names = append(names, ind.Name())
	}
	return names
}

// Select returns the classes named in names, keeping registry order. An
// empty names selects everything.
func (r Registry) Select(names []string) (Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	for _, n := range names {
		if _, ok := r.Lookup(n); !ok {
			return nil, fmt.Errorf("unknown indicator class %q", n)
		}
	}
	out := make(Registry, 0, len(names))
	for _, ind := range r {
		if slices.Contains(names, ind.Name()) {
			out = append(out, ind)
		}
	}
	return out, nil
}

// selector renders a PromQL label matcher from name/value pairs. Pairs with
// an empty value are left out. A name ending in "~" is a regex match.
func selector(pairs ...string) string {
	matchers := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, value := pairs[i], pairs[i+1]
		if value == "" {
			continue
		}
		op := "="
		if strings.HasSuffix(name, "~") {
			name, op = strings.TrimSuffix(name, "~"), "=~"
		}
		matchers = append(matchers, fmt.Sprintf("%s%s%q", name, op, value))
	}
	return "{" + strings.Join(matchers, ", ") + "}"
}

// promDuration renders d as a PromQL range duration.
func promDuration(d time.Duration) string {
	return model.Duration(d).String()
}

// columnName normalizes a configured identifier into a CSV column name.
func columnName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "-", "_")
}

// metric is one row of a simple indicator table.
type metric struct {
	column string
	label  string
	unit   string
	format func(domain.Value) string
	change bool
}

// derived is a stored column holding the change of another column against
// the prior period.
type derived struct {
	column string
	from   string
}

// table implements Indicator for classes rendered as one row per metric.
type table struct {
	name        string
	title       string
	description string
	queries     []domain.Query
	metrics     []metric
	derived     []derived
	evaluate    func(raw domain.Values) domain.Values
}

func (t *table) Name() string  { return t.name }
func (t *table) Title() string { return t.title }

func (t *table) Queries() []domain.Query { return slices.Clone(t.queries) }

func (t *table) Columns() []string {
	cols := make([]string, 0, len(t.metrics)+len(t.derived))
	for _, m := range t.metrics {
		cols = append(cols, m.column)
	}
	for _, d := range t.derived {
		cols = append(cols, d.column)
	}
	return cols
}

func (t *table) Evaluate(raw domain.Values) domain.Values {
	var out domain.Values
	if t.evaluate != nil {
		out = t.evaluate(raw)
	} else {
		out = maps.Clone(raw)
	}
	values := make(domain.Values, len(t.metrics))
	for _, m := range t.metrics {
		values[m.column] = out.Get(m.column)
	}
	return values
}

func (t *table) Render(values domain.Values, prior *domain.Row) report.Section {
	s := report.Section{
		Name:        t.name,
		Title:       t.title,
		Description: t.description,
		Headers:     []string{"Indicator", "Value", "Change"},
	}
	for _, m := range t.metrics {
		v := values.Get(m.column)
		label := m.label
		if m.unit != "" {
			label += " (" + m.unit + ")"
		}
		change := NotAvailable
		if m.change {
			change = FormatChange(Change(v, prior, m.column))
		}
		s.Rows = append(s.Rows, []string{label, m.format(v), change})
	}
	return s
}

func (t *table) ToRow(values domain.Values, prior *domain.Row, at time.Time) domain.Row {
	row := domain.Row{Class: t.name, Date: at, Values: make(domain.Values, len(t.metrics)+len(t.derived))}
	for _, m := range t.metrics {
		row.Values[m.column] = values.Get(m.column)
	}
	for _, d := range t.derived {
		row.Values[d.column] = Change(values.Get(d.from), prior, d.from)
	}
	return row
}

// mapEach applies fn to each named value of raw.
func mapEach(raw domain.Values, fn func(float64) float64, names ...string) domain.Values {
	out := make(domain.Values, len(names))
	for _, n := range names {
		out[n] = raw.Get(n).Map(fn)
	}
	return out
}
