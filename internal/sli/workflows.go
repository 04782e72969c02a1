package sli

import (
	"cmp"
	"math"
	"strconv"
	"time"

	"github.com/donaldgifford/slo-reporter/internal/report"
	"github.com/donaldgifford/slo-reporter/pkg/reduce"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

const infBucket = "+Inf"

type qualityKind struct {
	name   string
	title  string
	metric string
}

var (
	qualityComponents = qualityKind{
		name:   "component_quality",
		title:  "Thoth Components Quality",
		metric: "argo_workflows_status_counter",
	}
	qualityTasks = qualityKind{
		name:   "workflow_task_quality",
		title:  "Thoth Workflow Tasks Quality",
		metric: "argo_workflows_task_status_counter",
	}
)

var workflowStatuses = []string{"Succeeded", "Failed", "Error"}

func workflowSelector(w Workflow, extra ...string) string {
	pairs := append([]string{"instance", w.Instance, "name", w.Name, "namespace", w.Namespace}, extra...)
	return selector(pairs...)
}

func statusQuery(component, status string) string {
	return columnName(component) + "_workflows_" + columnName(status)
}

func newWorkflowQuality(k qualityKind, workflows []Workflow) *table {
	t := &table{
		name:        k.name,
		title:       k.title,
		description: "Share of successful workflows in the period.",
	}
	for _, w := range workflows {
		for _, status := range workflowStatuses {
			t.queries = append(t.queries, domain.Query{
				Name:   statusQuery(w.Component, status),
				Expr:   k.metric + workflowSelector(w, "status", status),
				Range:  true,
				Policy: reduce.Average,
			})
		}
		t.metrics = append(t.metrics, metric{
			column: columnName(w.Component),
			label:  w.Component,
			format: FormatPercent,
			change: true,
		})
	}

	t.evaluate = func(raw domain.Values) domain.Values {
		out := make(domain.Values, len(workflows))
		for _, w := range workflows {
			counts := make([]domain.Value, 0, len(workflowStatuses))
			for _, status := range workflowStatuses {
				counts = append(counts, raw.Get(statusQuery(w.Component, status)))
			}
			out[columnName(w.Component)] = successRate(counts[0], counts[1], counts[2])
		}
		return out
	}
	return t
}

// successRate is succeeded over all finished workflows, in percent. It is
// unavailable only when none of the counters could be retrieved; a single
// missing counter counts as zero.
func successRate(succeeded, failed, errored domain.Value) domain.Value {
	if succeeded.IsUnavailable() && failed.IsUnavailable() && errored.IsUnavailable() {
		return domain.Unavailable()
	}
	count := func(v domain.Value) float64 {
		f, _ := v.Float()
		return math.Trunc(f)
	}
	s, f, e := count(succeeded), count(failed), count(errored)
	if s <= 0 {
		return domain.Measured(0)
	}
	total := s + f + e
	if total <= 0 {
		return domain.Measured(100)
	}
	return domain.Measured(math.Abs(round(s/total*100, 3)))
}

// workflowLatency reports, per workflow, the share of runs finishing within
// each duration bucket.
type workflowLatency struct {
	workflows []Workflow
	buckets   []string
	// largest finite bucket, empty when only +Inf is configured.
	largest string
}

func newWorkflowLatency(p Params) *workflowLatency {
	l := &workflowLatency{workflows: p.Workflows, buckets: p.LatencyBuckets}
	top := math.Inf(-1)
	for _, b := range l.buckets {
		if b == infBucket {
			continue
		}
		if f, err := strconv.ParseFloat(b, 64); err == nil && f > top {
			top, l.largest = f, b
		}
	}
	return l
}

func bucketColumn(component, bucket string) string {
	if bucket == infBucket {
		bucket = "inf"
	}
	return columnName(component) + "_le_" + bucket
}

func (l *workflowLatency) Name() string  { return "component_latency" }
func (l *workflowLatency) Title() string { return "Thoth Components Latency" }

func (l *workflowLatency) Columns() []string {
	cols := make([]string, 0, len(l.workflows)*len(l.buckets))
	for _, w := range l.workflows {
		for _, b := range l.buckets {
			cols = append(cols, bucketColumn(w.Component, b))
		}
	}
	return cols
}

func (l *workflowLatency) Queries() []domain.Query {
	queries := make([]domain.Query, 0, len(l.workflows)*len(l.buckets))
	for _, w := range l.workflows {
		for _, b := range l.buckets {
			queries = append(queries, domain.Query{
				Name:   bucketColumn(w.Component, b),
				Expr:   "argo_workflows_duration_seconds_histogram_bucket" + workflowSelector(w, "le", b),
				Range:  true,
				Policy: reduce.Latest,
			})
		}
	}
	return queries
}

func (l *workflowLatency) Evaluate(raw domain.Values) domain.Values {
	out := make(domain.Values, len(l.workflows)*len(l.buckets))

	for _, w := range l.workflows {
		inf, infOK := raw.Get(bucketColumn(w.Component, infBucket)).Float()
		available := infOK && inf != 0
		for _, b := range l.buckets {
			if raw.Get(bucketColumn(w.Component, b)).IsUnavailable() {
				available = false
			}
		}

		for _, b := range l.buckets {
			col := bucketColumn(w.Component, b)
			if !available {
				out[col] = domain.Unavailable()
				continue
			}
			if b == infBucket {
				above := inf
				if l.largest != "" {
					v, _ := raw.Get(bucketColumn(w.Component, l.largest)).Float()
					above = inf - v
				}
				out[col] = domain.Measured(round(above/inf*100, 3))
				continue
			}
			v, _ := raw.Get(col).Float()
			out[col] = domain.Measured(round(v/inf*100, 3))
		}
	}
	return out
}

func (l *workflowLatency) Render(values domain.Values, _ *domain.Row) report.Section {
	headers := []string{"Component"}
	for _, b := range l.buckets {
		if b == infBucket {
			headers = append(headers, "> "+cmp.Or(l.largest, "0")+"s")
			continue
		}
		headers = append(headers, "<= "+b+"s")
	}

	s := report.Section{
		Name:        l.Name(),
		Title:       l.Title(),
		Description: "Share of workflows finished within each duration.",
		Headers:     headers,
	}
	for _, w := range l.workflows {
		row := []string{w.Component}
		for _, b := range l.buckets {
			row = append(row, FormatPercent(values.Get(bucketColumn(w.Component, b))))
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func (l *workflowLatency) ToRow(values domain.Values, _ *domain.Row, at time.Time) domain.Row {
	row := domain.Row{Class: l.Name(), Date: at, Values: make(domain.Values)}
	for _, col := range l.Columns() {
		row.Values[col] = values.Get(col)
	}
	return row
}
