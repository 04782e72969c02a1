package engine

import (
	"context"
	"log/slog"
	"math"

	"github.com/donaldgifford/slo-reporter/internal/metrics"
	"github.com/donaldgifford/slo-reporter/internal/sli"
	"github.com/donaldgifford/slo-reporter/pkg/reduce"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// Query outcomes recorded in metrics.QueriesTotal.
const (
	resultSuccess = "success"
	resultEmpty   = "empty"
	resultError   = "error"
)

// collect runs every query of ind and reduces each result to one value. A
// failed query is recorded as unavailable and never stops the others. The
// names of failed queries are returned alongside the values.
func (eng *Engine) collect(
	ctx context.Context,
	log *slog.Logger,
	ind sli.Indicator,
	w domain.Window,
) (domain.Values, []string) {
	queries := ind.Queries()
	values := make(domain.Values, len(queries))
	var failed []string

	for _, q := range queries {
		v, outcome, err := eng.evaluate(ctx, q, w)
		metrics.QueriesTotal.WithLabelValues(ind.Name(), outcome).Inc()
		if err != nil {
			log.Warn("query failed",
				"class", ind.Name(),
				"query", q.Name,
				"error", err,
			)
			failed = append(failed, q.Name)
		}
		values[q.Name] = v
	}

	log.Debug("class collected",
		"class", ind.Name(),
		"queries", len(queries),
		"failed", len(failed),
	)
	return values, failed
}

func (eng *Engine) evaluate(ctx context.Context, q domain.Query, w domain.Window) (domain.Value, string, error) {
	var (
		samples []float64
		err     error
	)
	if q.Range {
		samples, err = eng.querier.QueryRange(ctx, q.Expr, w)
	} else {
		samples, err = eng.querier.Query(ctx, q.Expr, w.End)
	}
	if err != nil {
		return domain.Unavailable(), resultError, err
	}
	if len(samples) == 0 {
		return domain.NoData(), resultEmpty, nil
	}

	f, err := reduce.Apply(q.Policy, samples)
	if err != nil {
		return domain.Unavailable(), resultError, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.Unavailable(), resultError, errNotFinite
	}
	return domain.Measured(f), resultSuccess, nil
}
