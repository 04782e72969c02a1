package sli

import (
	"maps"
	"math"

	"github.com/donaldgifford/slo-reporter/pkg/reduce"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

const thothMetricsJob = "Thoth Metrics"

func newLearning(p Params) *table {
	sel := selector("instance", p.Instance, "job", thothMetricsJob)
	rate := promDuration(p.LearningRate)

	return &table{
		name:        "learning",
		title:       "Thoth Learning",
		description: "How fast Thoth learns about Python package releases.",
		queries: []domain.Query{
			{
				Name:   "average_learning_rate",
				Expr:   "increase(thoth_graphdb_unsolved_python_package_versions_change_total" + sel + "[" + rate + "])",
				Range:  true,
				Policy: reduce.Average,
			},
			{
				Name:   "solved_packages",
				Expr:   "sum(thoth_graphdb_total_number_solved_python_packages" + sel + ")",
				Range:  true,
				Policy: reduce.Latest,
			},
			{
				Name:   "solvers",
				Expr:   "thoth_graphdb_total_number_solvers" + sel,
				Range:  true,
				Policy: reduce.Latest,
			},
			{
				Name:   "average_si_learning_rate",
				Expr:   "increase(thoth_graphdb_si_unanalyzed_python_package_versions_change_total" + sel + "[" + rate + "])",
				Range:  true,
				Policy: reduce.Average,
			},
			{
				Name:   "si_analyzed_packages",
				Expr:   "thoth_graphdb_total_number_si_analyzed_python_packages" + sel,
				Range:  true,
				Policy: reduce.Latest,
			},
		},
		metrics: []metric{
			{column: "average_learning_rate", label: "Solved Learning Rate", unit: "package releases/hour", format: FormatCount, change: true},
			{column: "solved_packages", label: "Solved package releases", unit: "package releases", format: FormatCount, change: true},
			{column: "solvers", label: "Number of Solvers", format: FormatCount, change: true},
			{column: "average_si_learning_rate", label: "Security Learning Rate", unit: "package releases/hour", format: FormatCount, change: true},
			{column: "si_analyzed_packages", label: "SI analyzed packages", unit: "package releases", format: FormatCount, change: true},
		},
		derived: []derived{
			{column: "new_solvers", from: "solvers"},
		},
		evaluate: func(raw domain.Values) domain.Values {
			out := mapEach(raw, truncAbs, "average_learning_rate", "solvers", "average_si_learning_rate")
			maps.Copy(out, mapEach(raw, math.Trunc, "solved_packages", "si_analyzed_packages"))
			return out
		},
	}
}
