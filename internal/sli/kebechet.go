package sli

import (
	"github.com/donaldgifford/slo-reporter/pkg/reduce"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

func newKebechet(p Params) *table {
	return &table{
		name:  "kebechet",
		title: "Kebechet",
		queries: []domain.Query{
			{
				Name:   "total_active_repositories",
				Expr:   "thoth_kebechet_total_active_repo_count" + selector("instance", p.Instance, "job", thothMetricsJob),
				Range:  true,
				Policy: reduce.Latest,
			},
		},
		metrics: []metric{
			{column: "total_active_repositories", label: "Total active repositories", format: FormatCount, change: true},
		},
		derived: []derived{
			{column: "delta_total_active_repositories", from: "total_active_repositories"},
		},
		evaluate: func(raw domain.Values) domain.Values {
			return mapEach(raw, truncAbs, "total_active_repositories")
		},
	}
}
