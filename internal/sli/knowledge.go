package sli

import (
	"maps"
	"math"

	"github.com/donaldgifford/slo-reporter/pkg/reduce"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

func newKnowledgeGraph(p Params) *table {
	sel := selector("instance", p.Instance, "job", thothMetricsJob)
	packages := "thoth_graphdb_sum_python_packages_per_indexes" + sel
	releases := "thoth_graphdb_number_python_package_versions" + sel

	return &table{
		name:        "knowledge_graph",
		title:       "Thoth Knowledge Graph",
		description: "Python indices, packages and releases known to Thoth.",
		queries: []domain.Query{
			{Name: "python_indices_registered", Expr: "thoth_graphdb_total_python_indexes" + sel, Range: true, Policy: reduce.Latest},
			{Name: "total_packages", Expr: packages, Range: true, Policy: reduce.Latest},
			{Name: "new_packages", Expr: packages, Range: true, Policy: reduce.Delta},
			{Name: "total_releases", Expr: releases, Range: true, Policy: reduce.Latest},
			{Name: "new_packages_releases", Expr: releases, Range: true, Policy: reduce.Delta},
		},
		metrics: []metric{
			{column: "python_indices_registered", label: "Python Indices", format: FormatCount, change: true},
			{column: "total_packages", label: "Python Packages", format: FormatCount, change: true},
			{column: "new_packages", label: "New Python Packages", format: FormatCount},
			{column: "total_releases", label: "Python Packages Releases", format: FormatCount, change: true},
			{column: "new_packages_releases", label: "New Python Packages Releases", format: FormatCount},
		},
		evaluate: func(raw domain.Values) domain.Values {
			out := mapEach(raw, math.Trunc, "python_indices_registered", "total_packages", "total_releases")
			maps.Copy(out, mapEach(raw, truncAbs, "new_packages", "new_packages_releases"))
			return out
		},
	}
}

func newPyPIKnowledgeGraph(p Params) *table {
	job := thothMetricsJob + " (" + p.Environment + ")"
	packages := "thoth_pypi_stats" + selector("instance", p.Instance, "job", job, "stats_type", "packages")
	releases := "thoth_pypi_stats" + selector("instance", p.Instance, "job", job, "stats_type", "releases")

	return &table{
		name:        "pypi_knowledge_graph",
		title:       "PyPI Knowledge Graph",
		description: "Python packages and releases published on PyPI.",
		queries: []domain.Query{
			{Name: "total_packages", Expr: packages, Range: true, Policy: reduce.Latest},
			{Name: "new_packages", Expr: packages, Range: true, Policy: reduce.MinMax},
			{Name: "total_releases", Expr: releases, Range: true, Policy: reduce.Latest},
			{Name: "new_packages_releases", Expr: releases, Range: true, Policy: reduce.MinMax},
		},
		metrics: []metric{
			{column: "total_packages", label: "Python Packages", format: FormatCount, change: true},
			{column: "new_packages", label: "New Python Packages", format: FormatCount},
			{column: "total_releases", label: "Python Packages Releases", format: FormatCount, change: true},
			{column: "new_packages_releases", label: "New Python Packages Releases", format: FormatCount},
		},
		evaluate: func(raw domain.Values) domain.Values {
			return mapEach(raw, truncAbs, "total_packages", "new_packages", "total_releases", "new_packages_releases")
		},
	}
}
