package sli

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/slo-reporter/internal/config"
	"github.com/donaldgifford/slo-reporter/pkg/reduce"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

func testParams() Params {
	return Params{
		Environment:     "stage",
		Instance:        "exporter:80",
		UserAPIInstance: "user-api:80",
		WindowDays:      7,
		LearningRate:    time.Hour,
		Workflows: []Workflow{
			{Component: "adviser", Name: "adviser", Namespace: "thoth-backend"},
			{Component: "solver", Name: "solver", Namespace: "thoth-middletier"},
		},
		WorkflowTasks: []Workflow{
			{Component: "adviser", Name: "adviser", Namespace: "thoth-backend"},
		},
		LatencyBuckets: []string{"30", "60", "+Inf"},
		Integrations:   []string{"thamos-cli", "GitHub-App"},
		AdviserDays:    7,
	}
}

func testRunDate() time.Time {
	return time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC)
}

func queryByName(ind Indicator, name string) (domain.Query, bool) {
	for _, q := range ind.Queries() {
		if q.Name == name {
			return q, true
		}
	}
	return domain.Query{}, false
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testParams())
	assert.Equal(t, []string{
		"learning",
		"knowledge_graph",
		"pypi_knowledge_graph",
		"kebechet",
		"user_api",
		"component_quality",
		"workflow_task_quality",
		"component_latency",
		"thoth_integrations",
		"adviser_hardware_info",
		"adviser_base_image_info",
		"adviser_solver_info",
		"adviser_statistics",
		"adviser_justifications",
	}, r.Names())

	for _, ind := range r {
		t.Run(ind.Name(), func(t *testing.T) {
			t.Parallel()

			assert.NotEmpty(t, ind.Title())
			cols := ind.Columns()
			assert.NotEmpty(t, cols)
			assert.Len(t, cols, len(slicesCompact(cols)), "duplicate column")

			if d, ok := ind.(Digest); ok {
				assert.Empty(t, ind.Queries())
				assert.Equal(t, 7, d.Days())
				section := ind.Render(ind.Evaluate(domain.Values{}), nil)
				assert.Equal(t, ind.Name(), section.Name)
				assert.Empty(t, section.Rows)
				assert.Contains(t, section.Description, "last 7 days")
				return
			}

			for _, q := range ind.Queries() {
				assert.NotEmpty(t, q.Expr, q.Name)
				_, err := reduce.ParsePolicy(string(q.Policy))
				assert.NoError(t, err, q.Name)
			}

			// Every column of the row is declared, even with nothing collected.
			row := ind.ToRow(ind.Evaluate(domain.Values{}), nil, testRunDate())
			assert.Equal(t, ind.Name(), row.Class)
			assert.ElementsMatch(t, cols, mapKeys(row.Values))
			for col, v := range row.Values {
				assert.True(t, v.IsUnavailable(), col)
			}

			section := ind.Render(ind.Evaluate(domain.Values{}), nil)
			assert.Equal(t, ind.Name(), section.Name)
			assert.NotEmpty(t, section.Rows)
			for _, r := range section.Rows {
				assert.Len(t, r, len(section.Headers))
			}
		})
	}
}

func slicesCompact(s []string) []string {
	c := slices.Clone(s)
	slices.Sort(c)
	return slices.Compact(c)
}

func mapKeys(vs domain.Values) []string {
	keys := make([]string, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	return keys
}

func TestRegistry_LookupAndSelect(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testParams())

	ind, ok := r.Lookup("kebechet")
	require.True(t, ok)
	assert.Equal(t, "kebechet", ind.Name())

	_, ok = r.Lookup("nope")
	assert.False(t, ok)

	sel, err := r.Select([]string{"user_api", "learning"})
	require.NoError(t, err)
	assert.Equal(t, []string{"learning", "user_api"}, sel.Names())

	all, err := r.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(r))

	_, err = r.Select([]string{"nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown indicator class "nope"`)
}

func TestParamsFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Environment: "ocp4-stage",
		Instances:   config.InstancesConfig{MetricsExporter: "exporter:80", UserAPI: "user-api:80"},
		Namespaces:  config.NamespacesConfig{Backend: "thoth-backend-stage"},
		Window:      config.WindowConfig{Days: 14},
		Indicators: config.IndicatorsConfig{
			Workflows:      []config.WorkflowConfig{{Component: "adviser", Name: "adviser", Namespace: "backend"}},
			LatencyBuckets: []string{"+Inf"},
			Integrations:   []string{"s2i"},
			LearningRate:   2 * time.Hour,
			AdviserDays:    30,
		},
	}

	p := ParamsFromConfig(cfg)
	assert.Equal(t, "exporter:80", p.Instance)
	assert.Equal(t, "user-api:80", p.UserAPIInstance)
	assert.Equal(t, 14, p.WindowDays)
	assert.Equal(t, "14d", p.interval())
	require.Len(t, p.Workflows, 1)
	assert.Equal(t, "thoth-backend-stage", p.Workflows[0].Namespace)
	assert.Equal(t, []string{"s2i"}, p.Integrations)
	assert.Equal(t, 30, p.AdviserDays)
}

func TestSelector(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{instance="a:80", job="Thoth Metrics"}`, selector("instance", "a:80", "job", "Thoth Metrics"))
	assert.Equal(t, `{status=~"2.*"}`, selector("instance", "", "status~", "2.*"))
	assert.Equal(t, `{}`, selector())
}

func TestLearning(t *testing.T) {
	t.Parallel()

	ind := newLearning(testParams())

	q, ok := queryByName(ind, "average_learning_rate")
	require.True(t, ok)
	assert.Equal(t,
		`increase(thoth_graphdb_unsolved_python_package_versions_change_total{instance="exporter:80", job="Thoth Metrics"}[1h])`,
		q.Expr)
	assert.Equal(t, reduce.Average, q.Policy)
	assert.True(t, q.Range)

	values := ind.Evaluate(domain.Values{
		"average_learning_rate":    domain.Measured(-12.7),
		"solved_packages":          domain.Measured(5000.9),
		"solvers":                  domain.Measured(4),
		"average_si_learning_rate": domain.Unavailable(),
		"si_analyzed_packages":     domain.NoData(),
	})
	assert.Equal(t, domain.Measured(12), values["average_learning_rate"])
	assert.Equal(t, domain.Measured(5000), values["solved_packages"])
	assert.True(t, values["average_si_learning_rate"].IsUnavailable())
	f, ok := values["si_analyzed_packages"].Float()
	assert.True(t, ok)
	assert.Zero(t, f)

	prior := &domain.Row{Class: "learning", Values: domain.Values{"solvers": domain.Measured(3)}}
	row := ind.ToRow(values, prior, testRunDate())
	assert.Equal(t, domain.Measured(1), row.Values["new_solvers"])
	assert.Equal(t, []string{
		"average_learning_rate", "solved_packages", "solvers",
		"average_si_learning_rate", "si_analyzed_packages", "new_solvers",
	}, ind.Columns())

	noPrior := ind.ToRow(values, nil, testRunDate())
	assert.True(t, noPrior.Values["new_solvers"].IsUnavailable())

	section := ind.Render(values, prior)
	assert.Equal(t, []string{"Number of Solvers", "4", "+1"}, section.Rows[2])
	assert.Equal(t, []string{"Security Learning Rate (package releases/hour)", "NaN", "N/A"}, section.Rows[3])
}

func TestKnowledgeGraph_ChangeOnlyForTotals(t *testing.T) {
	t.Parallel()

	ind := newKnowledgeGraph(testParams())
	values := ind.Evaluate(domain.Values{
		"python_indices_registered": domain.Measured(3),
		"total_packages":            domain.Measured(1000),
		"new_packages":              domain.Measured(-20),
		"total_releases":            domain.Measured(9000),
		"new_packages_releases":     domain.Measured(300),
	})
	prior := &domain.Row{Values: domain.Values{
		"python_indices_registered": domain.Measured(3),
		"total_packages":            domain.Measured(980),
		"new_packages":              domain.Measured(10),
		"total_releases":            domain.Measured(8700),
		"new_packages_releases":     domain.Measured(100),
	}}

	section := ind.Render(values, prior)
	assert.Equal(t, [][]string{
		{"Python Indices", "3", "+0"},
		{"Python Packages", "1000", "+20"},
		{"New Python Packages", "20", "N/A"},
		{"Python Packages Releases", "9000", "+300"},
		{"New Python Packages Releases", "300", "N/A"},
	}, section.Rows)

	q, ok := queryByName(ind, "new_packages")
	require.True(t, ok)
	assert.Equal(t, reduce.Delta, q.Policy)
}

func TestPyPIKnowledgeGraph_Queries(t *testing.T) {
	t.Parallel()

	ind := newPyPIKnowledgeGraph(testParams())
	q, ok := queryByName(ind, "new_packages_releases")
	require.True(t, ok)
	assert.Equal(t,
		`thoth_pypi_stats{instance="exporter:80", job="Thoth Metrics (stage)", stats_type="releases"}`,
		q.Expr)
	assert.Equal(t, reduce.MinMax, q.Policy)
}

func TestKebechet(t *testing.T) {
	t.Parallel()

	ind := newKebechet(testParams())
	values := ind.Evaluate(domain.Values{"total_active_repositories": domain.Measured(42)})
	prior := &domain.Row{Values: domain.Values{"total_active_repositories": domain.Measured(45)}}

	row := ind.ToRow(values, prior, testRunDate())
	assert.Equal(t, domain.Measured(42), row.Values["total_active_repositories"])
	assert.Equal(t, domain.Measured(-3), row.Values["delta_total_active_repositories"])

	section := ind.Render(values, nil)
	assert.Equal(t, [][]string{{"Total active repositories", "42", "N/A"}}, section.Rows)
}

func TestUserAPI(t *testing.T) {
	t.Parallel()

	ind := newUserAPI(testParams())

	q, ok := queryByName(ind, "avg_up_time")
	require.True(t, ok)
	assert.False(t, q.Range)
	assert.Equal(t, `avg_over_time(up{instance="user-api:80", job="Thoth User API Metrics"}[7d])`, q.Expr)

	q, ok = queryByName(ind, "avg_successfull_request")
	require.True(t, ok)
	assert.Equal(t, `sum(flask_http_request_total{instance="user-api:80", status=~"2.*"})`, q.Expr)

	tests := []struct {
		name        string
		raw         domain.Values
		wantSuccess domain.Value
		wantUptime  domain.Value
	}{
		{
			name: "measured",
			raw: domain.Values{
				"avg_total_request":       domain.Measured(300),
				"avg_successfull_request": domain.Measured(200),
				"avg_up_time":             domain.Measured(0.99871),
			},
			wantSuccess: domain.Measured(66.667),
			wantUptime:  domain.Measured(99.871),
		},
		{
			name: "no traffic",
			raw: domain.Values{
				"avg_total_request":       domain.NoData(),
				"avg_successfull_request": domain.NoData(),
				"avg_up_time":             domain.Measured(1),
			},
			wantSuccess: domain.Measured(0),
			wantUptime:  domain.Measured(100),
		},
		{
			name: "total unavailable",
			raw: domain.Values{
				"avg_successfull_request": domain.Measured(10),
				"avg_up_time":             domain.Unavailable(),
			},
			wantSuccess: domain.Unavailable(),
			wantUptime:  domain.Unavailable(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			values := ind.Evaluate(tt.raw)
			assert.Equal(t, tt.wantSuccess, values["avg_percentage_successfull_request"])
			assert.Equal(t, tt.wantUptime, values["avg_up_time"])
		})
	}
}

func TestSuccessRate(t *testing.T) {
	t.Parallel()

	m := domain.Measured
	u := domain.Unavailable()

	tests := []struct {
		name                      string
		succeeded, failed, errord domain.Value
		want                      domain.Value
	}{
		{name: "all unavailable", succeeded: u, failed: u, errord: u, want: u},
		{name: "mixed", succeeded: m(90), failed: m(5), errord: m(5), want: m(90)},
		{name: "rounded", succeeded: m(2), failed: m(1), errord: m(0), want: m(66.667)},
		{name: "missing counters count as zero", succeeded: m(10), failed: u, errord: u, want: m(100)},
		{name: "nothing succeeded", succeeded: m(0), failed: m(4), errord: m(1), want: m(0)},
		{name: "only succeeded unavailable", succeeded: u, failed: m(4), errord: m(1), want: m(0)},
		{name: "fractional averages are truncated", succeeded: m(1.9), failed: m(0.9), errord: m(1.2), want: m(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, successRate(tt.succeeded, tt.failed, tt.errord))
		})
	}
}

func TestWorkflowQuality(t *testing.T) {
	t.Parallel()

	ind := newWorkflowQuality(qualityComponents, testParams().Workflows)
	assert.Equal(t, []string{"adviser", "solver"}, ind.Columns())

	q, ok := queryByName(ind, "adviser_workflows_failed")
	require.True(t, ok)
	assert.Equal(t,
		`argo_workflows_status_counter{name="adviser", namespace="thoth-backend", status="Failed"}`,
		q.Expr)

	values := ind.Evaluate(domain.Values{
		"adviser_workflows_succeeded": domain.Measured(3),
		"adviser_workflows_failed":    domain.Measured(1),
		"adviser_workflows_error":     domain.Measured(0),
	})
	assert.Equal(t, domain.Measured(75), values["adviser"])
	assert.True(t, values["solver"].IsUnavailable())

	tasks := newWorkflowQuality(qualityTasks, testParams().WorkflowTasks)
	assert.Equal(t, "workflow_task_quality", tasks.Name())
	q, ok = queryByName(tasks, "adviser_workflows_succeeded")
	require.True(t, ok)
	assert.Contains(t, q.Expr, "argo_workflows_task_status_counter{")
}

func TestWorkflowLatency(t *testing.T) {
	t.Parallel()

	ind := newWorkflowLatency(testParams())
	assert.Equal(t, []string{
		"adviser_le_30", "adviser_le_60", "adviser_le_inf",
		"solver_le_30", "solver_le_60", "solver_le_inf",
	}, ind.Columns())

	q, ok := queryByName(ind, "adviser_le_inf")
	require.True(t, ok)
	assert.Equal(t,
		`argo_workflows_duration_seconds_histogram_bucket{name="adviser", namespace="thoth-backend", le="+Inf"}`,
		q.Expr)

	values := ind.Evaluate(domain.Values{
		"adviser_le_30":  domain.Measured(50),
		"adviser_le_60":  domain.Measured(80),
		"adviser_le_inf": domain.Measured(100),
		"solver_le_30":   domain.Measured(1),
		"solver_le_60":   domain.Unavailable(),
		"solver_le_inf":  domain.Measured(10),
	})
	assert.Equal(t, domain.Measured(50), values["adviser_le_30"])
	assert.Equal(t, domain.Measured(80), values["adviser_le_60"])
	assert.Equal(t, domain.Measured(20), values["adviser_le_inf"])
	assert.True(t, values["solver_le_30"].IsUnavailable())
	assert.True(t, values["solver_le_inf"].IsUnavailable())

	zero := ind.Evaluate(domain.Values{
		"adviser_le_30":  domain.Measured(0),
		"adviser_le_60":  domain.Measured(0),
		"adviser_le_inf": domain.Measured(0),
	})
	assert.True(t, zero["adviser_le_30"].IsUnavailable())

	section := ind.Render(values, nil)
	assert.Equal(t, []string{"Component", "<= 30s", "<= 60s", "> 60s"}, section.Headers)
	assert.Equal(t, []string{"adviser", "50.00%", "80.00%", "20.00%"}, section.Rows[0])
	assert.Equal(t, []string{"solver", "NaN", "NaN", "NaN"}, section.Rows[1])
}

func TestIntegrations(t *testing.T) {
	t.Parallel()

	ind := newIntegrations(testParams())
	assert.Equal(t, []string{
		"thamos_cli_periodic", "thamos_cli_total",
		"github_app_periodic", "github_app_total",
	}, ind.Columns())

	q, ok := queryByName(ind, "github_app_counts_use")
	require.True(t, ok)
	assert.Equal(t,
		`thoth_graphdb_adviser_count_per_source_type{instance="exporter:80", thoth_integration="GitHub-App"}`,
		q.Expr)
	assert.Equal(t, reduce.Delta, q.Policy)

	values := ind.Evaluate(domain.Values{
		"thamos_cli_counts_use":   domain.Measured(12),
		"thamos_cli_counts_total": domain.Measured(340),
		"github_app_counts_use":   domain.Unavailable(),
		"github_app_counts_total": domain.Measured(80),
	})
	prior := &domain.Row{Values: domain.Values{"thamos_cli_total": domain.Measured(328)}}

	section := ind.Render(values, prior)
	assert.Equal(t, [][]string{
		{"thamos-cli", "12", "340", "+12"},
		{"GitHub-App", "NaN", "80", "N/A"},
	}, section.Rows)

	row := ind.ToRow(values, prior, testRunDate())
	assert.Equal(t, domain.Measured(340), row.Values["thamos_cli_total"])
	assert.True(t, row.Values["github_app_periodic"].IsUnavailable())
}

// compile-time interface checks.
var (
	_ Indicator = (*table)(nil)
	_ Indicator = (*workflowLatency)(nil)
	_ Indicator = (*integrations)(nil)
)
