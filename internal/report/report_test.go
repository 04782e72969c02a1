package report

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

func testWindow() domain.Window {
	return domain.NewWindow(time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC), 7, time.Hour)
}

func TestRenderDocument(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Environment: "ocp4-stage",
		Window:      testWindow(),
		Sections: []Section{
			{
				Name:    "kebechet",
				Title:   "Kebechet",
				Headers: []string{"Metric", "Value", "Change"},
				Rows:    [][]string{{"Total active repositories", "42", "+3"}},
			},
			{
				Name:        "user_api",
				Title:       "User API",
				Description: "Requests served <fast>",
				Headers:     []string{"Metric", "Value"},
				Rows:        [][]string{{"Uptime User-API (avg)", "NaN"}},
			},
		},
		References:  References("https://grafana.example.com", "ocp4-stage", "exporter:80", testWindow()),
		GeneratedAt: time.Date(2024, 3, 11, 7, 5, 0, 0, time.UTC),
	}

	out, err := RenderDocument(doc)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>Thoth SLI Metrics from 2024-03-04 to 2024-03-11</title>")
	assert.Contains(t, html, `<section id="kebechet">`)
	assert.Contains(t, html, "<td>Total active repositories</td><td>42</td><td>&#43;3</td>")
	assert.Contains(t, html, "<td>NaN</td>")
	assert.Contains(t, html, "Requests served &lt;fast&gt;")
	assert.Contains(t, html, "Thoth Knowledge Graph")
	assert.Contains(t, html, "2024-03-11 07:05:00 UTC")
	assert.Less(t, strings.Index(html, "kebechet"), strings.Index(html, "user_api"))
}

func TestRenderDocument_NoReferences(t *testing.T) {
	t.Parallel()

	out, err := RenderDocument(&Document{Window: testWindow()})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "References")
}

func TestDocument_Title(t *testing.T) {
	t.Parallel()

	d := &Document{Window: testWindow()}
	assert.Equal(t, "Thoth SLI Metrics from 2024-03-04 to 2024-03-11", d.Title())
}

func TestReferences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		environment string
		wantLen     int
	}{
		{name: "production", environment: "ocp4-prod", wantLen: 3},
		{name: "stage adds superset", environment: "stage", wantLen: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := testWindow()
			refs := References("https://grafana.example.com", tt.environment, "exporter:80", w)
			require.Len(t, refs, tt.wantLen)

			u, err := url.Parse(refs[0].URL)
			require.NoError(t, err)
			assert.Equal(t, "/dashboard/db/thoth-knowledge-graph-content-metrics", u.Path)
			q := u.Query()
			assert.Equal(t, "exporter:80", q.Get("var-instance"))
			assert.Equal(t, tt.environment, q.Get("var-environment"))
			assert.Equal(t, "1709535600000", q.Get("from"))
			assert.Equal(t, "1710140400000", q.Get("to"))

			u, err = url.Parse(refs[1].URL)
			require.NoError(t, err)
			assert.Empty(t, u.Query().Get("var-instance"))
		})
	}
}
