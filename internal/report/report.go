// Package report renders indicator sections into the HTML report document.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"maps"
	"net/url"
	"time"

	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.gohtml"))

// Section is the rendered view of one indicator class.
type Section struct {
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
}

// Reference is a link listed at the end of the report.
type Reference struct {
	Title       string
	URL         string
	Description string
}

// Document is a complete report.
type Document struct {
	Environment string
	Window      domain.Window
	Sections    []Section
	References  []Reference
	GeneratedAt time.Time
}

// Title returns the report heading for the window.
func (d *Document) Title() string {
	return fmt.Sprintf("Thoth SLI Metrics from %s to %s",
		d.Window.Start.Format(domain.DateLayout),
		d.Window.End.Format(domain.DateLayout),
	)
}

// RenderDocument renders the full HTML document.
func RenderDocument(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "document.gohtml", doc); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

// References returns the dashboard links for the window. The Superset link
// only exists for the stage environment.
func References(grafanaURL, environment, instance string, w domain.Window) []Reference {
	timeRange := url.Values{}
	timeRange.Set("refresh", "1m")
	timeRange.Set("orgId", "1")
	timeRange.Set("from", fmt.Sprint(w.StartMillis()))
	timeRange.Set("to", fmt.Sprint(w.EndMillis()))

	kg := maps.Clone(timeRange)
	kg.Set("var-instance", instance)
	kg.Set("var-environment", environment)

	refs := []Reference{
		{
			Title:       "Thoth Knowledge Graph",
			URL:         grafanaURL + "/dashboard/db/thoth-knowledge-graph-content-metrics?" + kg.Encode(),
			Description: "Dashboard for Thoth Knowledge Graph data stored.",
		},
		{
			Title:       "Thoth SLI/SLO",
			URL:         grafanaURL + "/dashboard/db/thoth-sli-slo?" + timeRange.Encode(),
			Description: "Dashboard for SLI/SLO for Thoth.",
		},
		{
			Title:       "Thoth Reports",
			URL:         grafanaURL + "/dashboard/db/thoth-reports?" + timeRange.Encode(),
			Description: "Dashboard for summary reports created by Thoth reporters components.",
		},
	}
	if environment == "stage" {
		refs = append(refs, Reference{
			Title:       "Thoth Superset",
			URL:         "https://superset.datahub.redhat.com/superset/dashboard/17/",
			Description: "Superset Dashboard for SLI/SLO in time.",
		})
	}
	return refs
}
