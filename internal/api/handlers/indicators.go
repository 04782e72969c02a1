package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/slo-reporter/internal/sli"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// Indicator describes one indicator class.
type Indicator struct {
	Name    string         `json:"name" example:"kebechet" doc:"Class name used in object keys"`
	Title   string         `json:"title" example:"Kebechet"`
	Columns []string       `json:"columns" doc:"Stored snapshot columns in order, or the daily table columns of an adviser digest"`
	Queries []domain.Query `json:"queries"`
	Days    int            `json:"days,omitempty" doc:"Daily advise-reporter tables summarized by an adviser digest"`
}

// IndicatorsHandler lists the configured indicator classes.
type IndicatorsHandler struct {
	registry sli.Registry
}

// NewIndicatorsHandler creates a new IndicatorsHandler.
func NewIndicatorsHandler(r sli.Registry) *IndicatorsHandler {
	return &IndicatorsHandler{registry: r}
}

// ListIndicatorsOutput is the response for GET /api/v1/indicators.
type ListIndicatorsOutput struct {
	Body struct {
		Indicators []Indicator `json:"indicators"`
	}
}

// DescribeIndicators converts a registry into its API view.
func DescribeIndicators(r sli.Registry) []Indicator {
	out := make([]Indicator, 0, len(r))
	for _, ind := range r {
		desc := Indicator{
			Name:    ind.Name(),
			Title:   ind.Title(),
			Columns: ind.Columns(),
			Queries: ind.Queries(),
		}
		if desc.Queries == nil {
			desc.Queries = []domain.Query{}
		}
		if d, ok := ind.(sli.Digest); ok {
			desc.Days = d.Days()
		}
		out = append(out, desc)
	}
	return out
}

// ListIndicators returns every indicator class with its queries.
func (h *IndicatorsHandler) ListIndicators(_ context.Context, _ *struct{}) (*ListIndicatorsOutput, error) {
	resp := &ListIndicatorsOutput{}
	resp.Body.Indicators = DescribeIndicators(h.registry)
	return resp, nil
}

// RegisterIndicatorRoutes registers the indicator listing on the Huma API.
func RegisterIndicatorRoutes(api huma.API, h *IndicatorsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-indicators",
		Method:      http.MethodGet,
		Path:        "/api/v1/indicators",
		Summary:     "List indicator classes",
		Description: "Returns every indicator class with its stored columns and backend queries.",
		Tags:        []string{"indicators"},
	}, h.ListIndicators)
}
