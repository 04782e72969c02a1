package client

import (
	"context"

	"github.com/donaldgifford/slo-reporter/internal/api/handlers"
	"github.com/donaldgifford/slo-reporter/internal/engine"
)

// TriggerRun starts a report run on the server and waits for its result.
func (c *Client) TriggerRun(ctx context.Context) (*engine.RunResult, error) {
	var result engine.RunResult
	if err := c.post(ctx, "/api/v1/runs", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LatestRun returns the result of the most recent run.
func (c *Client) LatestRun(ctx context.Context) (*engine.RunResult, error) {
	var result engine.RunResult
	if err := c.get(ctx, "/api/v1/runs/latest", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListIndicators returns the indicator classes the server runs.
func (c *Client) ListIndicators(ctx context.Context) ([]handlers.Indicator, error) {
	var resp struct {
		Indicators []handlers.Indicator `json:"indicators"`
	}
	if err := c.get(ctx, "/api/v1/indicators", &resp); err != nil {
		return nil, err
	}
	return resp.Indicators, nil
}
