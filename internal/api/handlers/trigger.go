package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/slo-reporter/internal/engine"
)

// RunsPath is the route that triggers a run.
const RunsPath = "/api/v1/runs"

// Runner defines the interface for triggering report runs.
type Runner interface {
	Run(ctx context.Context) (*engine.RunResult, error)
	Latest() *engine.RunResult
}

// RunsHandler handles manual run triggers and run lookups.
type RunsHandler struct {
	runner Runner
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(r Runner) *RunsHandler {
	return &RunsHandler{runner: r}
}

// RunOutput is the response body for run endpoints.
type RunOutput struct {
	Body *engine.RunResult
}

// Trigger runs the report pipeline once and waits for it to finish.
func (h *RunsHandler) Trigger(ctx context.Context, _ *struct{}) (*RunOutput, error) {
	res, err := h.runner.Run(ctx)
	switch {
	case errors.Is(err, engine.ErrRunInProgress):
		return nil, huma.Error409Conflict("a run is already in progress")
	case errors.Is(err, engine.ErrBackendUnreachable):
		return nil, huma.Error503ServiceUnavailable("metrics backend unreachable: " + err.Error())
	case err != nil:
		return nil, huma.Error500InternalServerError("run failed: " + err.Error())
	}
	return &RunOutput{Body: res}, nil
}

// GetLatest returns the result of the last completed run.
func (h *RunsHandler) GetLatest(_ context.Context, _ *struct{}) (*RunOutput, error) {
	res := h.runner.Latest()
	if res == nil {
		return nil, huma.Error404NotFound("no run has completed yet")
	}
	return &RunOutput{Body: res}, nil
}

// RegisterRunRoutes registers run endpoints with the Huma API.
func RegisterRunRoutes(api huma.API, h *RunsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-run",
		Method:      http.MethodPost,
		Path:        RunsPath,
		Summary:     "Trigger a report run",
		Description: "Collects every indicator class, stores snapshots, publishes " +
			"values and delivers the report. Returns when the run is done.",
		Tags: []string{"runs"},
		Errors: []int{
			http.StatusConflict,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		},
	}, h.Trigger)

	huma.Register(api, huma.Operation{
		OperationID: "get-latest-run",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/latest",
		Summary:     "Get the latest run",
		Description: "Returns the summary of the last completed run.",
		Tags:        []string{"runs"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetLatest)
}
