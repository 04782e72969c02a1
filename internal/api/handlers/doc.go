package handlers

// ErrorResponse is the body of echo routes that fail outside huma.
type ErrorResponse struct {
	Error string `json:"error" example:"no report rendered yet"`
}

// StatusResponse is the body of the probe endpoints.
type StatusResponse struct {
	Status string `json:"status" example:"ready"`
	// Detail explains a failed probe.
	Detail string `json:"detail,omitempty" example:"pinging metrics backend: connection refused"`
}
