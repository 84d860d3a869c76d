package models

import (
	"bidding-arena/internal/model"
	"bidding-arena/internal/replay"
	"bidding-arena/internal/strategy"
)

// RunResponse summarizes a run after submission or on GET /runs/:id.
type RunResponse struct {
	ID          string                    `json:"id"`
	State       replay.State              `json:"state"`
	Impressions int                       `json:"impressions"`
	Validations []ValidationResult        `json:"validations"`
	Scoreboard  map[string]replay.Metrics `json:"scoreboard"`
}

// ValidationResult reports the validation gate's decision for one submitted
// strategy. Rejected strategies never entered the run.
type ValidationResult struct {
	Name     string `json:"name"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// ResultsResponse pages through a run's RunResult sequence so the dashboard
// can render incrementally.
type ResultsResponse struct {
	ID      string            `json:"id"`
	State   replay.State      `json:"state"`
	Offset  int               `json:"offset"`
	Total   int               `json:"total"`
	Results []model.RunResult `json:"results"`
}

// ValidateResponse is the outcome of a standalone validation check.
type ValidateResponse struct {
	Valid     bool   `json:"valid"`
	Kind      string `json:"kind,omitempty"`
	Construct string `json:"construct,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// PresetsResponse lists the built-in strategy sources.
type PresetsResponse struct {
	Presets []strategy.Preset `json:"presets"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
