package models

import "bidding-arena/internal/model"

// RunRequest represents the request body for starting a replay run.
type RunRequest struct {
	Config     RunConfigBody  `json:"config"`
	Strategies []StrategyBody `json:"strategies" binding:"required"`
	Data       DataBody       `json:"data"`
}

// RunConfigBody mirrors the run section of the YAML config. Zero values take
// server defaults.
type RunConfigBody struct {
	ClearingRule           string  `json:"clearing_rule"`
	PerInvocationTimeoutMs int     `json:"per_invocation_timeout_ms"`
	PerInvocationCostLimit uint64  `json:"per_invocation_cost_limit"`
	DisqualifyAfterNFaults int     `json:"disqualify_after_n_faults"`
	StartingBudget         float64 `json:"starting_budget"`
	Workers                int     `json:"workers"`
}

// StrategyBody submits one candidate: inline untrusted source or a preset
// name. Budget overrides the run-level starting budget when non-zero.
type StrategyBody struct {
	Name   string  `json:"name" binding:"required"`
	Source string  `json:"source,omitempty"`
	Preset string  `json:"preset,omitempty"`
	Budget float64 `json:"budget,omitempty"`
}

// DataBody attaches the impression stream: inline records or a synthetic
// generation settings.
type DataBody struct {
	Impressions []model.Impression `json:"impressions,omitempty"`
	Synthetic   *SyntheticBody     `json:"synthetic,omitempty"`
}

type SyntheticBody struct {
	Records int   `json:"records"`
	Seed    int64 `json:"seed"`
}

// ValidateRequest submits a single source for static validation only.
type ValidateRequest struct {
	Source string `json:"source" binding:"required"`
}
