package handlers

import (
	"net/http"
	"strconv"

	"bidding-arena/internal/api/models"
	"bidding-arena/internal/config"
	"bidding-arena/internal/data"
	"bidding-arena/internal/model"
	"bidding-arena/internal/replay"
	"bidding-arena/internal/sandbox"
	"bidding-arena/internal/strategy"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RunHandler executes replay runs and serves their results.
type RunHandler struct {
	store *RunStore
	log   zerolog.Logger
}

func NewRunHandler(store *RunStore, log zerolog.Logger) *RunHandler {
	return &RunHandler{store: store, log: log}
}

// CreateRun handles POST /api/v1/runs. The run executes synchronously:
// datasets are finite and replays are fast, so the response carries the
// final scoreboard directly.
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req models.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	impressions, ok := resolveImpressions(c, req.Data)
	if !ok {
		return
	}

	runCfg := config.RunConfig{
		ClearingRule:           req.Config.ClearingRule,
		PerInvocationTimeoutMs: req.Config.PerInvocationTimeoutMs,
		PerInvocationCostLimit: req.Config.PerInvocationCostLimit,
		DisqualifyAfterNFaults: req.Config.DisqualifyAfterNFaults,
		StartingBudget:         req.Config.StartingBudget,
		Workers:                req.Config.Workers,
	}
	runCfg.ApplyDefaults()
	if !model.ClearingRule(runCfg.ClearingRule).Valid() {
		badRequest(c, "INVALID_REQUEST", "clearing_rule must be first_price or second_price")
		return
	}

	env, err := strategy.NewEnv()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.ErrorDetail{
			Code: "INTERNAL_ERROR", Message: err.Error(),
		}})
		return
	}
	validator := strategy.NewValidator(env)
	exec := sandbox.New(env, runCfg.Limits())
	engine := replay.New(exec, runCfg.EngineOptions(), h.log)

	// Validation is the one-way gate: rejected strategies are reported but
	// never registered.
	validations := make([]models.ValidationResult, 0, len(req.Strategies))
	accepted := 0
	for _, sb := range req.Strategies {
		source := sb.Source
		if source == "" && sb.Preset != "" {
			source = strategy.PresetSource(sb.Preset)
			if source == "" {
				validations = append(validations, models.ValidationResult{
					Name: sb.Name, Reason: "UnknownPreset", Detail: sb.Preset,
				})
				continue
			}
		}
		if rej := validator.Validate(source); rej != nil {
			validations = append(validations, models.ValidationResult{
				Name: sb.Name, Reason: rej.Reason(), Detail: rej.Detail,
			})
			continue
		}
		prg, err := exec.Compile(source)
		if err != nil {
			// Validated source failing to compile is an infrastructure bug,
			// not a strategy problem.
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.ErrorDetail{
				Code: "COMPILE_ERROR", Message: err.Error(),
			}})
			return
		}
		budget := sb.Budget
		if budget == 0 {
			budget = runCfg.StartingBudget
		}
		if err := engine.Register(sb.Name, prg, budget); err != nil {
			badRequest(c, "INVALID_STRATEGY", err.Error())
			return
		}
		validations = append(validations, models.ValidationResult{Name: sb.Name, Accepted: true})
		accepted++
	}

	if accepted == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       gin.H{"code": "NO_VALID_STRATEGIES", "message": "every submitted strategy was rejected"},
			"validations": validations,
		})
		return
	}

	scoreboard := replay.NewScoreboard()
	engine.OnResult = scoreboard.Update

	result, runErr := engine.Run(c.Request.Context(), data.NewSliceSource(impressions), data.Analyze(impressions))
	if runErr != nil {
		h.log.Error().Err(runErr).Msg("run aborted")
	}

	id := h.store.Add(&StoredRun{
		Result:      result,
		Scoreboard:  scoreboard,
		Validations: validations,
	})

	c.JSON(http.StatusCreated, models.RunResponse{
		ID:          id,
		State:       result.State,
		Impressions: len(result.Results),
		Validations: validations,
		Scoreboard:  scoreboard.Snapshot(),
	})
}

// GetRun handles GET /api/v1/runs/:id.
func (h *RunHandler) GetRun(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.RunResponse{
		ID:          run.ID,
		State:       run.Result.State,
		Impressions: len(run.Result.Results),
		Validations: run.Validations,
		Scoreboard:  run.Scoreboard.Snapshot(),
	})
}

// GetResults handles GET /api/v1/runs/:id/results with offset/limit paging
// for incremental rendering.
func (h *RunHandler) GetResults(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", 500)

	results := run.Result.Results
	total := len(results)
	if offset < 0 || offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	c.JSON(http.StatusOK, models.ResultsResponse{
		ID:      run.ID,
		State:   run.Result.State,
		Offset:  offset,
		Total:   total,
		Results: results[offset:end],
	})
}

// GetScoreboard handles GET /api/v1/runs/:id/scoreboard.
func (h *RunHandler) GetScoreboard(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         run.ID,
		"state":      run.Result.State,
		"scoreboard": run.Scoreboard.Snapshot(),
	})
}

func (h *RunHandler) lookup(c *gin.Context) (*StoredRun, bool) {
	run, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: models.ErrorDetail{
			Code: "RUN_NOT_FOUND", Message: "no run with id " + c.Param("id"),
		}})
		return nil, false
	}
	return run, true
}

func resolveImpressions(c *gin.Context, body models.DataBody) ([]model.Impression, bool) {
	switch {
	case len(body.Impressions) > 0 && body.Synthetic != nil:
		badRequest(c, "INVALID_REQUEST", "data.impressions and data.synthetic are mutually exclusive")
		return nil, false
	case len(body.Impressions) > 0:
		return data.Normalize(body.Impressions), true
	case body.Synthetic != nil:
		if body.Synthetic.Records <= 0 {
			badRequest(c, "INVALID_REQUEST", "data.synthetic.records must be > 0")
			return nil, false
		}
		return data.Generate(data.GeneratorConfig{
			Records: body.Synthetic.Records,
			Seed:    body.Synthetic.Seed,
		}), true
	default:
		badRequest(c, "INVALID_REQUEST", "data.impressions or data.synthetic is required")
		return nil, false
	}
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
		Code: code, Message: message,
	}})
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
