package handlers

import (
	"net/http"

	"bidding-arena/internal/api/models"
	"bidding-arena/internal/strategy"

	"github.com/gin-gonic/gin"
)

// StrategyHandler serves preset listing and standalone validation.
type StrategyHandler struct {
	validator *strategy.Validator
}

func NewStrategyHandler() (*StrategyHandler, error) {
	env, err := strategy.NewEnv()
	if err != nil {
		return nil, err
	}
	return &StrategyHandler{validator: strategy.NewValidator(env)}, nil
}

// ListPresets handles GET /api/v1/strategies.
func (h *StrategyHandler) ListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, models.PresetsResponse{Presets: strategy.Presets()})
}

// ValidateStrategy handles POST /api/v1/strategies/validate. Validation is
// static only: the submitted source is never executed.
func (h *StrategyHandler) ValidateStrategy(c *gin.Context) {
	var req models.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	if rej := h.validator.Validate(req.Source); rej != nil {
		c.JSON(http.StatusOK, models.ValidateResponse{
			Kind:      string(rej.Kind),
			Construct: rej.Construct,
			Reason:    rej.Reason(),
			Detail:    rej.Detail,
		})
		return
	}
	c.JSON(http.StatusOK, models.ValidateResponse{Valid: true})
}
