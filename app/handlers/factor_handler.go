package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/ecoestudiante-calc/app/dto"
	businessflow "github.com/amirphl/ecoestudiante-calc/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// FactorHandlerInterface defines the contract for factor catalog handlers
type FactorHandlerInterface interface {
	Resolve(c fiber.Ctx) error
}

// FactorHandler exposes read-only views of the factor catalog
type FactorHandler struct {
	flow      businessflow.FactorFlow
	validator *validator.Validate
	timeout   time.Duration
}

func (h *FactorHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *FactorHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewFactorHandler creates a new factor handler
func NewFactorHandler(flow businessflow.FactorFlow, timeout time.Duration) *FactorHandler {
	return &FactorHandler{
		flow:      flow,
		validator: validator.New(),
		timeout:   timeout,
	}
}

// Resolve reports the factor a calculation would use
// @Summary Resolve emission factor
// @Description Returns the factor the engine would apply for the tuple. Exact country rows win over fallback rows.
// @Tags Factors
// @Produce json
// @Param category query string true "electricity or transport"
// @Param subcategory query string false "Transport subcategory, e.g. car_gasoline"
// @Param country query string false "ISO country code"
// @Param period query string true "YYYY-MM"
// @Success 200 {object} dto.APIResponse{data=dto.ResolveFactorResponse} "Resolved factor"
// @Failure 400 {object} dto.APIResponse "Invalid query"
// @Failure 404 {object} dto.APIResponse "No applicable factor"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/factors/resolve [get]
func (h *FactorHandler) Resolve(c fiber.Ctx) error {
	var req dto.ResolveFactorRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if sub := strings.TrimSpace(c.Query("subcategory")); sub != "" {
		req.Subcategory = &sub
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/factors/resolve", h.timeout)
	defer cancel()

	result, err := h.flow.ResolveFactor(ctx, &req)
	if err != nil {
		switch {
		case businessflow.IsInvalidInput(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid input", businessflow.ErrorCode(err), err.Error())
		case businessflow.IsNoApplicableFactor(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "No applicable factor", "FACTOR_NOT_FOUND", err.Error())
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve factor", "INTERNAL_ERROR", fiber.Map{"request_id": requestID(c)})
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Factor resolved", result)
}
