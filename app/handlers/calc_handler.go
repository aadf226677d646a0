package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/ecoestudiante-calc/app/dto"
	businessflow "github.com/amirphl/ecoestudiante-calc/business_flow"
	"github.com/amirphl/ecoestudiante-calc/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CalcHandlerInterface defines the contract for calculation handlers
type CalcHandlerInterface interface {
	ComputeElectricity(c fiber.Ctx) error
	ComputeTransport(c fiber.Ctx) error
	History(c fiber.Ctx) error
	ExportHistory(c fiber.Ctx) error
}

// CalcHandler handles emission calculation HTTP requests
type CalcHandler struct {
	flow      businessflow.CalculationFlow
	validator *validator.Validate
	timeout   time.Duration
}

func (h *CalcHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CalcHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewCalcHandler creates a new calculation handler
func NewCalcHandler(flow businessflow.CalculationFlow, timeout time.Duration) *CalcHandler {
	return &CalcHandler{
		flow:      flow,
		validator: validator.New(),
		timeout:   timeout,
	}
}

// principal returns the authenticated caller set by the auth middleware.
func (h *CalcHandler) principal(c fiber.Ctx) (string, bool) {
	userID, ok := c.Locals(utils.UserIDKey).(string)
	return userID, ok && strings.TrimSpace(userID) != ""
}

// idempotencyKey prefers the header over the body field.
func idempotencyKey(c fiber.Ctx, body string) string {
	if key := strings.TrimSpace(c.Get(utils.IdempotencyKeyHeader)); key != "" {
		return key
	}
	return body
}

// flowError maps engine errors onto HTTP responses. Caller mistakes keep their code;
// everything else is reported as an internal error carrying the request id.
func (h *CalcHandler) flowError(c fiber.Ctx, err error, message string) error {
	switch {
	case businessflow.IsInvalidInput(err):
		code := businessflow.ErrorCode(err)
		if code == "" {
			code = "INVALID_INPUT"
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid input", code, err.Error())
	case businessflow.IsNoApplicableFactor(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "No emission factor applies to this request", "FACTOR_NOT_FOUND", err.Error())
	default:
		return h.ErrorResponse(c, fiber.StatusInternalServerError, message, "INTERNAL_ERROR", fiber.Map{"request_id": requestID(c)})
	}
}

// ComputeElectricity computes the emissions of an electricity consumption record
// @Summary Compute electricity emissions
// @Description Computes kgCO2e for a monthly electricity consumption. Replaying the same idempotency key returns the stored result.
// @Tags Calculations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key, takes precedence over the body field"
// @Param request body dto.ElectricityCalcRequest true "Electricity consumption"
// @Success 200 {object} dto.APIResponse{data=dto.CalcResultResponse} "Calculation result"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid input"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 422 {object} dto.APIResponse "No applicable emission factor"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/calc/electricity [post]
func (h *CalcHandler) ComputeElectricity(c fiber.Ctx) error {
	var req dto.ElectricityCalcRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	userID, ok := h.principal(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)

	ctx, cancel := createRequestContext(c, "/api/v1/calc/electricity", h.timeout)
	defer cancel()

	result, err := h.flow.ComputeElectricity(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to compute electricity emissions")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Electricity emissions computed", result)
}

// ComputeTransport computes the emissions of a trip
// @Summary Compute transport emissions
// @Description Computes kgCO2e for a trip. fuelType is required for car and motorcycle; occupancy divides the result.
// @Tags Calculations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key, takes precedence over the body field"
// @Param request body dto.TransportCalcRequest true "Trip"
// @Success 200 {object} dto.APIResponse{data=dto.CalcResultResponse} "Calculation result"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid input"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 422 {object} dto.APIResponse "No applicable emission factor"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/calc/transport [post]
func (h *CalcHandler) ComputeTransport(c fiber.Ctx) error {
	var req dto.TransportCalcRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	userID, ok := h.principal(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)

	ctx, cancel := createRequestContext(c, "/api/v1/calc/transport", h.timeout)
	defer cancel()

	result, err := h.flow.ComputeTransport(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to compute transport emissions")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Transport emissions computed", result)
}

// History lists the caller's calculations
// @Summary Calculation history
// @Description Paginated history of the caller's calculations, newest first, with subcategory labels and the applied factor.
// @Tags Calculations
// @Produce json
// @Security BearerAuth
// @Param page query int false "0-based page" default(0)
// @Param pageSize query int false "Page size" default(20)
// @Param category query string false "electricity or transport"
// @Param from query string false "Created at or after (YYYY-MM-DD or RFC3339)"
// @Param to query string false "Created at or before (YYYY-MM-DD or RFC3339)"
// @Success 200 {object} dto.APIResponse{data=dto.CalcHistoryResponse} "History page"
// @Failure 400 {object} dto.APIResponse "Invalid query"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/calc/history [get]
func (h *CalcHandler) History(c fiber.Ctx) error {
	req, err := h.historyRequest(c)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}

	ctx, cancel := createRequestContext(c, "/api/v1/calc/history", h.timeout)
	defer cancel()

	result, err := h.flow.GetHistory(ctx, req)
	if err != nil {
		return h.flowError(c, err, "Failed to load calculation history")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Calculation history retrieved", result)
}

// ExportHistory downloads the caller's history as a spreadsheet
// @Summary Export calculation history
// @Description Same filters as the history endpoint, paging ignored. Returns an .xlsx workbook.
// @Tags Calculations
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param category query string false "electricity or transport"
// @Param from query string false "Created at or after (YYYY-MM-DD or RFC3339)"
// @Param to query string false "Created at or before (YYYY-MM-DD or RFC3339)"
// @Success 200 {file} binary "History workbook"
// @Failure 400 {object} dto.APIResponse "Invalid query"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/calc/history/export [get]
func (h *CalcHandler) ExportHistory(c fiber.Ctx) error {
	req, err := h.historyRequest(c)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}

	ctx, cancel := createRequestContext(c, "/api/v1/calc/history/export", h.timeout)
	defer cancel()

	filename, content, err := h.flow.ExportHistory(ctx, req)
	if err != nil {
		return h.flowError(c, err, "Failed to export calculation history")
	}

	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Status(fiber.StatusOK).Send(content)
}

// historyRequest binds and validates history query parameters. A nil request
// with a nil error means the error response has already been written.
func (h *CalcHandler) historyRequest(c fiber.Ctx) (*dto.CalcHistoryRequest, error) {
	var req dto.CalcHistoryRequest
	if err := c.Bind().Query(&req); err != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	userID, ok := h.principal(c)
	if !ok {
		return nil, h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID
	return &req, nil
}
