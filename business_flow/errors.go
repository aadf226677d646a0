// Package businessflow contains the emission calculation engine and its supporting use cases
package businessflow

import (
	"errors"
	"fmt"
)

// Error categories surfaced by the engine
var (
	ErrInvalidInput                 = errors.New("invalid input")
	ErrNoApplicableFactor           = errors.New("no applicable emission factor")
	ErrIdempotencyRaceInconsistency = errors.New("idempotency conflict reported but existing calculation not found")
	ErrPersistenceFailure           = errors.New("failed to persist calculation")
)

// Input validation errors. Each wraps ErrInvalidInput.
var (
	ErrUserIDRequired         = fmt.Errorf("%w: user id is required", ErrInvalidInput)
	ErrIdempotencyKeyRequired = fmt.Errorf("%w: idempotency key is required", ErrInvalidInput)
	ErrInvalidPeriod          = fmt.Errorf("%w: period must be YYYY-MM", ErrInvalidInput)
	ErrInvalidKwh             = fmt.Errorf("%w: kwh must be a finite number >= 0", ErrInvalidInput)
	ErrInvalidDistance        = fmt.Errorf("%w: distance must be a finite number >= 0", ErrInvalidInput)
	ErrInvalidOccupancy       = fmt.Errorf("%w: occupancy must be greater than 0", ErrInvalidInput)
	ErrInvalidTransportMode   = fmt.Errorf("%w: unsupported transport mode", ErrInvalidInput)
	ErrFuelTypeRequired       = fmt.Errorf("%w: fuel type is required for car and motorcycle", ErrInvalidInput)
	ErrInvalidCategory        = fmt.Errorf("%w: unsupported category", ErrInvalidInput)
	ErrInvalidDateRange       = fmt.Errorf("%w: invalid created date range", ErrInvalidInput)
	ErrInvalidPage            = fmt.Errorf("%w: page must be >= 0", ErrInvalidInput)
	ErrInvalidPageSize        = fmt.Errorf("%w: page size must be >= 0", ErrInvalidInput)
	ErrRequestRequired        = fmt.Errorf("%w: request is required", ErrInvalidInput)
)

// Seed errors
var (
	ErrSeedFileInvalid = errors.New("seed file is invalid")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsNoApplicableFactor(err error) bool {
	return errors.Is(err, ErrNoApplicableFactor)
}

func IsIdempotencyRaceInconsistency(err error) bool {
	return errors.Is(err, ErrIdempotencyRaceInconsistency)
}

func IsPersistenceFailure(err error) bool {
	return errors.Is(err, ErrPersistenceFailure)
}

func IsSeedFileInvalid(err error) bool {
	return errors.Is(err, ErrSeedFileInvalid)
}

// ErrorCode returns the machine code carried by err, or "" if it is not a BusinessError.
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
