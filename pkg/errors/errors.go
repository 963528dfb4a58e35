package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrEntityNotFound          = errors.New("entity not found")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrLoanAmountExceedsLimit  = errors.New("loan amount exceeds limit")
	ErrLoanNotActive           = errors.New("loan is not active")
	ErrInvalidPaymentBreakdown = errors.New("payment breakdown does not match paid amount")
	ErrPaymentExceedsTotal     = errors.New("payment exceeds total payable amount")
	ErrConcurrentModification  = errors.New("concurrent modification")
	ErrCollateralNotAvailable  = errors.New("collateral is not available")
	ErrValidation              = errors.New("validation failed")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeEntityNotFound          = "ENTITY_NOT_FOUND"
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeLoanAmountExceedsLimit  = "LOAN_AMOUNT_EXCEEDS_LIMIT"
	ErrCodeLoanNotActive           = "LOAN_NOT_ACTIVE"
	ErrCodeInvalidPaymentBreakdown = "INVALID_PAYMENT_BREAKDOWN"
	ErrCodePaymentExceedsTotal     = "PAYMENT_EXCEEDS_TOTAL"
	ErrCodeConcurrentModification  = "CONCURRENT_MODIFICATION"
	ErrCodeCollateralNotAvailable  = "COLLATERAL_NOT_AVAILABLE"
	ErrCodeValidation              = "VALIDATION_ERROR"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
	ErrCodeCacheError              = "CACHE_ERROR"
)

// Code returns the business code carried by err, or "" when err is not a BusinessError.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry the same request unchanged.
// Only optimistic-lock conflicts qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// Wrap common errors with business context
func WrapEntityNotFound(entity, id string) *BusinessError {
	return NewBusinessError(
		ErrCodeEntityNotFound,
		fmt.Sprintf("%s with ID %s not found", entity, id),
		ErrEntityNotFound,
	)
}

func WrapInvalidTransition(current, event string, validEvents []string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot transition from %s via event %s. Valid events: [%s]",
			current, event, strings.Join(validEvents, ", ")),
		ErrInvalidTransition,
	)
}

func WrapLoanAmountExceedsLimit(amount, allowed, collateralValue string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAmountExceedsLimit,
		fmt.Sprintf("Loan amount %s exceeds maximum allowed %s (70%% of collateral value %s)",
			amount, allowed, collateralValue),
		ErrLoanAmountExceedsLimit,
	)
}

func WrapLoanNotActive(loanCode, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotActive,
		fmt.Sprintf("Loan %s is not active. Current status: %s", loanCode, status),
		ErrLoanNotActive,
	)
}

func WrapInvalidPaymentBreakdown(paid, principal, interest, penalty string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentBreakdown,
		fmt.Sprintf("Paid amount %s does not equal principal %s + interest %s + penalty %s",
			paid, principal, interest, penalty),
		ErrInvalidPaymentBreakdown,
	)
}

func WrapPaymentExceedsTotal(totalPayable, alreadyPaid, newPayment string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentExceedsTotal,
		fmt.Sprintf("Payment exceeds total payable amount. Total payable: %s, Already paid: %s, New payment: %s",
			totalPayable, alreadyPaid, newPayment),
		ErrPaymentExceedsTotal,
	)
}

func WrapConcurrentModification(entity, id string) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrentModification,
		fmt.Sprintf("%s %s was modified concurrently, retry the request", entity, id),
		ErrConcurrentModification,
	)
}

func WrapCollateralNotAvailable(collateralID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeCollateralNotAvailable,
		fmt.Sprintf("Collateral with ID %s is not available for pawn. Current status: %s", collateralID, status),
		ErrCollateralNotAvailable,
	)
}

func WrapValidation(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		message,
		ErrValidation,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
