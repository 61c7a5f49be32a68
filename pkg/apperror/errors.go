package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)

	// RetryAfter is set when the caller may retry once it elapses.
	RetryAfter time.Duration `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err (or anything it wraps) is an AppError with code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Game validation (GAME) ----

// Validation returns a GAME_001 validation error. Nothing has been debited.
func Validation(message string) *AppError {
	return New("GAME_001", message, http.StatusBadRequest)
}

func ErrGameDisabled(game string) *AppError {
	return New("GAME_002", fmt.Sprintf("%s is currently disabled", game), http.StatusForbidden)
}

func ErrUnknownGame(game string) *AppError {
	return New("GAME_003", fmt.Sprintf("unknown game %q", game), http.StatusNotFound)
}

// ---- Ledger (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New("PAY_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidCurrency(currency string) *AppError {
	return New("PAY_003", fmt.Sprintf("unsupported currency %q", currency), http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Daily bonus (BONUS) ----

// ErrCooldownActive carries the remaining wait in the message.
func ErrCooldownActive(remaining time.Duration) *AppError {
	secs := int64(remaining.Round(time.Second) / time.Second)
	e := New("BONUS_001", fmt.Sprintf("Daily bonus available in %ds", secs), http.StatusTooManyRequests)
	e.RetryAfter = remaining
	return e
}

// ---- Blackjack (BJ) ----

func ErrHandAlreadyOpen() *AppError {
	return New("BJ_001", "A blackjack hand is already in progress", http.StatusConflict)
}

func ErrHandNotActive() *AppError {
	return New("BJ_002", "Hand not found or already resolved", http.StatusConflict)
}

func ErrIllegalAction(action string) *AppError {
	return New("BJ_003", fmt.Sprintf("%s is not allowed in the current hand state", action), http.StatusBadRequest)
}

// ---- Odds (ODDS) ----

func ErrInvalidOdds(err error) *AppError {
	return Wrap("ODDS_001", "Odds snapshot rejected", http.StatusUnprocessableEntity, err)
}

// ---- Fairness (FAIR) ----

func ErrFairnessViolation(err error) *AppError {
	return Wrap("FAIR_001", "Randomness source unavailable", http.StatusServiceUnavailable, err)
}

// ---- Concurrency (CONC) ----

func ErrConcurrencyConflict(err error) *AppError {
	return Wrap("CONC_001", "Concurrent update conflict, retry the request", http.StatusConflict, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting / Idempotency ----

func ErrRateLimitExceeded(retryAfter time.Duration) *AppError {
	e := New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
	e.RetryAfter = retryAfter
	return e
}

func ErrDuplicateRequest() *AppError {
	return New("IDEM_001", "Duplicate request", http.StatusConflict)
}

// ---- System & Infrastructure (SYS) ----

// ErrPersistence is returned when a settlement could not be durably committed.
func ErrPersistence(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	e := Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
	e.RetryAfter = time.Second
	return e
}

// InternalError wraps an internal error as a SYS_000 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", "Internal server error", http.StatusInternalServerError, err)
}
