package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient balance", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := ErrPersistence(inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("PAY_001", "test", http.StatusBadRequest).Unwrap())
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("settle: %w", ErrInsufficientFunds())

	assert.True(t, HasCode(wrapped, "PAY_001"))
	assert.False(t, HasCode(wrapped, "PAY_002"))
	assert.False(t, HasCode(errors.New("plain"), "PAY_001"))
}

func TestErrorCatalogue(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Validation", Validation("bad bet"), "GAME_001", 400},
		{"GameDisabled", ErrGameDisabled("slots"), "GAME_002", 403},
		{"UnknownGame", ErrUnknownGame("keno"), "GAME_003", 404},
		{"InsufficientFunds", ErrInsufficientFunds(), "PAY_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"InvalidCurrency", ErrInvalidCurrency("gold"), "PAY_003", 400},
		{"NotFound", ErrNotFound("User"), "PAY_004", 404},
		{"CooldownActive", ErrCooldownActive(time.Hour), "BONUS_001", 429},
		{"HandAlreadyOpen", ErrHandAlreadyOpen(), "BJ_001", 409},
		{"HandNotActive", ErrHandNotActive(), "BJ_002", 409},
		{"IllegalAction", ErrIllegalAction("double"), "BJ_003", 400},
		{"InvalidOdds", ErrInvalidOdds(errors.New("rtp")), "ODDS_001", 422},
		{"FairnessViolation", ErrFairnessViolation(errors.New("entropy")), "FAIR_001", 503},
		{"ConcurrencyConflict", ErrConcurrencyConflict(errors.New("40001")), "CONC_001", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"RateLimit", ErrRateLimitExceeded(time.Second), "RATE_001", 429},
		{"DuplicateRequest", ErrDuplicateRequest(), "IDEM_001", 409},
		{"Persistence", ErrPersistence(errors.New("commit")), "SYS_001", 500},
		{"LockTimeout", ErrLockTimeout(errors.New("busy")), "SYS_002", 503},
		{"Internal", InternalError(errors.New("boom")), "SYS_000", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestErrCooldownActive_RemainingInMessage(t *testing.T) {
	err := ErrCooldownActive(90*time.Second + 400*time.Millisecond)
	assert.Contains(t, err.Message, "90s")
}
