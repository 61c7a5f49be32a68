package dto

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"casino-engine/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func bind(body string, v any) error {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
	c.Request.Header.Set("Content-Type", "application/json")
	return c.ShouldBindJSON(v)
}

func TestParseCurrency(t *testing.T) {
	assert.Equal(t, domain.CurrencyCash, ParseCurrency(" CASH "))
	assert.Equal(t, domain.CurrencyCredits, ParseCurrency("Credits"))
	assert.False(t, ParseCurrency("gold").Valid())
}

func TestPlayRequest_Binding(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{"valid", `{"bet_amount":100,"currency":"credits","choice":{"side":"heads"}}`, true},
		{"no choice", `{"bet_amount":100,"currency":"cash"}`, true},
		{"upper case currency", `{"bet_amount":100,"currency":"CASH"}`, true},
		{"unknown currency", `{"bet_amount":100,"currency":"gold"}`, false},
		{"zero bet", `{"bet_amount":0,"currency":"cash"}`, false},
		{"negative bet", `{"bet_amount":-5,"currency":"cash"}`, false},
		{"missing currency", `{"bet_amount":100}`, false},
		{"malformed", `{"bet_amount":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req PlayRequest
			err := bind(tt.body, &req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExchangeRequest_Binding(t *testing.T) {
	var req ExchangeRequest
	assert.NoError(t, bind(`{"from":"cash","amount":500}`, &req))
	assert.Equal(t, int64(500), req.Amount)

	assert.Error(t, bind(`{"from":"cash","amount":0}`, &ExchangeRequest{}))
	assert.Error(t, bind(`{"from":"euro","amount":5}`, &ExchangeRequest{}))
}

func TestNewRateResponse(t *testing.T) {
	resp := NewRateResponse(domain.ExchangeRate{Current: 10.2, Base: 10, FluctuationRange: 0.05})
	assert.Equal(t, 9.5, resp.Low)
	assert.Equal(t, 10.5, resp.High)
	assert.Equal(t, 10.2, resp.Rate)
}
