package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"casino-engine/internal/core/ports"
	"casino-engine/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

// ==================== JWTAuth ====================

func jwtRouter(tokenSvc ports.TokenService, allowQuery bool) *gin.Engine {
	r := gin.New()
	r.GET("/test", JWTAuth(tokenSvc, allowQuery, zerolog.Nop()), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	return r
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := httptest.NewRecorder()
	jwtRouter(mocks.NewMockTokenService(ctrl), false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_003", errorCode(t, w))
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad").Return(nil, errors.New("invalid"))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w := httptest.NewRecorder()
	jwtRouter(tokenSvc, false).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("good").Return(&ports.TokenClaims{UserID: userID}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	jwtRouter(tokenSvc, false).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestJWTAuth_QueryToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("qs").Return(&ports.TokenClaims{UserID: userID}, nil)

	w := httptest.NewRecorder()
	jwtRouter(tokenSvc, true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test?token=qs", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// query tokens are ignored on ordinary routes
	w = httptest.NewRecorder()
	jwtRouter(tokenSvc, false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test?token=qs", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ==================== RequestID / Recovery ====================

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestRecovery_PanicRecovered(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()), RequestLogger(zerolog.Nop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_000", errorCode(t, w))
}

func TestRecovery_LogsStack(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.New(&buf)))
	r.GET("/games/:game/play", func(c *gin.Context) { panic("boom") })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/games/slots/play", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["panic"])
	assert.Equal(t, "/games/:game/play", line["route"])
	assert.NotEmpty(t, line["stack"])
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	player := uuid.New()
	r := gin.New()
	r.Use(RequestID(), func(c *gin.Context) { c.Set(CtxUserID, player) }, RequestLogger(zerolog.New(&buf)))
	r.POST("/games/:game/play", func(c *gin.Context) { c.Status(http.StatusPaymentRequired) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/games/plinko/play", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "plinko", line["game"])
	assert.Equal(t, "/games/:game/play", line["route"])
	assert.Equal(t, player.String(), line["user_id"])
	assert.Equal(t, float64(http.StatusPaymentRequired), line["status"])
	assert.NotEmpty(t, line["request_id"])
}

// ==================== MaxBodySize ====================

func TestMaxBodySize(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodySize(16))
	r.POST("/test", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too large")
			return
		}
		c.String(http.StatusOK, string(b))
	})
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	tests := []struct {
		name   string
		method string
		body   io.Reader
		status int
	}{
		{"within limit", http.MethodPost, bytes.NewReader([]byte("hello")), http.StatusOK},
		{"exact limit", http.MethodPost, strings.NewReader(strings.Repeat("A", 16)), http.StatusOK},
		{"exceeded", http.MethodPost, strings.NewReader(strings.Repeat("A", 100)), http.StatusRequestEntityTooLarge},
		{"no body", http.MethodGet, nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, "/test", tt.body))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

// ==================== Idempotency ====================

func idempotencyRouter(guard ports.IdempotencyGuard, userID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.POST("/play", func(c *gin.Context) {
		c.Set(CtxUserID, userID)
		c.Next()
	}, Idempotency(guard, 0, zerolog.Nop()), func(c *gin.Context) {
		c.String(http.StatusOK, "played")
	})
	return r
}

func TestIdempotency(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	guard := mocks.NewMockIdempotencyGuard(ctrl)
	key := "player:" + userID.String() + ":k1"
	gomock.InOrder(
		guard.EXPECT().Claim(gomock.Any(), key, gomock.Any()).Return(true, nil),
		guard.EXPECT().Claim(gomock.Any(), key, gomock.Any()).Return(false, nil),
	)
	r := idempotencyRouter(guard, userID)

	send := func(k string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/play", nil)
		if k != "" {
			req.Header.Set(HeaderIdempotencyKey, k)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("k1").Code)
	w := send("k1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "IDEM_001", errorCode(t, w))

	// no header, no claim
	assert.Equal(t, http.StatusOK, send("").Code)

	w = send(strings.Repeat("x", 129))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdempotency_GuardFailureAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	guard := mocks.NewMockIdempotencyGuard(ctrl)
	guard.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	req := httptest.NewRequest(http.MethodPost, "/play", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	w := httptest.NewRecorder()
	idempotencyRouter(guard, uuid.New()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdempotency_ScopedByCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockIdempotencyGuard(ctrl)
	guard.EXPECT().Claim(gomock.Any(), "ip:192.0.2.1:k1", gomock.Any()).Return(true, nil)

	r := gin.New()
	r.POST("/exchange", Idempotency(guard, time.Hour, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/exchange", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
