package response

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"casino-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope. RetryAfterSeconds mirrors the
// Retry-After header for clients that only read the body.
type ErrorResponse struct {
	ErrorCode         string `json:"error_code"`
	Message           string `json:"message"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
	RequestID         string `json:"request_id"`
	Timestamp         string `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

// Error maps err onto the error envelope. An *apperror.AppError anywhere in
// the chain sets the status and code; anything else is a 500 whose details
// stay server-side.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		appErr = apperror.New("SYS_000", "Internal server error", http.StatusInternalServerError)
	}

	resp := ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: getRequestID(c),
		Timestamp: now(),
	}
	if appErr.RetryAfter > 0 {
		secs := int64(math.Ceil(appErr.RetryAfter.Seconds()))
		resp.RetryAfterSeconds = secs
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
	}
	c.JSON(appErr.HTTPStatus, resp)
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: now(),
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
