package middleware

import (
	"time"

	"casino-engine/internal/core/ports"
	"casino-engine/pkg/apperror"
	"casino-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// Idempotency rejects a repeated Idempotency-Key from the same player.
// Requests without the header pass through; a guard failure lets the
// request through.
func Idempotency(guard ports.IdempotencyGuard, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 128 {
			response.Error(c, apperror.Validation("Idempotency-Key too long"))
			c.Abort()
			return
		}

		scoped := callerKey(c) + ":" + key
		fresh, err := guard.Claim(c.Request.Context(), scoped, ttl)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency check failed, allowing request (degraded mode)")
			c.Next()
			return
		}
		if !fresh {
			response.Error(c, apperror.ErrDuplicateRequest())
			c.Abort()
			return
		}
		c.Next()
	}
}
