package middleware

import (
	"strconv"
	"time"

	"casino-engine/internal/core/ports"
	"casino-engine/pkg/apperror"
	"casino-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule is the request budget for one route group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitRules builds the per-group budgets: "games" covers every play
// and blackjack action, "api" everything else.
func RateLimitRules(gamesPerMinute, apiPerMinute int64) map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"games": {Limit: gamesPerMinute, Window: time.Minute},
		"api":   {Limit: apiPerMinute, Window: time.Minute},
	}
}

// RateLimiter charges each request to the caller's budget for group.
// When the store is unreachable the request goes through.
func RateLimiter(store ports.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerKey(c)
		result, err := store.Allow(c.Request.Context(), caller+":"+group, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit store unavailable, request not counted")
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			log.Debug().Str("caller", caller).Str("group", group).Msg("rate limited")
			response.Error(c, apperror.ErrRateLimitExceeded(result.RetryAfter(time.Now())))
			c.Abort()
			return
		}
		c.Next()
	}
}

// callerKey is the player ID once authenticated, the client IP before.
func callerKey(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "player:" + id.String()
	}
	return "ip:" + c.ClientIP()
}
