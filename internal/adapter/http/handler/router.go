package handler

import (
	"time"

	"casino-engine/internal/adapter/http/middleware"
	"casino-engine/internal/adapter/ws"
	"casino-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	GameSvc        ports.GameService
	BlackjackSvc   ports.BlackjackService
	LedgerSvc      ports.LedgerService
	EconomySvc     ports.EconomyService
	TokenSvc       ports.TokenService
	Odds           OddsReader
	WS             *ws.Server             // nil = realtime disabled
	RateLimitStore ports.RateLimitStore   // nil = rate limiting disabled
	Idempotency    ports.IdempotencyGuard // nil = Idempotency-Key ignored
	IdempotencyTTL time.Duration
	RateLimits     map[string]middleware.RateLimitRule
	BonusCooldown  time.Duration
	HealthCheckers []ports.HealthChecker
	OpenAPISpec    []byte
	Mode           string // gin mode; empty = release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	docs := NewDocsHandler(deps.OpenAPISpec)
	swagger := r.Group("/swagger")
	{
		swagger.GET("", docs.UI)
		swagger.GET("/spec", docs.Spec)
	}

	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := deps.RateLimits[group]
		if !ok || rule.Limit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	var idem gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.Idempotency != nil {
		idem = middleware.Idempotency(deps.Idempotency, deps.IdempotencyTTL, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, false, deps.Logger)
	v1 := r.Group("/api/v1")

	gameHandler := NewGameHandler(deps.GameSvc, deps.Odds)
	v1.GET("/odds", rl("api"), gameHandler.Odds)

	games := v1.Group("/games", jwtAuth)
	{
		games.GET("/stats", rl("api"), gameHandler.Stats)
		games.POST("/:game/play", rl("games"), idem, gameHandler.Play)
	}

	if deps.BlackjackSvc != nil {
		bj := NewBlackjackHandler(deps.BlackjackSvc)
		blackjack := v1.Group("/blackjack", jwtAuth)
		{
			blackjack.POST("/deal", rl("games"), idem, bj.Deal)
			blackjack.GET("/current", rl("api"), bj.Current)
			blackjack.POST("/:hand_id/hit", rl("games"), bj.Hit)
			blackjack.POST("/:hand_id/stand", rl("games"), bj.Stand)
			blackjack.POST("/:hand_id/double", rl("games"), idem, bj.Double)
		}
	}

	econ := NewEconomyHandler(deps.LedgerSvc, deps.EconomySvc, deps.BonusCooldown)
	economy := v1.Group("/economy", jwtAuth)
	{
		economy.GET("/balance", rl("api"), econ.Balance)
		economy.GET("/rate", rl("api"), econ.Rate)
		economy.GET("/transactions", rl("api"), econ.Transactions)
		economy.POST("/exchange", rl("api"), idem, econ.Exchange)
		economy.POST("/daily-bonus", rl("api"), econ.DailyBonus)
	}

	if deps.WS != nil {
		wsHandler := NewWebsocketHandler(deps.WS, deps.Logger)
		r.GET("/ws", middleware.JWTAuth(deps.TokenSvc, true, deps.Logger), wsHandler.Connect)
	}

	return r
}
