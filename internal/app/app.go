// Package app assembles the engine from configuration: storage, caches,
// services, the realtime hub and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"

	"casino-engine/config"
	"casino-engine/docs/api"
	httpHandler "casino-engine/internal/adapter/http/handler"
	"casino-engine/internal/adapter/http/middleware"
	"casino-engine/internal/adapter/mq"
	"casino-engine/internal/adapter/oddsfile"
	"casino-engine/internal/adapter/storage/memory"
	pgStorage "casino-engine/internal/adapter/storage/postgres"
	redisStorage "casino-engine/internal/adapter/storage/redis"
	"casino-engine/internal/adapter/ws"
	"casino-engine/internal/core/ports"
	"casino-engine/internal/game"
	"casino-engine/internal/hub"
	"casino-engine/internal/odds"
	"casino-engine/internal/rng"
	"casino-engine/internal/service"
	"casino-engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// App is a fully wired engine instance.
type App struct {
	Router    *gin.Engine
	Hub       *hub.Hub
	Odds      *odds.Registry
	Tokens    *service.JWTTokenService
	Ledger    *service.LedgerServiceImpl
	Economy   *service.EconomyServiceImpl
	Games     *service.GameServiceImpl
	Blackjack *service.BlackjackServiceImpl

	cfg       *config.Config
	oddsFile  *oddsfile.Loader
	publisher ports.EventPublisher
	closers   []func()
	log       zerolog.Logger
}

type ledgerStorage struct {
	users      ports.UserRepository
	txns       ports.TransactionRepository
	rounds     ports.RoundRepository
	transactor ports.DBTransactor
}

type edgeStores struct {
	rateLimit   ports.RateLimitStore
	idempotency ports.IdempotencyGuard
	rates       ports.RateStore
	stats       ports.StatsRecorder
	locker      ports.UserLocker
}

// New builds every component. Nothing runs in the background until Start.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is required")
	}
	if cfg.Economy.RoundSigningKey == "" {
		return nil, errors.New("economy.round_signing_key is required")
	}

	a := &App{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var checkers []ports.HealthChecker

	store, check, err := a.openLedgerStorage(ctx)
	if err != nil {
		return nil, err
	}
	if check != nil {
		checkers = append(checkers, check)
	}

	edge, check, err := a.openEdgeStores(ctx)
	if err != nil {
		return nil, err
	}
	if check != nil {
		checkers = append(checkers, check)
	}

	a.publisher, err = a.openPublisher()
	if err != nil {
		return nil, err
	}

	a.Odds, err = odds.NewRegistry(odds.DefaultSnapshot(), logger.Component(log, "odds"))
	if err != nil {
		return nil, fmt.Errorf("installing default odds: %w", err)
	}
	if cfg.Odds.Path != "" {
		a.oddsFile = oddsfile.NewLoader(cfg.Odds.Path, a.Odds, logger.Component(log, "odds"))
		if err := a.oddsFile.Load(); err != nil {
			return nil, err
		}
	}

	a.Hub = hub.New(hub.Config{
		ChatHistory:   cfg.Broadcast.ChatHistory,
		ChatReplay:    cfg.Broadcast.ChatReplay,
		ChatMaxLength: cfg.Broadcast.ChatMaxLength,
	}, logger.Component(log, "hub"))
	a.closers = append(a.closers, a.Hub.Shutdown)
	wsServer := ws.NewServer(a.Hub, ws.Config{
		SendBuffer:     cfg.Broadcast.SendBuffer,
		WriteTimeout:   cfg.Broadcast.WriteTimeout,
		AllowedOrigins: cfg.Broadcast.AllowedOrigins,
		MaxInbound:     cfg.Broadcast.WSMaxMessages,
		InboundWindow:  cfg.Broadcast.WSWindow,
	}, logger.Component(log, "ws"))

	provider := rng.NewCrypto()
	signer := service.NewHMACSignatureService(cfg.Economy.RoundSigningKey)
	a.Tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	a.Ledger = service.NewLedgerService(store.users, store.txns, store.rounds, store.transactor, edge.locker,
		service.StartingBalances{Cash: cfg.Economy.StartingCash, Credits: cfg.Economy.StartingCredits}, logger.Component(log, "ledger"))

	ec := cfg.Economy
	a.Economy = service.NewEconomyService(a.Ledger, edge.rates, a.Hub, provider, service.EconomyConfig{
		BaseRate:          ec.BaseExchangeRate,
		FluctuationRange:  ec.FluctuationRange,
		RateMaxStep:       ec.RateMaxStep,
		PenaltyStep:       ec.ExchangePenaltyStep,
		PenaltyCap:        ec.ExchangePenaltyCap,
		PenaltyHalfLife:   ec.PenaltyHalfLife,
		DailyBonus:        ec.DailyBonusAmount,
		DailyCash:         ec.DailyCashAmount,
		BonusCooldown:     ec.DailyBonusCooldown,
		HouseCutPercent:   ec.HouseCutPercent,
		HouseCutThreshold: ec.HouseCutThreshold,
	}, logger.Component(log, "economy"))

	a.Games = service.NewGameService(a.Odds, game.NewRegistry(), provider, a.Ledger, a.Economy, signer,
		edge.stats, a.publisher, a.Hub, ec.BigWinMultiplier, logger.Component(log, "games"))
	a.Blackjack = service.NewBlackjackService(a.Odds, provider, a.Ledger, a.Economy, signer,
		edge.stats, a.publisher, a.Hub, ec.BigWinMultiplier, cfg.Blackjack.HandTimeout, logger.Component(log, "blackjack"))

	a.Router = httpHandler.SetupRouter(httpHandler.RouterDeps{
		GameSvc:        a.Games,
		BlackjackSvc:   a.Blackjack,
		LedgerSvc:      a.Ledger,
		EconomySvc:     a.Economy,
		TokenSvc:       a.Tokens,
		Odds:           a.Odds,
		WS:             wsServer,
		RateLimitStore: edge.rateLimit,
		Idempotency:    edge.idempotency,
		IdempotencyTTL: ec.IdempotencyTTL,
		RateLimits:     middleware.RateLimitRules(cfg.RateLimit.GamesPerMinute, cfg.RateLimit.APIPerMinute),
		BonusCooldown:  ec.DailyBonusCooldown,
		HealthCheckers: checkers,
		OpenAPISpec:    api.OpenAPI,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	ok = true
	return a, nil
}

// Start launches the background loops: the exchange rate walk, the
// blackjack sweeper and the odds file watcher. They stop with ctx.
func (a *App) Start(ctx context.Context) {
	a.Economy.Restore(ctx)
	a.Economy.StartTicker(ctx, a.cfg.Economy.RateTickInterval)
	a.Blackjack.StartSweeper(ctx, a.cfg.Blackjack.SweepInterval)
	if a.oddsFile != nil && a.cfg.Odds.Watch {
		a.oddsFile.Watch()
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openLedgerStorage(ctx context.Context) (ledgerStorage, ports.HealthChecker, error) {
	switch a.cfg.Storage.Driver {
	case "memory":
		a.log.Warn().Msg("using in-memory ledger storage; balances are lost on restart")
		s := memory.NewStore()
		return ledgerStorage{
			users:      memory.NewUserRepo(s),
			txns:       memory.NewTransactionRepo(s),
			rounds:     memory.NewRoundRepo(s),
			transactor: memory.NewTransactor(s),
		}, memory.HealthProbe(s), nil

	case "postgres", "":
		pool, err := pgStorage.NewPool(ctx, a.cfg.Database, a.log)
		if err != nil {
			return ledgerStorage{}, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pgStorage.Migrate(ctx, pool, a.log); err != nil {
			return ledgerStorage{}, nil, err
		}
		return ledgerStorage{
			users:      pgStorage.NewUserRepo(pool),
			txns:       pgStorage.NewTransactionRepo(pool),
			rounds:     pgStorage.NewRoundRepo(pool),
			transactor: pgStorage.NewTransactor(pool, a.cfg.Economy.UserLockTTL),
		}, pgStorage.HealthProbe(pool), nil

	default:
		return ledgerStorage{}, nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
}

// openEdgeStores backs rate limits, idempotency keys, the stored rate and
// RTP counters with Redis when enabled, in-process maps otherwise.
func (a *App) openEdgeStores(ctx context.Context) (edgeStores, ports.HealthChecker, error) {
	if !a.cfg.Redis.Enabled {
		if a.cfg.Economy.DistributedUserLocks {
			return edgeStores{}, nil, errors.New("economy.distributed_user_locks requires redis")
		}
		return edgeStores{
			rateLimit:   memory.NewRateLimitStore(),
			idempotency: memory.NewIdempotencyGuard(),
			rates:       memory.NewRateStore(),
			stats:       memory.NewStatsStore(),
		}, nil, nil
	}

	rdb, err := redisStorage.NewClient(ctx, a.cfg.Redis, a.log)
	if err != nil {
		return edgeStores{}, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	stores := edgeStores{
		rateLimit:   redisStorage.NewRateLimitStore(rdb),
		idempotency: redisStorage.NewIdempotencyGuard(rdb),
		rates:       redisStorage.NewRateStore(rdb),
		stats:       redisStorage.NewStatsStore(rdb),
	}
	if a.cfg.Economy.DistributedUserLocks {
		stores.locker = redisStorage.NewUserLock(rdb, a.cfg.Economy.UserLockTTL)
	}
	return stores, redisStorage.HealthProbe(rdb), nil
}

func (a *App) openPublisher() (ports.EventPublisher, error) {
	if !a.cfg.Kafka.Enabled {
		return mq.NopPublisher{}, nil
	}
	producer, err := mq.NewSyncProducer(a.cfg.Kafka.Brokers)
	if err != nil {
		return nil, fmt.Errorf("connecting to kafka: %w", err)
	}
	pub := mq.NewRoundPublisher(producer, a.cfg.Kafka.Topic, logger.Component(a.log, "kafka"))
	a.closers = append(a.closers, func() {
		if err := pub.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing kafka producer")
		}
	})
	return pub, nil
}
