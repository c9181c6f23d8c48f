package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/cache/memory"
	"github.com/alanyoungcy/triarb/internal/cache/redis"
	"github.com/alanyoungcy/triarb/internal/chain"
	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/crypto"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/executor"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/observability"
	"github.com/alanyoungcy/triarb/internal/scanner"
	"github.com/alanyoungcy/triarb/internal/server/handler"
)

// Engine is the part of the scanner the modes drive.
type Engine interface {
	Scan(ctx context.Context) (scanner.CycleStats, error)
	Drain(ctx context.Context) error
	Running() bool
	Status() scanner.Status
}

// Dependencies bundles everything the operating modes need. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Engine Engine

	// Optional collaborators; nil when not configured.
	LockManager   domain.LockManager
	Opportunities handler.OpportunityFeed
	Notifier      executor.Notifier
	Metrics       *observability.Metrics

	// Background holds long-running housekeeping loops (cache janitor,
	// notification cooldown pruning). Each returns when ctx is done.
	Background []func(context.Context) error

	// LockKey is the cross-instance scan lock key for this factory.
	LockKey string
}

const pairCacheJanitorInterval = time.Minute

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	factory := common.HexToAddress(cfg.Venues.FactoryAddress).Hex()
	deps := &Dependencies{LockKey: "scan:" + factory}

	wallet, err := crypto.ResolveWallet(cfg.Wallet.Address, cfg.Wallet.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: wallet: %w", err)
	}

	metrics := observability.NewMetrics()
	deps.Metrics = metrics

	// --- Chain ---
	pool, err := chain.Dial(ctx, chain.PoolConfig{
		URLs:        cfg.Chain.RPCURLs,
		CallTimeout: cfg.Chain.CallTimeout.Duration,
		RatePerSec:  cfg.Chain.RateLimitPerSec,
		Burst:       cfg.Chain.RateLimitBurst,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, pool.Close)

	facts := chain.NewFacts(pool)
	venues := make([]domain.QuoteSource, 0, len(cfg.Venues.Routers))
	for _, r := range cfg.Venues.Routers {
		venues = append(venues, chain.NewRouter(r, pool))
	}
	if len(venues) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", domain.ErrNoVenues)
	}
	balances := chain.NewBalances(pool, facts, wallet, cfg.Trade.WeightOverride)

	generator := arbitrage.NewTripleGenerator(balances, cfg.Scanner.WeightLookups, logger)
	aggregator := arbitrage.NewPriceAggregator(venues, facts, logger)
	aggregator.SetMetrics(metrics)
	evaluator := arbitrage.NewEvaluator(arbitrage.EvaluatorConfig{
		SlippageTolerance: cfg.Trade.SlippageTolerance,
		NativeDecimals:    cfg.Chain.NativeDecimals,
	})

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	notifier := notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Notifier = notifier

	coordinator := executor.NewDryRunCoordinator(notifier, cfg.Notify.Cooldown.Duration, logger)
	deps.Background = append(deps.Background, coordinator.Run)

	// --- Caches: redis when enabled, in-process otherwise ---
	var (
		pairCache domain.PairCache
		publisher domain.OpportunityPublisher
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		pairCache = redis.NewPairCache(redisClient, logger)
		bus := redis.NewOpportunityBus(redisClient, cfg.Redis.StreamMaxLen)
		publisher = bus
		deps.Opportunities = bus
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		mem := memory.NewPairCache()
		pairCache = mem
		deps.Background = append(deps.Background, func(ctx context.Context) error {
			mem.RunJanitor(ctx, pairCacheJanitorInterval)
			return nil
		})
	}

	sc, err := scanner.New(scanner.Config{
		Factory:          factory,
		PairFetchLimit:   cfg.Venues.PairFetchLimit,
		PairCacheTTL:     cfg.Venues.PairCacheTTL.Duration,
		BatchSize:        cfg.Scanner.BatchSize,
		TradeAmount:      cfg.Trade.Amount(),
		Wallet:           wallet,
		GasBufferPct:     int(cfg.Scanner.GasBufferPct),
		DefaultGasLimit:  cfg.Scanner.DefaultGasLimit,
		FallbackGasPrice: gweiToWei(cfg.Chain.FallbackGasPriceGwei),
	}, scanner.Deps{
		Discovery:  chain.NewFactory(pool, 0, logger),
		PairCache:  pairCache,
		Generator:  generator,
		Aggregator: aggregator,
		Evaluator:  evaluator,
		Facts:      facts,
		Encoder:    chain.NewSwapEncoder(wallet, cfg.Scanner.SwapDeadline.Duration),
		Executor:   coordinator,
		Publisher:  publisher,
		Pool:       scanner.NewPool(cfg.Scanner.Workers, logger),
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: scanner: %w", err)
	}
	deps.Engine = sc

	logger.Info("dependencies wired",
		slog.String("factory", factory),
		slog.String("wallet", wallet),
		slog.Int("rpc_providers", pool.Size()),
		slog.Int("venues", aggregator.Venues()),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("notifications", notifier.Enabled()),
	)

	return deps, cleanup, nil
}

func gweiToWei(gwei float64) *big.Int {
	return decimal.NewFromFloat(gwei).Shift(9).BigInt()
}
