// cmd/main wires every package into a running exchange process: load
// config, open the persistence store, build one engine per symbol,
// recover each from its snapshot + event log, start the persistence
// writer/snapshotter, the market-data publisher/aggregator and finally
// the ingress gateway. Structurally descended from the teacher's
// cmd/main.go (engine + net.Server wiring under a signal-driven
// context), generalized to the full SPEC_FULL.md component graph.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/broadcast"
	"fenrir/internal/common"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/gateway"
	"fenrir/internal/marketdata"
	"fenrir/internal/metrics"
	"fenrir/internal/persistence"
	"fenrir/internal/recovery"
	"fenrir/internal/router"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfgPath := os.Getenv("FENRIR_CONFIG")
	var cfg config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}
	if level, parseErr := zerolog.ParseLevel(cfg.LogLevel); parseErr == nil {
		logger = logger.Level(level)
	}

	maxQty, err := cfg.MaxQuantity()
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing max_order_quantity")
	}
	maxPrice, err := cfg.MaxPrice()
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing max_order_price")
	}
	makerFee, err := cfg.MakerFee()
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing maker_fee_rate")
	}
	takerFee, err := cfg.TakerFee()
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing taker_fee_rate")
	}
	engineCfg := engine.Config{
		MaxOrderQuantity:   maxQty,
		MaxOrderPrice:      maxPrice,
		MakerFeeRate:       makerFee,
		TakerFeeRate:       takerFee,
		TradeHistoryCap:    cfg.TradeHistoryCap,
		DepthLevelsDefault: cfg.DepthLevelsDefault,
	}

	m := metrics.New()

	var store persistence.Store
	if cfg.Postgres.DSN != "" {
		pg, err := persistence.Open(cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("opening postgres store")
		}
		defer pg.Close()
		store = pg
	} else {
		store = persistence.NewMemoryStore()
	}

	var bus broadcast.Bus
	if cfg.Redis.Addr != "" {
		bus = broadcast.NewRedisBus(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "fenrir:marketdata", m, logger)
	} else {
		bus = broadcast.NewLocalBus(64, m, logger)
	}

	queue := persistence.NewQueue(cfg.PersistenceQueueSize, nil, m)

	tradeStream := make(chan common.Trade, cfg.IngressQueueSize)

	engines := make([]*engine.Engine, 0, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		e := engine.New(symbol, engineCfg, queue, tradeStream, logger)
		engines = append(engines, e)
	}
	queue.SetOnLag(func(symbol string, lagging bool) {
		setLagging(engines, symbol, lagging)
		if lagging {
			m.PersistenceLag.WithLabelValues(symbol).Set(1)
		}
	})

	t, ctx := tomb.WithContext(ctx)

	writer := persistence.NewWriter(queue, store, cfg.PersistenceBatchSize,
		time.Duration(cfg.PersistenceBatchIntervalMS)*time.Millisecond,
		func(symbol string) {
			setLagging(engines, symbol, false)
			m.PersistenceLag.WithLabelValues(symbol).Set(0)
		}, m, logger)
	writer.Start(t)

	recoveryEngines := make([]recovery.Engine, len(engines))
	for i, e := range engines {
		recoveryEngines[i] = e
	}
	mgr := recovery.NewManager(store, logger)
	if err := mgr.RecoverAll(ctx, recoveryEngines); err != nil {
		logger.Fatal().Err(err).Msg("recovery failed, refusing to start ingress")
	}

	snapshotter := persistence.NewSnapshotter(store, time.Duration(cfg.SnapshotIntervalMS)*time.Millisecond, logger)
	for _, e := range engines {
		e := e
		snapshotter.Register(e.Symbol(), func() persistence.Snapshot {
			seq, resting := e.Snapshot()
			return persistence.Snapshot{Symbol: e.Symbol(), Sequence: seq, Resting: resting, CapturedAt: time.Now()}
		})
	}
	snapshotter.Start(t)

	aggregator := broadcast.NewAggregator(bus, time.Duration(cfg.BroadcastWindowMS)*time.Millisecond, logger)
	aggregator.Start(t)

	tradeForwarder := broadcast.NewTradeForwarder(tradeStream, bus, logger)
	tradeForwarder.Start(t)

	mdEngines := make([]marketdata.Engine, len(engines))
	for i, e := range engines {
		mdEngines[i] = e
	}
	publisher := marketdata.NewPublisher(mdEngines, aggregator, time.Millisecond, cfg.DepthLevelsDefault)
	publisher.Start(t)

	r := router.New(engines, m)
	srv := gateway.New(cfg.GatewayAddress, cfg.GatewayPort, r, bus, logger)

	t.Go(func() error {
		return srv.Run(ctx)
	})

	logger.Info().Strs("symbols", cfg.Symbols).Msg("fenrir matching engine running")

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

func setLagging(engines []*engine.Engine, symbol string, lagging bool) {
	for _, e := range engines {
		if e.Symbol() == symbol {
			e.SetLagging(lagging)
			return
		}
	}
}
