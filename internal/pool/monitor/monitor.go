// Package monitor wires the pool-monitoring pipeline together: historical
// seed, live feed, decode, price series, and the optional Postgres archive.
// It also exposes the read API the presentation layer polls.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ssanin82/uniswap-pool-monitor/config"
	"github.com/ssanin82/uniswap-pool-monitor/internal/pool/backfill"
	"github.com/ssanin82/uniswap-pool-monitor/internal/pool/series"
	"github.com/ssanin82/uniswap-pool-monitor/internal/pool/stream"
	"github.com/ssanin82/uniswap-pool-monitor/pkg/indexer"
	"github.com/ssanin82/uniswap-pool-monitor/pkg/storage"
	"github.com/ssanin82/uniswap-pool-monitor/pkg/storage/postgres"
	"github.com/ssanin82/uniswap-pool-monitor/pkg/uniswap"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type archiveItem struct {
	time  time.Time
	price float64
}

// Monitor owns one pool's pipeline: a single live subscription, a single
// series buffer, and the timers that maintain it. Constructed from config,
// started and stopped explicitly; no ambient globals.
type Monitor struct {
	cfg     *config.Config
	logger  *zap.Logger
	poolHex string

	buf      *series.Buffer
	feed     *uniswap.FeedClient
	counters *stream.Counters
	seeder   *backfill.Loader

	archive   storage.Archive
	archiveCh chan archiveItem
	pg        *postgres.PostgresClient

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(cfg *config.Config, logger *zap.Logger) (*Monitor, error) {
	pool := common.HexToAddress(cfg.Pool.Address)
	converter := uniswap.NewPriceConverter(
		cfg.Pool.Token0Decimals, cfg.Pool.Token1Decimals, cfg.Pool.QuoteToken0)
	decoder := uniswap.NewLogDecoder(pool, converter)

	mode := series.BoundByWindow
	if cfg.Series.Mode == "count" {
		mode = series.BoundByCount
	}
	buf := series.New(series.Options{
		Mode:      mode,
		Window:    cfg.Series.Window,
		MaxPoints: cfg.Series.MaxPoints,
		Coalesce:  cfg.Series.CoalesceInterval,
	})

	m := &Monitor{
		cfg:      cfg,
		logger:   logger,
		poolHex:  pool.Hex(),
		buf:      buf,
		counters: &stream.Counters{},
	}

	var sink func(uniswap.SwapEvent)
	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			return nil, fmt.Errorf("init price archive: %w", err)
		}
		m.pg = client
		m.archive = client
		m.archiveCh = make(chan archiveItem, 256)
		sink = m.enqueueArchive
	}

	handler := stream.MakeMessageHandler(logger, decoder, buf, m.counters, sink)

	m.feed = uniswap.NewFeedClient(uniswap.FeedOptions{
		URL:           cfg.Feed.URL,
		DialTimeout:   cfg.Feed.DialTimeout,
		PingInterval:  cfg.Feed.PingInterval,
		ReconnectBase: cfg.Feed.ReconnectBase,
		ReconnectMax:  cfg.Feed.ReconnectMax,
	}, pool, logger)
	m.feed.SetMessageHandler(handler)

	if cfg.Historical.BaseURL != "" {
		client := indexer.NewClient(
			cfg.Historical.BaseURL,
			cfg.Historical.ResolveAPIKey(cfg.Log.Environment),
			cfg.Historical.Timeout,
		)
		m.seeder = &backfill.Loader{
			Client:    client,
			Converter: converter,
			Series:    buf,
			Lookback:  cfg.Historical.Lookback,
			Timeout:   cfg.Historical.Timeout,
			Logger:    logger,
		}
	}

	return m, nil
}

// Start seeds the series, connects the live feed, and launches the
// background loops. The backfill runs before the listener so the seed is in
// place when live appends begin; its failure only logs. A failed initial
// connect is likewise not fatal — the listener keeps retrying.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.archive != nil {
		m.wg.Add(1)
		go m.archiveWorker(ctx)
	}

	if m.seeder != nil {
		_ = m.seeder.Seed(ctx)
	}

	if err := m.feed.Connect(); err != nil {
		m.logger.Warn("initial feed connect failed, retrying in background", zap.Error(err))
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.feed.Listen()
	}()

	m.wg.Add(1)
	go m.maintenanceLoop(ctx)

	return nil
}

// Stop closes the live transport, cancels pending reconnects, the in-flight
// backfill and the background loops, then waits for them to drain.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.feed.Close()
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		if m.pg != nil {
			_ = m.pg.Close()
		}
	})
}

// CurrentPrice returns the latest live price; false until the first decoded
// swap arrives.
func (m *Monitor) CurrentPrice() (float64, bool) {
	return m.buf.CurrentPrice()
}

// Snapshot returns an ordered copy of the price series.
func (m *Monitor) Snapshot() []series.Point {
	return m.buf.Snapshot()
}

// ConnectionState reports the live feed state for the status display.
func (m *Monitor) ConnectionState() uniswap.ConnectionStatus {
	return m.feed.Status()
}

// Counters exposes the drop diagnostics.
func (m *Monitor) Counters() *stream.Counters {
	return m.counters
}

// maintenanceLoop drives eviction and optional cadence gap-filling on a
// timer, independent of message arrival, and prunes the archive.
func (m *Monitor) maintenanceLoop(ctx context.Context) {
	defer m.wg.Done()

	interval := m.cfg.Series.EvictInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var retention *time.Ticker
	var retentionC <-chan time.Time
	if m.pg != nil && m.cfg.Postgres.Retention > 0 {
		retention = time.NewTicker(time.Hour)
		retentionC = retention.C
		defer retention.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.buf.Evict()
			if m.cfg.Series.CadenceFill {
				m.buf.FillGaps(m.cfg.Series.Cadence)
			}
		case <-retentionC:
			cutoff := time.Now().Add(-m.cfg.Postgres.Retention)
			if err := m.pg.DeleteOldPricePoints(ctx, cutoff); err != nil {
				m.logger.Warn("archive retention prune failed", zap.Error(err))
			}
		}
	}
}

// enqueueArchive hands a decoded swap to the archive worker without ever
// blocking the feed's hot path.
func (m *Monitor) enqueueArchive(ev uniswap.SwapEvent) {
	select {
	case m.archiveCh <- archiveItem{time: time.Now(), price: ev.Price}:
	default:
		m.logger.Warn("archive queue full, dropping point")
	}
}

func (m *Monitor) archiveWorker(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case it := <-m.archiveCh:
			insertCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := m.archive.SavePricePoint(insertCtx, m.poolHex, it.time, it.price)
			cancel()
			if err != nil {
				m.logger.Warn("failed to archive price point", zap.Error(err))
			}
		}
	}
}
