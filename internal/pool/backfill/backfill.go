package backfill

import (
	"context"
	"math/big"
	"time"

	"github.com/ssanin82/uniswap-pool-monitor/internal/pool/series"
	"github.com/ssanin82/uniswap-pool-monitor/pkg/indexer"
	"github.com/ssanin82/uniswap-pool-monitor/pkg/uniswap"

	"go.uber.org/zap"
)

// Loader seeds the price series with finalized history before live events
// arrive. Prices go through the same converter as the live path; diverging
// rounding between the two would be a correctness bug.
type Loader struct {
	Client    *indexer.Client
	Converter *uniswap.PriceConverter
	Series    *series.Buffer
	Lookback  time.Duration
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Seed fetches past swaps and merges them into the series. Failure is
// non-fatal: the caller continues with whatever buffer state exists, and the
// live connector starts regardless. The fetch is cancellable through ctx.
func (l *Loader) Seed(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	from := time.Now().Add(-l.Lookback)
	swaps, err := l.Client.GetSwaps(ctx, from)
	if err != nil {
		l.Logger.Warn("historical backfill failed, continuing with live data only", zap.Error(err))
		return err
	}

	points := make([]series.Point, 0, len(swaps))
	skipped := 0
	for _, s := range swaps {
		sqrtPrice, ok := new(big.Int).SetString(s.SqrtPriceX96, 10)
		if !ok {
			skipped++
			continue
		}
		price, err := l.Converter.Price(sqrtPrice)
		if err != nil {
			skipped++
			continue
		}
		points = append(points, series.Point{Time: s.Timestamp * 1000, Price: price})
	}

	l.Series.Seed(points)
	l.Logger.Info("seeded price series",
		zap.Int("points", len(points)), zap.Int("skipped", skipped),
		zap.Time("from", from))
	return nil
}
