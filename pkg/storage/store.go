package storage

import (
	"context"
	"time"
)

// Archive is the write side of long-term price persistence. The live path
// never calls it directly; points are queued to a dedicated writer
// goroutine so the hot path cannot block on the database.
type Archive interface {
	SavePricePoint(ctx context.Context, pool string, t time.Time, price float64) error
}
