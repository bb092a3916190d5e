package postgres

import (
	"context"
	"time"

	"github.com/ssanin82/uniswap-pool-monitor/pkg/storage"

	"gorm.io/gorm/clause"
)

var _ storage.Archive = (*PostgresClient)(nil)

// InsertPricePoint archives one observation. The feed may redeliver an
// event after a reconnect, so conflicts on (pool, time) are skipped
// silently instead of erroring.
func (p *PostgresClient) InsertPricePoint(ctx context.Context, record *PricePointRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "pool"},
			{Name: "time"},
		},
		DoNothing: true,
	}).Create(record)

	return tx.Error
}

// SavePricePoint satisfies the storage.Archive interface.
func (p *PostgresClient) SavePricePoint(ctx context.Context, pool string, t time.Time, price float64) error {
	return p.InsertPricePoint(ctx, &PricePointRecord{
		Pool:  pool,
		Time:  t,
		Price: price,
	})
}

// GetPricePoints returns archived points for a pool in [from, to), ordered
// ascending by time.
func (p *PostgresClient) GetPricePoints(ctx context.Context, pool string, from, to time.Time) ([]PricePointRecord, error) {
	var points []PricePointRecord
	err := p.DB.WithContext(ctx).
		Where("pool = ? AND time >= ? AND time < ?", pool, from, to).
		Order("time ASC").
		Find(&points).Error

	if err != nil {
		return nil, err
	}
	return points, nil
}

// DeleteOldPricePoints drops archived points older than the given cutoff.
func (p *PostgresClient) DeleteOldPricePoints(ctx context.Context, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("time < ?", before).
		Delete(&PricePointRecord{}).Error
}
