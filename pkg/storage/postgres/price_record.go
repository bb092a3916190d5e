package postgres

import "time"

// PricePointRecord is one archived real price observation. Placeholders are
// never written; the archive holds prices only.
type PricePointRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index: one row per pool per observation time
	Pool string    `gorm:"type:text;not null;index:idx_price_pool;index:idx_pool_time,unique"`
	Time time.Time `gorm:"not null;index:idx_pool_time,unique"`

	Price float64 `gorm:"type:numeric;not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (PricePointRecord) TableName() string {
	return "price_point"
}
