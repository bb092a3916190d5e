package monitor

import (
	"testing"
	"time"

	"github.com/ssanin82/uniswap-pool-monitor/config"
	"github.com/ssanin82/uniswap-pool-monitor/pkg/uniswap"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Pool: config.PoolConfig{
			Address:        "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
			Token0Decimals: 6,
			Token1Decimals: 18,
			QuoteToken0:    true,
		},
		Feed: config.FeedConfig{
			URL:           "ws://localhost:1", // never dialed in these tests
			DialTimeout:   time.Second,
			ReconnectBase: 10 * time.Millisecond,
			ReconnectMax:  50 * time.Millisecond,
		},
		Series: config.SeriesConfig{
			Mode:             "window",
			Window:           10 * time.Minute,
			CoalesceInterval: 30 * time.Second,
			EvictInterval:    time.Second,
		},
		Log: config.LogConfig{Level: "info", Environment: "dev"},
	}
}

// go test -v --run TestNewMonitorReadAPIDefaults
func TestNewMonitorReadAPIDefaults(t *testing.T) {
	m, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)

	_, ok := m.CurrentPrice()
	require.False(t, ok, "no price before any observation")
	require.Empty(t, m.Snapshot())
	require.Equal(t, uniswap.StateDisconnected, m.ConnectionState().State)
	require.EqualValues(t, 0, m.Counters().NotSwap.Load())
}

// go test -v --run TestNewMonitorCountMode
func TestNewMonitorCountMode(t *testing.T) {
	cfg := testConfig()
	cfg.Series.Mode = "count"
	cfg.Series.MaxPoints = 100

	m, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, m.Snapshot())
}

// go test -v --run TestNewMonitorWithoutHistorical
func TestNewMonitorWithoutHistorical(t *testing.T) {
	cfg := testConfig()
	cfg.Historical.BaseURL = ""

	m, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, m.seeder, "no backfill loader without an indexer endpoint")
}
