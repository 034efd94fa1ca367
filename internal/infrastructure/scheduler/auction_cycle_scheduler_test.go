package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resell/backend/internal/application/auction"
	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// emptyRegistry implements marketplace.AdapterRegistry with no adapters
type emptyRegistry struct{}

func (emptyRegistry) GetAdapter(code marketplace.Code) (marketplace.Adapter, error) {
	return nil, marketplace.ErrAdapterNotRegistered
}
func (emptyRegistry) ListAdapters() []marketplace.Adapter        { return nil }
func (emptyRegistry) ListAuctionAdapters() []marketplace.Adapter { return nil }

// emptyListingRepo implements listing.ListingRepository with no rows
type emptyListingRepo struct{}

func (emptyListingRepo) FindBySKU(ctx context.Context, sku string) ([]listing.MarketplaceListing, error) {
	return nil, nil
}
func (emptyListingRepo) FindByMarketplaceListing(ctx context.Context, code marketplace.Code, listingID string) (*listing.MarketplaceListing, error) {
	return nil, listing.ErrListingNotFound
}
func (emptyListingRepo) FindActiveByFormat(ctx context.Context, format marketplace.ListingFormat) ([]listing.MarketplaceListing, error) {
	return nil, nil
}
func (emptyListingRepo) ListActiveSKUs(ctx context.Context) ([]string, error) { return nil, nil }
func (emptyListingRepo) Save(ctx context.Context, l *listing.MarketplaceListing) error {
	return nil
}

func newIdleAuctionService() *auction.AuctionCycleService {
	return auction.NewAuctionCycleService(emptyRegistry{}, emptyListingRepo{}, nil, newTestLogger())
}

// ---------------------------------------------------------------------------
// AuctionCycleSchedulerConfig Tests
// ---------------------------------------------------------------------------

func TestAuctionCycleSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AuctionCycleSchedulerConfig)
		wantErr bool
	}{
		{"valid default config", func(c *AuctionCycleSchedulerConfig) {}, false},
		{"invalid poll interval", func(c *AuctionCycleSchedulerConfig) { c.PollInterval = 0 }, true},
		{"invalid monitor horizon", func(c *AuctionCycleSchedulerConfig) { c.MonitorHorizon = 0 }, true},
		{"invalid run timeout", func(c *AuctionCycleSchedulerConfig) { c.RunTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAuctionCycleSchedulerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuctionCycleSchedulerConfigFromApp(t *testing.T) {
	cfg := AuctionCycleSchedulerConfigFromApp(config.AuctionConfig{
		Enabled:         true,
		PollInterval:    time.Minute,
		MonitorHorizon:  48 * time.Hour,
		RelistStrategy:  "fixed_price",
		PriceAdjustment: -25,
	})

	assert.True(t, cfg.Enabled)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 48*time.Hour, cfg.MonitorHorizon)
	assert.Equal(t, auction.StrategyFixedPrice, cfg.RelistOptions.Strategy)
	assert.True(t, cfg.RelistOptions.PriceAdjustment.Equal(decimal.NewFromInt(-25)))
}

func TestAuctionCycleSchedulerConfigFromApp_ZeroDurationsKeepDefaults(t *testing.T) {
	cfg := AuctionCycleSchedulerConfigFromApp(config.AuctionConfig{Enabled: true})

	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.MonitorHorizon)
	assert.Equal(t, auction.StrategyAuction, cfg.RelistOptions.Strategy)
}

func TestParseRelistStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want auction.RelistStrategy
	}{
		{"auction", auction.StrategyAuction},
		{"fixed_price", auction.StrategyFixedPrice},
		{"FIXED_PRICE", auction.StrategyFixedPrice},
		{"abandon", auction.StrategyAbandon},
		{"", auction.StrategyAuction},
		{"bonfire", auction.StrategyAuction},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRelistStrategy(tt.in))
		})
	}
}

// ---------------------------------------------------------------------------
// AuctionCycleScheduler Tests
// ---------------------------------------------------------------------------

func TestNewAuctionCycleScheduler_InvalidConfig(t *testing.T) {
	scheduler, err := NewAuctionCycleScheduler(AuctionCycleSchedulerConfig{}, newIdleAuctionService(), newTestLogger())

	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, scheduler)
}

func TestAuctionCycleScheduler_StartStop(t *testing.T) {
	scheduler, err := NewAuctionCycleScheduler(DefaultAuctionCycleSchedulerConfig(), newIdleAuctionService(), newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))
	assert.True(t, scheduler.IsRunning())

	// Start again should be idempotent
	require.NoError(t, scheduler.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))
	assert.False(t, scheduler.IsRunning())

	// Stop again should be idempotent
	require.NoError(t, scheduler.Stop(stopCtx))
}

func TestAuctionCycleScheduler_DisabledDoesNotRun(t *testing.T) {
	cfg := DefaultAuctionCycleSchedulerConfig()
	cfg.Enabled = false
	scheduler, err := NewAuctionCycleScheduler(cfg, newIdleAuctionService(), newTestLogger())
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.False(t, scheduler.IsRunning())

	err = scheduler.TriggerCycle(context.Background())
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestAuctionCycleScheduler_TriggerCycle(t *testing.T) {
	scheduler, err := NewAuctionCycleScheduler(DefaultAuctionCycleSchedulerConfig(), newIdleAuctionService(), newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	assert.Nil(t, scheduler.LastReport())

	require.NoError(t, scheduler.TriggerCycle(ctx))

	report := scheduler.LastReport()
	require.NotNil(t, report)
	assert.Zero(t, report.Processed)
	assert.False(t, report.CompletedAt.IsZero())

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))
}
