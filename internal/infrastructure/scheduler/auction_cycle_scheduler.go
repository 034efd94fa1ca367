package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/resell/backend/internal/application/auction"
	"github.com/resell/backend/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// AuctionCycleSchedulerConfig
// ---------------------------------------------------------------------------

// AuctionCycleSchedulerConfig holds configuration for the auction cycle scheduler
type AuctionCycleSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// PollInterval is how often ended auctions are processed
	PollInterval time.Duration
	// MonitorHorizon is how far ahead the upcoming-end preview looks
	MonitorHorizon time.Duration
	// RunTimeout is the maximum time one poll cycle can run
	RunTimeout time.Duration
	// RelistOptions is the relist policy applied to unsold auctions
	RelistOptions auction.RelistOptions
}

// DefaultAuctionCycleSchedulerConfig returns default configuration
func DefaultAuctionCycleSchedulerConfig() AuctionCycleSchedulerConfig {
	return AuctionCycleSchedulerConfig{
		Enabled:        true,
		PollInterval:   5 * time.Minute,
		MonitorHorizon: 24 * time.Hour,
		RunTimeout:     3 * time.Minute,
		RelistOptions:  auction.DefaultRelistOptions(),
	}
}

// AuctionCycleSchedulerConfigFromApp maps the application's auction section
// onto a scheduler configuration
func AuctionCycleSchedulerConfigFromApp(ac config.AuctionConfig) AuctionCycleSchedulerConfig {
	cfg := DefaultAuctionCycleSchedulerConfig()
	cfg.Enabled = ac.Enabled
	if ac.PollInterval > 0 {
		cfg.PollInterval = ac.PollInterval
	}
	if ac.MonitorHorizon > 0 {
		cfg.MonitorHorizon = ac.MonitorHorizon
	}
	cfg.RelistOptions = auction.RelistOptions{
		Strategy:        parseRelistStrategy(ac.RelistStrategy),
		PriceAdjustment: decimal.NewFromFloat(ac.PriceAdjustment),
	}
	return cfg
}

// parseRelistStrategy maps a configuration string onto a relist strategy
func parseRelistStrategy(s string) auction.RelistStrategy {
	switch strings.ToLower(s) {
	case "fixed_price":
		return auction.StrategyFixedPrice
	case "abandon":
		return auction.StrategyAbandon
	default:
		return auction.StrategyAuction
	}
}

// Validate validates the configuration
func (c *AuctionCycleSchedulerConfig) Validate() error {
	if c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.MonitorHorizon <= 0 {
		return ErrInvalidConfig
	}
	if c.RunTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// AuctionCycleScheduler
// ---------------------------------------------------------------------------

// AuctionCycleScheduler drives the auction lifecycle on a fixed interval.
// Each cycle resolves every tracked auction that has ended (record the sale,
// relist with price decay, or abandon per policy) and then previews the
// auctions ending within the monitor horizon so operators see what is about
// to settle.
type AuctionCycleScheduler struct {
	config  AuctionCycleSchedulerConfig
	service *auction.AuctionCycleService
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Last completed batch, for the status endpoint
	lastReportMu sync.RWMutex
	lastReport   *auction.BatchRelistReport
}

// NewAuctionCycleScheduler creates a new auction cycle scheduler
func NewAuctionCycleScheduler(config AuctionCycleSchedulerConfig, service *auction.AuctionCycleService, logger *zap.Logger) (*AuctionCycleScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &AuctionCycleScheduler{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// Start starts the poll loop
func (s *AuctionCycleScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Auction cycle scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.pollLoop(ctx)

	s.logger.Info("Auction cycle scheduler started",
		zap.Duration("poll_interval", s.config.PollInterval),
		zap.Duration("monitor_horizon", s.config.MonitorHorizon),
		zap.String("relist_strategy", s.config.RelistOptions.Strategy.String()),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *AuctionCycleScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Auction cycle scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Auction cycle scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *AuctionCycleScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerCycle runs one cycle immediately, outside the periodic schedule
func (s *AuctionCycleScheduler) TriggerCycle(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	s.runCycle(ctx)
	return nil
}

// LastReport returns the most recent batch report, nil before the first cycle
func (s *AuctionCycleScheduler) LastReport() *auction.BatchRelistReport {
	s.lastReportMu.RLock()
	defer s.lastReportMu.RUnlock()
	return s.lastReport
}

// ---------------------------------------------------------------------------
// Internal machinery
// ---------------------------------------------------------------------------

func (s *AuctionCycleScheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Auction poll loop stopping")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle processes ended auctions and previews upcoming ends
func (s *AuctionCycleScheduler) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	startTime := time.Now()
	report, err := s.service.ProcessEndedAuctions(cycleCtx, s.config.RelistOptions)
	if err != nil {
		s.logger.Error("Auction cycle failed",
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err),
		)
		return
	}

	s.lastReportMu.Lock()
	s.lastReport = report
	s.lastReportMu.Unlock()

	if report.Processed > 0 {
		s.logger.Info("Auction cycle completed",
			zap.Duration("duration", time.Since(startTime)),
			zap.Int("processed", report.Processed),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)
	}

	upcoming, err := s.service.MonitorUpcomingAuctionEnds(cycleCtx, s.config.MonitorHorizon)
	if err != nil {
		s.logger.Warn("Upcoming auction preview failed", zap.Error(err))
		return
	}
	for i := range upcoming {
		s.logger.Info("Auction ending soon",
			zap.String("marketplace", upcoming[i].MarketplaceCode.String()),
			zap.String("listing_id", upcoming[i].ListingID),
			zap.String("sku", upcoming[i].SKU),
			zap.Time("end_time", upcoming[i].EndTime),
		)
	}
}
