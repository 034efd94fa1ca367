package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resell/backend/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Reconcile Job Types
// ---------------------------------------------------------------------------

// ReconcileJobStatus represents the status of a reconcile job
type ReconcileJobStatus string

const (
	ReconcileJobStatusPending ReconcileJobStatus = "PENDING"
	ReconcileJobStatusRunning ReconcileJobStatus = "RUNNING"
	ReconcileJobStatusSuccess ReconcileJobStatus = "SUCCESS"
	ReconcileJobStatusPartial ReconcileJobStatus = "PARTIAL"
	ReconcileJobStatusFailed  ReconcileJobStatus = "FAILED"
)

// ReconcileJob represents one inventory reconcile run for a SKU
type ReconcileJob struct {
	ID          uuid.UUID
	SKU         string
	Status      ReconcileJobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	// Reconcile results
	WasConsistent bool
	Corrected     int
	FailedTargets int
}

// NewReconcileJob creates a new reconcile job
func NewReconcileJob(sku string, maxRetries int) *ReconcileJob {
	return &ReconcileJob{
		ID:         uuid.New(),
		SKU:        sku,
		Status:     ReconcileJobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *ReconcileJob) Start() {
	now := time.Now()
	j.Status = ReconcileJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as finished with the given correction counts
func (j *ReconcileJob) Complete(wasConsistent bool, corrected, failedTargets int) {
	now := time.Now()
	j.WasConsistent = wasConsistent
	j.Corrected = corrected
	j.FailedTargets = failedTargets
	j.CompletedAt = &now

	if failedTargets == 0 {
		j.Status = ReconcileJobStatusSuccess
	} else if corrected > 0 {
		j.Status = ReconcileJobStatusPartial
	} else {
		j.Status = ReconcileJobStatusFailed
	}
}

// Fail marks the job as failed
func (j *ReconcileJob) Fail(err string) {
	now := time.Now()
	j.Status = ReconcileJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *ReconcileJob) ShouldRetry() bool {
	return j.Status == ReconcileJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry with exponential backoff
func (j *ReconcileJob) ScheduleRetry(baseDelay time.Duration) {
	j.RetryCount++
	j.Status = ReconcileJobStatusPending
	// baseDelay * 2^(retryCount-1), capped at 30 minutes
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// ---------------------------------------------------------------------------
// Executor and SKU Source Interfaces
// ---------------------------------------------------------------------------

// ReconcileExecutor executes reconcile jobs
type ReconcileExecutor interface {
	// Execute checks one SKU for stock drift and corrects it
	Execute(ctx context.Context, job *ReconcileJob) error
}

// SKUSource enumerates the SKUs the periodic sweep should cover
type SKUSource interface {
	// ListActiveSKUs returns the distinct SKUs with at least one active listing
	ListActiveSKUs(ctx context.Context) ([]string, error)
}

// ---------------------------------------------------------------------------
// ReconcileSchedulerConfig
// ---------------------------------------------------------------------------

// ReconcileSchedulerConfig holds configuration for the reconcile scheduler
type ReconcileSchedulerConfig struct {
	// Enabled indicates if the periodic sweep is enabled
	Enabled bool
	// CheckInterval is how often the sweep enumerates active SKUs
	CheckInterval time.Duration
	// MaxConcurrentJobs is the maximum number of concurrent reconcile jobs
	MaxConcurrentJobs int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retry attempts for failed jobs
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
}

// DefaultReconcileSchedulerConfig returns default configuration
func DefaultReconcileSchedulerConfig() ReconcileSchedulerConfig {
	return ReconcileSchedulerConfig{
		Enabled:           true,
		CheckInterval:     15 * time.Minute,
		MaxConcurrentJobs: 3,
		JobTimeout:        5 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        30 * time.Second,
	}
}

// ReconcileSchedulerConfigFromApp maps the application's reconcile section
// onto a scheduler configuration
func ReconcileSchedulerConfigFromApp(rc config.ReconcileConfig) ReconcileSchedulerConfig {
	return ReconcileSchedulerConfig{
		Enabled:           rc.Enabled,
		CheckInterval:     rc.CheckInterval,
		MaxConcurrentJobs: rc.MaxConcurrent,
		JobTimeout:        rc.JobTimeout,
		RetryAttempts:     rc.RetryAttempts,
		RetryDelay:        rc.RetryDelay,
	}
}

// Validate validates the configuration
func (c *ReconcileSchedulerConfig) Validate() error {
	if c.CheckInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.RetryDelay <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// ReconcileScheduler
// ---------------------------------------------------------------------------

// ReconcileScheduler runs the periodic inventory drift sweep. A sweep
// enumerates every SKU with an active listing and queues one reconcile job
// per SKU onto a bounded worker pool, so a slow marketplace never holds up
// the rest of the catalog. SKUs with a job already in flight are skipped
// until that job settles.
type ReconcileScheduler struct {
	config   ReconcileSchedulerConfig
	executor ReconcileExecutor
	skus     SKUSource
	logger   *zap.Logger

	jobs      chan *ReconcileJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// SKUs with a queued or running job, to avoid duplicate scheduling
	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	// Job history for monitoring (in-memory, limited size)
	historyMu  sync.RWMutex
	history    []*ReconcileJob
	maxHistory int
}

// NewReconcileScheduler creates a new reconcile scheduler
func NewReconcileScheduler(config ReconcileSchedulerConfig, executor ReconcileExecutor, skus SKUSource, logger *zap.Logger) (*ReconcileScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ReconcileScheduler{
		config:     config,
		executor:   executor,
		skus:       skus,
		logger:     logger,
		jobs:       make(chan *ReconcileJob, 100),
		inFlight:   make(map[string]struct{}),
		history:    make([]*ReconcileJob, 0, 100),
		maxHistory: 100,
	}, nil
}

// Start starts the worker pool and, when enabled, the periodic sweep
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	if s.config.Enabled {
		s.wg.Add(1)
		go s.sweepLoop(ctx)
	}

	s.logger.Info("Reconcile scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Bool("sweep_enabled", s.config.Enabled),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *ReconcileScheduler) Stop(ctx context.Context) error {
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

	close(s.jobs)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reconcile scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reconcile scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *ReconcileScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// ScheduleSKU queues a reconcile job for one SKU. Returns nil without
// queueing when a job for the SKU is already in flight.
func (s *ReconcileScheduler) ScheduleSKU(sku string) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	s.inFlightMu.Lock()
	if _, busy := s.inFlight[sku]; busy {
		s.inFlightMu.Unlock()
		return nil
	}
	s.inFlight[sku] = struct{}{}
	s.inFlightMu.Unlock()

	job := NewReconcileJob(sku, s.config.RetryAttempts)
	select {
	case s.jobs <- job:
		s.logger.Debug("Reconcile job queued",
			zap.String("job_id", job.ID.String()),
			zap.String("sku", sku),
		)
		return nil
	default:
		s.clearInFlight(sku)
		return ErrJobQueueFull
	}
}

// TriggerSweep runs one sweep immediately, outside the periodic schedule
func (s *ReconcileScheduler) TriggerSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	s.sweep(ctx)
	return nil
}

// GetJobHistory returns recent job history, newest first
func (s *ReconcileScheduler) GetJobHistory(limit int) []*ReconcileJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*ReconcileJob, limit)
	copy(result, s.history[:limit])
	return result
}

// ---------------------------------------------------------------------------
// Internal machinery
// ---------------------------------------------------------------------------

// sweepLoop enumerates active SKUs every check interval
func (s *ReconcileScheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Reconcile sweep loop stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep queues one job per active SKU
func (s *ReconcileScheduler) sweep(ctx context.Context) {
	skus, err := s.skus.ListActiveSKUs(ctx)
	if err != nil {
		s.logger.Error("Reconcile sweep failed to enumerate SKUs", zap.Error(err))
		return
	}

	queued := 0
	for _, sku := range skus {
		if err := s.ScheduleSKU(sku); err != nil {
			s.logger.Warn("Failed to queue reconcile job",
				zap.String("sku", sku),
				zap.Error(err),
			)
			continue
		}
		queued++
	}

	s.logger.Info("Reconcile sweep queued",
		zap.Int("active_skus", len(skus)),
		zap.Int("queued", queued),
	)
}

// worker processes jobs from the queue
func (s *ReconcileScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Reconcile worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *ReconcileScheduler) processJob(ctx context.Context, job *ReconcileJob, workerID int) {
	// Not yet due for retry, push it back
	if job.NextRetryAt != nil && time.Now().Before(*job.NextRetryAt) {
		select {
		case s.jobs <- job:
		default:
			s.logger.Warn("Failed to re-queue reconcile job for retry",
				zap.String("job_id", job.ID.String()),
				zap.String("sku", job.SKU),
			)
			s.clearInFlight(job.SKU)
		}
		return
	}

	job.Start()
	s.logger.Debug("Processing reconcile job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("sku", job.SKU),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	err := s.executor.Execute(jobCtx, job)
	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Reconcile job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("sku", job.SKU),
			zap.Error(err),
		)

		if job.ShouldRetry() {
			job.ScheduleRetry(s.config.RetryDelay)
			s.logger.Info("Reconcile job scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.String("sku", job.SKU),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
				zap.Time("next_retry_at", *job.NextRetryAt),
			)
			select {
			case s.jobs <- job:
				// Stays in flight until the retry settles
				s.addToHistory(job)
				return
			default:
				s.logger.Warn("Failed to re-queue reconcile job for retry",
					zap.String("job_id", job.ID.String()),
					zap.String("sku", job.SKU),
				)
			}
		}

		s.clearInFlight(job.SKU)
		s.addToHistory(job)
		return
	}

	s.logger.Info("Reconcile job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("sku", job.SKU),
		zap.String("status", string(job.Status)),
		zap.Bool("was_consistent", job.WasConsistent),
		zap.Int("corrected", job.Corrected),
		zap.Int("failed_targets", job.FailedTargets),
	)

	s.clearInFlight(job.SKU)
	s.addToHistory(job)
}

func (s *ReconcileScheduler) clearInFlight(sku string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, sku)
	s.inFlightMu.Unlock()
}

// addToHistory adds a settled job to history
func (s *ReconcileScheduler) addToHistory(job *ReconcileJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*ReconcileJob{job}, s.history...)
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}
