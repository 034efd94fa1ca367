package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// mockReconcileExecutor implements ReconcileExecutor for testing
type mockReconcileExecutor struct {
	executeFunc func(ctx context.Context, job *ReconcileJob) error
	execCount   int32
}

func (m *mockReconcileExecutor) Execute(ctx context.Context, job *ReconcileJob) error {
	atomic.AddInt32(&m.execCount, 1)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, job)
	}
	job.Complete(true, 0, 0)
	return nil
}

func (m *mockReconcileExecutor) executions() int {
	return int(atomic.LoadInt32(&m.execCount))
}

// staticSKUSource implements SKUSource for testing
type staticSKUSource struct {
	skus []string
	err  error
}

func (s *staticSKUSource) ListActiveSKUs(ctx context.Context) ([]string, error) {
	return s.skus, s.err
}

func newTestScheduler(t *testing.T, config ReconcileSchedulerConfig, executor ReconcileExecutor, skus SKUSource) *ReconcileScheduler {
	t.Helper()
	scheduler, err := NewReconcileScheduler(config, executor, skus, newTestLogger())
	require.NoError(t, err)
	return scheduler
}

// quietConfig disables the periodic sweep so tests control job submission
func quietConfig() ReconcileSchedulerConfig {
	cfg := DefaultReconcileSchedulerConfig()
	cfg.Enabled = false
	return cfg
}

// ---------------------------------------------------------------------------
// ReconcileJob Tests
// ---------------------------------------------------------------------------

func TestNewReconcileJob(t *testing.T) {
	job := NewReconcileJob("CAM-1", 3)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, "CAM-1", job.SKU)
	assert.Equal(t, ReconcileJobStatusPending, job.Status)
	assert.Equal(t, 3, job.MaxRetries)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestReconcileJob_Start(t *testing.T) {
	job := NewReconcileJob("CAM-1", 3)
	job.Error = "previous error"

	job.Start()

	assert.Equal(t, ReconcileJobStatusRunning, job.Status)
	assert.NotNil(t, job.StartedAt)
	assert.Empty(t, job.Error)
}

func TestReconcileJob_Complete(t *testing.T) {
	tests := []struct {
		name       string
		consistent bool
		corrected  int
		failed     int
		wantStatus ReconcileJobStatus
	}{
		{"already consistent", true, 0, 0, ReconcileJobStatusSuccess},
		{"all corrected", false, 2, 0, ReconcileJobStatusSuccess},
		{"partially corrected", false, 1, 1, ReconcileJobStatusPartial},
		{"nothing corrected", false, 0, 2, ReconcileJobStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewReconcileJob("CAM-1", 3)
			job.Start()

			job.Complete(tt.consistent, tt.corrected, tt.failed)

			assert.Equal(t, tt.wantStatus, job.Status)
			assert.Equal(t, tt.consistent, job.WasConsistent)
			assert.Equal(t, tt.corrected, job.Corrected)
			assert.Equal(t, tt.failed, job.FailedTargets)
			assert.NotNil(t, job.CompletedAt)
		})
	}
}

func TestReconcileJob_Fail(t *testing.T) {
	job := NewReconcileJob("CAM-1", 3)
	job.Start()

	job.Fail("connection timeout")

	assert.Equal(t, ReconcileJobStatusFailed, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, "connection timeout", job.Error)
}

func TestReconcileJob_ShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		status     ReconcileJobStatus
		retryCount int
		maxRetries int
		expected   bool
	}{
		{"Failed with retries available", ReconcileJobStatusFailed, 0, 3, true},
		{"Failed max retries reached", ReconcileJobStatusFailed, 3, 3, false},
		{"Success should not retry", ReconcileJobStatusSuccess, 0, 3, false},
		{"Partial should not retry", ReconcileJobStatusPartial, 0, 3, false},
		{"Running should not retry", ReconcileJobStatusRunning, 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &ReconcileJob{
				Status:     tt.status,
				RetryCount: tt.retryCount,
				MaxRetries: tt.maxRetries,
			}
			assert.Equal(t, tt.expected, job.ShouldRetry())
		})
	}
}

func TestReconcileJob_ScheduleRetry_ExponentialBackoff(t *testing.T) {
	job := NewReconcileJob("CAM-1", 5)
	job.Status = ReconcileJobStatusFailed
	baseDelay := time.Minute

	job.ScheduleRetry(baseDelay)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, ReconcileJobStatusPending, job.Status)
	require.NotNil(t, job.NextRetryAt)
	firstDelay := time.Until(*job.NextRetryAt)
	assert.True(t, firstDelay > 50*time.Second && firstDelay <= time.Minute+time.Second)

	job.Status = ReconcileJobStatusFailed
	job.ScheduleRetry(baseDelay)
	assert.Equal(t, 2, job.RetryCount)
	secondDelay := time.Until(*job.NextRetryAt)
	assert.True(t, secondDelay > 110*time.Second && secondDelay <= 2*time.Minute+time.Second)
}

// ---------------------------------------------------------------------------
// ReconcileSchedulerConfig Tests
// ---------------------------------------------------------------------------

func TestReconcileSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ReconcileSchedulerConfig)
		wantErr bool
	}{
		{"valid default config", func(c *ReconcileSchedulerConfig) {}, false},
		{"invalid check interval", func(c *ReconcileSchedulerConfig) { c.CheckInterval = 0 }, true},
		{"invalid max concurrent jobs", func(c *ReconcileSchedulerConfig) { c.MaxConcurrentJobs = 0 }, true},
		{"invalid job timeout", func(c *ReconcileSchedulerConfig) { c.JobTimeout = 0 }, true},
		{"negative retry attempts", func(c *ReconcileSchedulerConfig) { c.RetryAttempts = -1 }, true},
		{"invalid retry delay", func(c *ReconcileSchedulerConfig) { c.RetryDelay = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultReconcileSchedulerConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ReconcileScheduler Tests
// ---------------------------------------------------------------------------

func TestNewReconcileScheduler_InvalidConfig(t *testing.T) {
	scheduler, err := NewReconcileScheduler(ReconcileSchedulerConfig{}, &mockReconcileExecutor{}, &staticSKUSource{}, newTestLogger())

	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, scheduler)
}

func TestReconcileScheduler_StartStop(t *testing.T) {
	scheduler := newTestScheduler(t, quietConfig(), &mockReconcileExecutor{}, &staticSKUSource{})
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

func TestReconcileScheduler_ScheduleSKU_NotRunning(t *testing.T) {
	scheduler := newTestScheduler(t, quietConfig(), &mockReconcileExecutor{}, &staticSKUSource{})

	err := scheduler.ScheduleSKU("CAM-1")

	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestReconcileScheduler_ScheduleSKU_Processes(t *testing.T) {
	executor := &mockReconcileExecutor{}
	scheduler := newTestScheduler(t, quietConfig(), executor, &staticSKUSource{})

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	require.NoError(t, scheduler.ScheduleSKU("CAM-1"))

	assert.Eventually(t, func() bool {
		return executor.executions() == 1
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))

	history := scheduler.GetJobHistory(10)
	require.Len(t, history, 1)
	assert.Equal(t, "CAM-1", history[0].SKU)
	assert.Equal(t, ReconcileJobStatusSuccess, history[0].Status)
	assert.True(t, history[0].WasConsistent)
}

func TestReconcileScheduler_InFlightDeduplication(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	executor := &mockReconcileExecutor{
		executeFunc: func(ctx context.Context, job *ReconcileJob) error {
			close(started)
			<-block
			job.Complete(true, 0, 0)
			return nil
		},
	}
	scheduler := newTestScheduler(t, quietConfig(), executor, &staticSKUSource{})

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	require.NoError(t, scheduler.ScheduleSKU("CAM-1"))
	<-started

	// Same SKU while the first job runs: accepted silently, not queued
	require.NoError(t, scheduler.ScheduleSKU("CAM-1"))
	close(block)

	assert.Eventually(t, func() bool {
		return len(scheduler.GetJobHistory(10)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))

	assert.Equal(t, 1, executor.executions())
}

func TestReconcileScheduler_TriggerSweep(t *testing.T) {
	executor := &mockReconcileExecutor{}
	skus := &staticSKUSource{skus: []string{"CAM-1", "CAM-2", "LENS-1"}}
	scheduler := newTestScheduler(t, quietConfig(), executor, skus)

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	require.NoError(t, scheduler.TriggerSweep(ctx))

	assert.Eventually(t, func() bool {
		return executor.executions() == 3
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))
}

func TestReconcileScheduler_SweepSourceError(t *testing.T) {
	executor := &mockReconcileExecutor{}
	skus := &staticSKUSource{err: errors.New("db down")}
	scheduler := newTestScheduler(t, quietConfig(), executor, skus)

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	// Sweep swallows the enumeration error and queues nothing
	require.NoError(t, scheduler.TriggerSweep(ctx))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, executor.executions())

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))
}

func TestReconcileScheduler_FailedJobRecorded(t *testing.T) {
	config := quietConfig()
	config.RetryAttempts = 0
	executor := &mockReconcileExecutor{
		executeFunc: func(ctx context.Context, job *ReconcileJob) error {
			return ErrReconcileFailed
		},
	}
	scheduler := newTestScheduler(t, config, executor, &staticSKUSource{})

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	require.NoError(t, scheduler.ScheduleSKU("CAM-1"))

	assert.Eventually(t, func() bool {
		history := scheduler.GetJobHistory(10)
		return len(history) == 1 && history[0].Status == ReconcileJobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))

	history := scheduler.GetJobHistory(10)
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Error, "reconcile failed")
}
