package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrReconcileFailed is returned when an inventory reconcile run fails
	ErrReconcileFailed = errors.New("inventory reconcile failed")

	// ErrReconcileTimeout is returned when an inventory reconcile run times out
	ErrReconcileTimeout = errors.New("inventory reconcile timed out")
)
