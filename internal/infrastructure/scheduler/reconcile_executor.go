package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/listing"
)

// InventoryReconciler is the slice of the sync service the executor needs
type InventoryReconciler interface {
	// CheckInventoryConsistency reports stock drift for one SKU without mutating anything
	CheckInventoryConsistency(ctx context.Context, sku string) (*sync.ConsistencyReport, error)

	// ReconcileInventory pushes the reference stock to every divergent listing
	ReconcileInventory(ctx context.Context, sku string) ([]listing.SyncResult, error)
}

// ---------------------------------------------------------------------------
// ReconcileExecutorImpl
// ---------------------------------------------------------------------------

// ReconcileExecutorImpl implements ReconcileExecutor. It checks one SKU for
// drift and, when the listings disagree, pushes the reference stock back out
// through the audited sync path.
type ReconcileExecutorImpl struct {
	reconciler InventoryReconciler
	logger     *zap.Logger
}

// NewReconcileExecutor creates a new reconcile executor
func NewReconcileExecutor(reconciler InventoryReconciler, logger *zap.Logger) *ReconcileExecutorImpl {
	return &ReconcileExecutorImpl{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Execute checks the job's SKU for stock drift and corrects it
func (e *ReconcileExecutorImpl) Execute(ctx context.Context, job *ReconcileJob) error {
	report, err := e.reconciler.CheckInventoryConsistency(ctx, job.SKU)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrReconcileTimeout
		}
		return fmt.Errorf("%w: %v", ErrReconcileFailed, err)
	}

	if report.IsConsistent {
		job.Complete(true, 0, 0)
		return nil
	}

	e.logger.Info("Inventory drift detected",
		zap.String("job_id", job.ID.String()),
		zap.String("sku", job.SKU),
		zap.Int("reference_stock", report.ReferenceStock),
		zap.Int("discrepancies", len(report.Discrepancies)),
	)

	results, err := e.reconciler.ReconcileInventory(ctx, job.SKU)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrReconcileTimeout
		}
		return fmt.Errorf("%w: %v", ErrReconcileFailed, err)
	}

	corrected := 0
	failed := 0
	for i := range results {
		if results[i].Success {
			corrected++
		} else {
			failed++
		}
	}

	job.Complete(false, corrected, failed)
	return nil
}

// Ensure ReconcileExecutorImpl implements ReconcileExecutor
var _ ReconcileExecutor = (*ReconcileExecutorImpl)(nil)
