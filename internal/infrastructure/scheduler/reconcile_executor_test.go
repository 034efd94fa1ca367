package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
)

// mockReconciler implements InventoryReconciler for testing
type mockReconciler struct {
	report       *appsync.ConsistencyReport
	checkErr     error
	results      []listing.SyncResult
	reconcileErr error

	checkedSKUs    []string
	reconciledSKUs []string
}

func (m *mockReconciler) CheckInventoryConsistency(ctx context.Context, sku string) (*appsync.ConsistencyReport, error) {
	m.checkedSKUs = append(m.checkedSKUs, sku)
	return m.report, m.checkErr
}

func (m *mockReconciler) ReconcileInventory(ctx context.Context, sku string) ([]listing.SyncResult, error) {
	m.reconciledSKUs = append(m.reconciledSKUs, sku)
	return m.results, m.reconcileErr
}

func consistentReport(sku string) *appsync.ConsistencyReport {
	return &appsync.ConsistencyReport{
		SKU:          sku,
		IsConsistent: true,
		CheckedAt:    time.Now(),
	}
}

func driftedReport(sku string) *appsync.ConsistencyReport {
	return &appsync.ConsistencyReport{
		SKU:            sku,
		IsConsistent:   false,
		ReferenceStock: 5,
		Discrepancies: []appsync.Discrepancy{
			{MarketplaceCode: marketplace.CodeMercari, ListingID: "m-1", ExpectedStock: 5, ActualStock: 3},
		},
		CheckedAt: time.Now(),
	}
}

func TestReconcileExecutor_ConsistentSkipsCorrection(t *testing.T) {
	reconciler := &mockReconciler{report: consistentReport("CAM-1")}
	executor := NewReconcileExecutor(reconciler, newTestLogger())
	job := NewReconcileJob("CAM-1", 3)

	err := executor.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, ReconcileJobStatusSuccess, job.Status)
	assert.True(t, job.WasConsistent)
	assert.Zero(t, job.Corrected)
	assert.Equal(t, []string{"CAM-1"}, reconciler.checkedSKUs)
	assert.Empty(t, reconciler.reconciledSKUs)
}

func TestReconcileExecutor_DriftTriggersCorrection(t *testing.T) {
	runID := uuid.New()
	reconciler := &mockReconciler{
		report: driftedReport("CAM-1"),
		results: []listing.SyncResult{
			listing.NewStockSyncResult(runID, "CAM-1", marketplace.CodeMercari, "m-1", 3, 5),
			listing.NewFailedSyncResult(runID, "CAM-1", marketplace.CodeYahooAuction, "y-1", listing.SyncOperationStock, "remote request failed"),
		},
	}
	executor := NewReconcileExecutor(reconciler, newTestLogger())
	job := NewReconcileJob("CAM-1", 3)

	err := executor.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, ReconcileJobStatusPartial, job.Status)
	assert.False(t, job.WasConsistent)
	assert.Equal(t, 1, job.Corrected)
	assert.Equal(t, 1, job.FailedTargets)
	assert.Equal(t, []string{"CAM-1"}, reconciler.reconciledSKUs)
}

func TestReconcileExecutor_CheckFailure(t *testing.T) {
	reconciler := &mockReconciler{checkErr: errors.New("db down")}
	executor := NewReconcileExecutor(reconciler, newTestLogger())
	job := NewReconcileJob("CAM-1", 3)

	err := executor.Execute(context.Background(), job)

	assert.ErrorIs(t, err, ErrReconcileFailed)
	assert.Empty(t, reconciler.reconciledSKUs)
}

func TestReconcileExecutor_CorrectionFailure(t *testing.T) {
	reconciler := &mockReconciler{
		report:       driftedReport("CAM-1"),
		reconcileErr: errors.New("db down"),
	}
	executor := NewReconcileExecutor(reconciler, newTestLogger())
	job := NewReconcileJob("CAM-1", 3)

	err := executor.Execute(context.Background(), job)

	assert.ErrorIs(t, err, ErrReconcileFailed)
}

func TestReconcileExecutor_TimeoutMapped(t *testing.T) {
	reconciler := &mockReconciler{checkErr: context.DeadlineExceeded}
	executor := NewReconcileExecutor(reconciler, newTestLogger())
	job := NewReconcileJob("CAM-1", 3)

	err := executor.Execute(context.Background(), job)

	assert.ErrorIs(t, err, ErrReconcileTimeout)
}
