package telemetry

import (
	"errors"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracing registers query spans on the GORM connection that backs the
// listing registry and the sync audit trail.
type DBTracing struct {
	logFullSQL bool
	logger     *zap.Logger
}

// NewDBTracing builds the database tracing registrar. Query variables are
// excluded from spans unless logFullSQL is set; listing payloads carry SKUs
// and prices that do not belong in a trace backend.
func NewDBTracing(logFullSQL bool, logger *zap.Logger) *DBTracing {
	return &DBTracing{logFullSQL: logFullSQL, logger: logger}
}

// Register installs the otelgorm plugin plus a callback that annotates
// spans with the touched table and row count, and marks failed queries.
func (t *DBTracing) Register(db *gorm.DB) error {
	opts := []otelgorm.Option{
		otelgorm.WithDBName("postgresql"),
	}
	if !t.logFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("telemetry: register otelgorm: %w", err)
	}

	if err := t.registerAnnotations(db); err != nil {
		return fmt.Errorf("telemetry: register query annotations: %w", err)
	}

	t.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", t.logFullSQL),
	)
	return nil
}

// registerAnnotations hooks every GORM operation kind after otelgorm has
// opened the span.
func (t *DBTracing) registerAnnotations(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		register func(string, func(*gorm.DB)) error
		name     string
	}{
		{cb.Create().After("gorm:create").Register, "trace_annotate:create"},
		{cb.Query().After("gorm:query").Register, "trace_annotate:query"},
		{cb.Update().After("gorm:update").Register, "trace_annotate:update"},
		{cb.Delete().After("gorm:delete").Register, "trace_annotate:delete"},
		{cb.Row().After("gorm:row").Register, "trace_annotate:row"},
		{cb.Raw().After("gorm:raw").Register, "trace_annotate:raw"},
	}
	for _, h := range hooks {
		if err := h.register(h.name, annotateSpan); err != nil {
			return err
		}
	}
	return nil
}

func annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}

	// a missing listing row is domain signal, not a query failure
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
