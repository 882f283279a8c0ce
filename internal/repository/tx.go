package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/metrics"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("cajapos/tx")

// PostgreSQL SQLSTATEs that mean "lost a race, try again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// TxRunner opens one database transaction per ledger operation.
type TxRunner struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewTxRunner(db *gorm.DB, lockTimeout time.Duration) *TxRunner {
	return &TxRunner{db: db, lockTimeout: lockTimeout}
}

// DB exposes the non-transactional handle for reads outside a unit of work.
func (r *TxRunner) DB() *gorm.DB { return r.db }

// Run executes fn inside a transaction bound to ctx. Any error returned by fn,
// a cancelled ctx or a failed commit rolls everything back. Storage-level
// races come back as apierror.Conflict; errors fn already classified pass
// through untouched.
func (r *TxRunner) Run(ctx context.Context, name string, fn func(tx *gorm.DB) error) error {
	ctx, span := tracer.Start(ctx, "tx."+name,
		trace.WithAttributes(attribute.String("db.system", r.db.Dialector.Name())))
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock_timeout: %w", err)
			}
		}
		return fn(tx)
	})
	resultado := "ok"
	if err != nil {
		err = Classify(err)
		resultado = string(apierror.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, resultado)
	}
	metrics.TxTotal.WithLabelValues(name, resultado).Inc()
	return err
}

// Classify maps storage errors that signal contention to apierror.Conflict.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apierror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apierror.Conflict("registro duplicado por una operacion concurrente", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return apierror.Conflict("conflicto de concurrencia, reintente", err)
		}
	}
	// sqlite reports lock contention only through the message text
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return apierror.Conflict("conflicto de concurrencia, reintente", err)
	}
	return err
}
