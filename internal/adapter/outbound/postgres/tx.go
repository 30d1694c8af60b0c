package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/l2laihub/creditengine/internal/utils/metrics"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type txKey struct{}

// txState is the open transaction carried in the context.
type txState struct {
	db          *gorm.DB
	afterCommit []func(ctx context.Context)
}

// dbFromContext returns the transaction handle when one is open on ctx,
// otherwise the pool handle. Either way it is bound to ctx.
func dbFromContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.db.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// TxOptions controls conflict retries of the outermost transaction.
type TxOptions struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

// txManager implements outbound.TxManagerPort on top of gorm transactions.
type txManager struct {
	db      *gorm.DB
	opts    TxOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewTxManager creates a transaction manager. Serialization failures, deadlocks
// and lock timeouts restart the whole unit of work with exponential backoff.
func NewTxManager(db *gorm.DB, opts TxOptions, m *metrics.Metrics, logger *zap.Logger) outbound.TxManagerPort {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 20 * time.Millisecond
	}
	return &txManager{db: db, opts: opts, metrics: m, logger: logger}
}

func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	var (
		hooks   []func(ctx context.Context)
		attempt int
	)
	backoff := retry.WithMaxRetries(m.opts.MaxRetries, retry.NewExponential(m.opts.BaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			m.metrics.RecordTxRetry()
		}
		st := &txState{}
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			st.db = tx
			return fn(context.WithValue(ctx, txKey{}, st))
		})
		if err != nil {
			if isRetryable(err) {
				m.logger.Debug("transaction conflict, retrying",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return retry.RetryableError(err)
			}
			return err
		}
		hooks = st.afterCommit
		return nil
	})
	if err != nil {
		if isRetryable(err) {
			return fmt.Errorf("%w: %w", outbound.ErrPersistenceConflict, err)
		}
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

func (m *txManager) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.afterCommit = append(st.afterCommit, fn)
		return
	}
	fn(ctx)
}

// Ping checks connectivity for readiness probes.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Join(errors.New("postgres unreachable"), err)
	}
	return nil
}

// Compile-time check
var _ outbound.TxManagerPort = (*txManager)(nil)
