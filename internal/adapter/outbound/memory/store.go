// Package memory provides in-process implementations of the outbound
// persistence ports. Transactions are serialized by a single mutex and
// rolled back by restoring a snapshot, which makes the store suitable for
// tests and single-instance development.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
)

type trackingKey struct {
	identifier string
	resource   string
}

type configKey struct {
	resource string
	tier     model.Tier
}

type state struct {
	balances     map[uuid.UUID]model.CreditBalance
	transactions []model.CreditTransaction
	configs      map[configKey]model.RateLimitConfig
	tracking     map[trackingKey]model.RateTracking
	usage        map[uuid.UUID]model.UsageRecord
	referrals    []model.Referral
	webhooks     []model.WebhookEvent
}

func newState() *state {
	return &state{
		balances: make(map[uuid.UUID]model.CreditBalance),
		configs:  make(map[configKey]model.RateLimitConfig),
		tracking: make(map[trackingKey]model.RateTracking),
		usage:    make(map[uuid.UUID]model.UsageRecord),
	}
}

// clone copies every table. Rows are stored by value so a shallow copy of
// each container is a full snapshot, except for pointer fields which are
// never mutated in place.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.balances {
		c.balances[k] = v
	}
	c.transactions = append(c.transactions, s.transactions...)
	for k, v := range s.configs {
		c.configs[k] = v
	}
	for k, v := range s.tracking {
		c.tracking[k] = v
	}
	for k, v := range s.usage {
		c.usage[k] = v
	}
	c.referrals = append(c.referrals, s.referrals...)
	c.webhooks = append(c.webhooks, s.webhooks...)
	return c
}

// Store holds all tables behind one lock.
type Store struct {
	mu   sync.Mutex
	data *state
}

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

type memTx struct {
	hooks []func(ctx context.Context)
}

func txFromContext(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	return tx
}

// lock takes the store lock unless ctx already runs inside a transaction,
// which holds it for its whole lifetime.
func (s *Store) lock(ctx context.Context) func() {
	if txFromContext(ctx) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// TxManager returns the transaction manager for this store.
func (s *Store) TxManager() outbound.TxManagerPort {
	return &txManager{store: s}
}

type txManager struct {
	store *Store
}

func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx := &memTx{}
	if err := m.store.run(context.WithValue(ctx, txKey{}, tx), fn); err != nil {
		return err
	}

	for _, hook := range tx.hooks {
		hook(ctx)
	}
	return nil
}

func (m *txManager) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if tx := txFromContext(ctx); tx != nil {
		tx.hooks = append(tx.hooks, fn)
		return
	}
	fn(ctx)
}

// run holds the lock for the duration of fn and restores the snapshot if fn
// fails or panics.
func (s *Store) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// Compile-time check
var _ outbound.TxManagerPort = (*txManager)(nil)
