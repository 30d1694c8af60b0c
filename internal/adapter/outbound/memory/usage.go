package memory

import (
	"context"
	"maps"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
)

type usageRecordAdapter struct {
	store *Store
}

// NewUsageRecordAdapter creates an in-memory usage record adapter.
func NewUsageRecordAdapter(s *Store) outbound.UsageRecordDatabasePort {
	return &usageRecordAdapter{store: s}
}

func (a *usageRecordAdapter) Create(ctx context.Context, record *model.UsageRecord) error {
	defer a.store.lock(ctx)()

	if _, exists := a.store.data.usage[record.ID]; exists {
		return outbound.ErrDuplicate
	}
	row := *record
	row.Metadata = maps.Clone(record.Metadata)
	a.store.data.usage[record.ID] = row
	return nil
}

func (a *usageRecordAdapter) GetByID(ctx context.Context, id uuid.UUID) (*model.UsageRecord, error) {
	defer a.store.lock(ctx)()

	return a.get(id), nil
}

func (a *usageRecordAdapter) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.UsageRecord, error) {
	defer a.store.lock(ctx)()

	return a.get(id), nil
}

func (a *usageRecordAdapter) Update(ctx context.Context, record *model.UsageRecord) error {
	defer a.store.lock(ctx)()

	if _, exists := a.store.data.usage[record.ID]; !exists {
		return nil
	}
	row := *record
	row.Metadata = maps.Clone(record.Metadata)
	a.store.data.usage[record.ID] = row
	return nil
}

func (a *usageRecordAdapter) get(id uuid.UUID) *model.UsageRecord {
	r, ok := a.store.data.usage[id]
	if !ok {
		return nil
	}
	r.Metadata = maps.Clone(r.Metadata)
	return &r
}

// Compile-time check
var _ outbound.UsageRecordDatabasePort = (*usageRecordAdapter)(nil)
