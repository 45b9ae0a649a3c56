package syncer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"tirta-backend/cache"
	"tirta-backend/models"
)

// Submit* is the single write path for domain mutations. When the remote
// accepts the write, the cached snapshot row is refreshed in place; when
// the manager is offline or the remote refuses, the write is queued for
// the next sync cycle. The returned bool reports whether it was queued.
//
// The queue entry id is the entity id, so editing the same record twice
// while offline keeps only the latest state.

func (m *Manager) SubmitCustomer(ctx context.Context, c *models.Customer) (bool, error) {
	if m.State() != StateOffline {
		err := m.remote.UpsertCustomer(ctx, c)
		if err == nil {
			return false, m.store.UpsertCustomer(*c)
		}
		log.Printf("sync: customer %s upsert failed, queueing: %v", c.Id, err)
	}
	if err := m.store.UpsertCustomer(*c); err != nil {
		return false, err
	}
	return true, m.enqueue(cache.KindCustomer, c.Id, c)
}

func (m *Manager) SubmitReading(ctx context.Context, r *models.MeterReading) (bool, error) {
	if m.State() != StateOffline {
		err := m.remote.UpsertReading(ctx, r)
		if err == nil {
			return false, m.store.UpsertReading(*r)
		}
		log.Printf("sync: reading %s upsert failed, queueing: %v", r.Id, err)
	}
	if err := m.store.UpsertReading(*r); err != nil {
		return false, err
	}
	return true, m.enqueue(cache.KindReading, r.Id, r)
}

func (m *Manager) SubmitDiscount(ctx context.Context, d *models.CustomerDiscount) (bool, error) {
	if m.State() != StateOffline && m.remote.HasDiscounts(ctx) {
		err := m.remote.UpsertDiscount(ctx, d)
		if err == nil {
			return false, m.store.UpsertDiscount(*d)
		}
		log.Printf("sync: discount %s upsert failed, queueing: %v", d.Id, err)
	}
	if err := m.store.UpsertDiscount(*d); err != nil {
		return false, err
	}
	return true, m.enqueue(cache.KindDiscount, d.Id, d)
}

func (m *Manager) enqueue(kind, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.store.Enqueue(cache.QueueEntry{
		Id:        id,
		Kind:      kind,
		Data:      data,
		Timestamp: time.Now(),
	})
}
