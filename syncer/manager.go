// Package syncer reconciles the local cache with the remote store.
//
// One sync cycle runs Idle -> Downloading -> Uploading -> Idle. Offline is
// absorbing: every cycle is refused until connectivity returns, at which
// point one sync is attempted automatically. Downloads replace cached
// snapshots wholesale (the remote always wins locally); uploads drain the
// pending-write queue sequentially in dependency order: customers before
// the readings and discounts that reference them.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tirta-backend/cache"
	"tirta-backend/models"
)

type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StateUploading   State = "uploading"
	StateOffline     State = "offline"
)

// ErrOffline is returned when a sync is requested while the network
// signal is down.
var ErrOffline = errors.New("sync: offline")

const (
	defaultMaxAttempts  = 3
	defaultWindowMonths = 3
)

// uploadOrder fixes the cross-entity upload sequence so a reading never
// reaches the remote before the customer it references.
var uploadOrder = []string{cache.KindCustomer, cache.KindReading, cache.KindDiscount}

// Report summarizes one sync cycle.
type Report struct {
	Customers    int           `json:"customers_downloaded"`
	Readings     int           `json:"readings_downloaded"`
	Discounts    int           `json:"discounts_downloaded"`
	Uploaded     int           `json:"uploaded"`
	DeadLettered int           `json:"dead_lettered"`
	Errors       []string      `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Status is the manager's externally visible state.
type Status struct {
	State       State      `json:"state"`
	QueueDepth  int        `json:"queue_depth"`
	DeadLetters int        `json:"dead_letters"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
}

// Manager owns the queue drain and snapshot refresh. Construct one per
// process and inject it; it is not a package-level singleton.
type Manager struct {
	remote Remote
	store  *cache.Store

	maxAttempts  int
	windowMonths int

	mu    sync.Mutex
	state State
}

func NewManager(remote Remote, store *cache.Store) *Manager {
	return &Manager{
		remote:       remote,
		store:        store,
		maxAttempts:  defaultMaxAttempts,
		windowMonths: defaultWindowMonths,
		state:        StateIdle,
	}
}

// SetLimits overrides the per-item retry bound and the reading download
// window. Zero or negative values keep the defaults.
func (m *Manager) SetLimits(maxAttempts, windowMonths int) {
	if maxAttempts > 0 {
		m.maxAttempts = maxAttempts
	}
	if windowMonths > 0 {
		m.windowMonths = windowMonths
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetOnline flips the network-availability signal. Going offline absorbs
// the manager; coming back online triggers one automatic sync attempt.
func (m *Manager) SetOnline(ctx context.Context, online bool) error {
	m.mu.Lock()
	wasOffline := m.state == StateOffline
	if !online {
		m.state = StateOffline
		m.mu.Unlock()
		return nil
	}
	if wasOffline {
		m.state = StateIdle
	}
	m.mu.Unlock()

	if wasOffline {
		_, err := m.Sync(ctx)
		return err
	}
	return nil
}

// Status reports current state plus queue and dead-letter depth.
func (m *Manager) Status() Status {
	st := Status{State: m.State()}
	if n, err := m.store.QueueDepth(); err == nil {
		st.QueueDepth = n
	}
	if n, err := m.store.DeadLetterCount(); err == nil {
		st.DeadLetters = n
	}
	if t, ok := m.store.LastSync(); ok {
		st.LastSync = &t
	}
	return st
}

// Sync runs one full cycle. Download failures leave the cache stale and
// are recorded, never fatal; the upload phase still runs. Only one cycle
// runs at a time.
func (m *Manager) Sync(ctx context.Context) (*Report, error) {
	m.mu.Lock()
	if m.state == StateOffline {
		m.mu.Unlock()
		return nil, ErrOffline
	}
	if m.state != StateIdle {
		m.mu.Unlock()
		return nil, fmt.Errorf("sync: cycle already running (%s)", m.state)
	}
	m.state = StateDownloading
	m.mu.Unlock()

	started := time.Now()
	report := &Report{}

	m.download(ctx, report)

	if !m.advance(StateUploading) {
		report.Duration = time.Since(started)
		return report, ErrOffline
	}

	m.upload(ctx, report)

	if !m.advance(StateIdle) {
		report.Duration = time.Since(started)
		return report, ErrOffline
	}

	report.Duration = time.Since(started)
	return report, nil
}

// advance moves the running cycle to next. Offline set mid-cycle wins:
// the cycle stops at the next phase boundary and the state stays Offline
// until connectivity returns.
func (m *Manager) advance(next State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateOffline {
		return false
	}
	m.state = next
	return true
}

// download refreshes the cached snapshots: all customers, readings inside
// the trailing window, and discounts when the collection is provisioned.
func (m *Manager) download(ctx context.Context, report *Report) {
	if customers, err := m.remote.FetchCustomers(ctx); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("download customers: %v", err))
	} else if err := m.store.ReplaceCustomers(customers); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("cache customers: %v", err))
	} else {
		report.Customers = len(customers)
	}

	since := time.Now().AddDate(0, -m.windowMonths, 0).Format("2006-01-02")
	if readings, err := m.remote.FetchReadings(ctx, since); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("download readings: %v", err))
	} else if err := m.store.ReplaceReadings(readings); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("cache readings: %v", err))
	} else {
		report.Readings = len(readings)
	}

	if m.remote.HasDiscounts(ctx) {
		if discounts, err := m.remote.FetchDiscounts(ctx); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("download discounts: %v", err))
		} else if err := m.store.ReplaceDiscounts(discounts); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("cache discounts: %v", err))
		} else {
			report.Discounts = len(discounts)
		}
	}

	if len(report.Errors) == 0 {
		if err := m.store.SetLastSync(time.Now()); err != nil {
			log.Printf("sync: record last sync: %v", err)
		}
	}
}

// upload drains the pending queue sequentially. A failing item is retried
// on later cycles until maxAttempts, then moved to the dead-letter table;
// it never blocks the items after it.
func (m *Manager) upload(ctx context.Context, report *Report) {
	pending, err := m.store.Pending()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("read queue: %v", err))
		return
	}

	for _, kind := range uploadOrder {
		for _, entry := range pending {
			if entry.Kind != kind {
				continue
			}
			m.uploadOne(ctx, entry, report)
		}
	}
}

func (m *Manager) uploadOne(ctx context.Context, entry cache.QueueEntry, report *Report) {
	err := m.dispatch(ctx, entry)
	if err == nil {
		if err := m.store.RemoveQueued(entry.Id); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("dequeue %s: %v", entry.Id, err))
		}
		report.Uploaded++
		return
	}

	if errors.Is(err, errUnroutable) {
		// No amount of retrying fixes a malformed or unprovisioned entry.
		if dlErr := m.store.DeadLetter(entry, err.Error()); dlErr != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("dead-letter %s: %v", entry.Id, dlErr))
			return
		}
		report.DeadLettered++
		report.Errors = append(report.Errors, fmt.Sprintf("upload %s: %v", entry.Id, err))
		return
	}

	attempts, bumpErr := m.store.BumpAttempts(entry.Id)
	if bumpErr != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("bump %s: %v", entry.Id, bumpErr))
		return
	}
	if attempts >= m.maxAttempts {
		entry.Attempts = attempts
		if dlErr := m.store.DeadLetter(entry, err.Error()); dlErr != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("dead-letter %s: %v", entry.Id, dlErr))
			return
		}
		report.DeadLettered++
	}
	report.Errors = append(report.Errors, fmt.Sprintf("upload %s (attempt %d): %v", entry.Id, attempts, err))
}

var errUnroutable = errors.New("entry cannot be dispatched")

func (m *Manager) dispatch(ctx context.Context, entry cache.QueueEntry) error {
	switch entry.Kind {
	case cache.KindCustomer:
		var c models.Customer
		if err := json.Unmarshal(entry.Data, &c); err != nil {
			return fmt.Errorf("%w: %v", errUnroutable, err)
		}
		return m.remote.UpsertCustomer(ctx, &c)
	case cache.KindReading:
		var r models.MeterReading
		if err := json.Unmarshal(entry.Data, &r); err != nil {
			return fmt.Errorf("%w: %v", errUnroutable, err)
		}
		return m.remote.UpsertReading(ctx, &r)
	case cache.KindDiscount:
		if !m.remote.HasDiscounts(ctx) {
			return fmt.Errorf("%w: discount collection not provisioned", errUnroutable)
		}
		var d models.CustomerDiscount
		if err := json.Unmarshal(entry.Data, &d); err != nil {
			return fmt.Errorf("%w: %v", errUnroutable, err)
		}
		return m.remote.UpsertDiscount(ctx, &d)
	default:
		return fmt.Errorf("%w: unknown kind %q", errUnroutable, entry.Kind)
	}
}
