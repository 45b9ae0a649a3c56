// Package cache is the local snapshot store and offline write queue.
//
// It holds last-known-good copies of customers, readings and discounts,
// plus the pending-write queue filled while the remote store is
// unreachable. The remote store is the system of record whenever it is
// reachable; snapshots here are replaced wholesale on download, never
// merged. Writes that exhaust their retry budget move to a dead-letter
// table for manual review instead of being discarded.
package cache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tirta-backend/models"
)

// Queue entry kinds, in upload dependency order.
const (
	KindCustomer = "customer"
	KindReading  = "reading"
	KindDiscount = "discount"
)

// QueueEntry is one pending local write awaiting upload.
type QueueEntry struct {
	Id        string    `json:"id"`
	Kind      string    `json:"kind"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
}

// DeadLetter is a queue entry that failed upload too many times.
type DeadLetter struct {
	QueueEntry
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// Store is a SQLite-backed cache. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the cache database. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// One connection for the whole store: a ":memory:" database lives on
	// its connection, and the file store serializes through the mutex anyway.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rt TEXT NOT NULL,
		phone TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_customers_rt ON customers (rt);

	CREATE TABLE IF NOT EXISTS readings (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		reading INTEGER NOT NULL,
		date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_readings_customer_date ON readings (customer_id, date);

	CREATE TABLE IF NOT EXISTS discounts (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		discount_percentage REAL NOT NULL DEFAULT 0,
		discount_amount INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		discount_month TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_by TEXT,
		created_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_discounts_customer_month ON discounts (customer_id, discount_month);

	CREATE TABLE IF NOT EXISTS pending_queue (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		data BLOB NOT NULL,
		ts INTEGER NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS dead_letters (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		data BLOB NOT NULL,
		ts INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		reason TEXT,
		failed_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// ---- Customer snapshot

// ReplaceCustomers swaps the whole customer snapshot atomically.
func (s *Store) ReplaceCustomers(customers []models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM customers`); err != nil {
			return err
		}
		for _, c := range customers {
			if _, err := tx.Exec(
				`INSERT INTO customers (id, name, rt, phone, active) VALUES (?, ?, ?, ?, ?)`,
				c.Id, c.Name, c.RT, c.Phone, boolInt(c.Active),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertCustomer refreshes one snapshot row after a confirmed remote write.
func (s *Store) UpsertCustomer(c models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO customers (id, name, rt, phone, active) VALUES (?, ?, ?, ?, ?)`,
		c.Id, c.Name, c.RT, c.Phone, boolInt(c.Active),
	)
	return err
}

func (s *Store) Customers() ([]models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT id, name, rt, phone, active FROM customers ORDER BY rt, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		var c models.Customer
		var active int
		if err := rows.Scan(&c.Id, &c.Name, &c.RT, &c.Phone, &active); err != nil {
			return nil, err
		}
		c.Active = active != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ClearCustomers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM customers`)
	return err
}

// ---- Reading snapshot

func (s *Store) ReplaceReadings(readings []models.MeterReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM readings`); err != nil {
			return err
		}
		for _, r := range readings {
			if _, err := tx.Exec(
				`INSERT INTO readings (id, customer_id, reading, date) VALUES (?, ?, ?, ?)`,
				r.Id, r.CustomerId, r.Reading, r.Date,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UpsertReading(r models.MeterReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO readings (id, customer_id, reading, date) VALUES (?, ?, ?, ?)`,
		r.Id, r.CustomerId, r.Reading, r.Date,
	)
	return err
}

func (s *Store) Readings() ([]models.MeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReadings(`SELECT id, customer_id, reading, date FROM readings ORDER BY date`)
}

func (s *Store) ReadingsByCustomer(customerId string) ([]models.MeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReadings(
		`SELECT id, customer_id, reading, date FROM readings WHERE customer_id = ? ORDER BY date`,
		customerId,
	)
}

func (s *Store) queryReadings(query string, args ...any) ([]models.MeterReading, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MeterReading
	for rows.Next() {
		var r models.MeterReading
		if err := rows.Scan(&r.Id, &r.CustomerId, &r.Reading, &r.Date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteReading(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM readings WHERE id = ?`, id)
	return err
}

func (s *Store) ClearReadings() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM readings`)
	return err
}

// ---- Discount snapshot

func (s *Store) ReplaceDiscounts(discounts []models.CustomerDiscount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM discounts`); err != nil {
			return err
		}
		for _, d := range discounts {
			if err := insertDiscount(tx, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UpsertDiscount(d models.CustomerDiscount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO discounts
		 (id, customer_id, discount_percentage, discount_amount, reason, discount_month, is_active, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Id, d.CustomerId, d.DiscountPercentage, d.DiscountAmount,
		d.Reason, d.DiscountMonth, boolInt(d.IsActive), d.CreatedBy,
		d.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func insertDiscount(tx *sql.Tx, d models.CustomerDiscount) error {
	_, err := tx.Exec(
		`INSERT INTO discounts
		 (id, customer_id, discount_percentage, discount_amount, reason, discount_month, is_active, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Id, d.CustomerId, d.DiscountPercentage, d.DiscountAmount,
		d.Reason, d.DiscountMonth, boolInt(d.IsActive), d.CreatedBy,
		d.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) Discounts() ([]models.CustomerDiscount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryDiscounts(`SELECT id, customer_id, discount_percentage, discount_amount, reason, discount_month, is_active, created_by, created_at FROM discounts`)
}

func (s *Store) DiscountsByCustomer(customerId string) ([]models.CustomerDiscount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryDiscounts(
		`SELECT id, customer_id, discount_percentage, discount_amount, reason, discount_month, is_active, created_by, created_at
		 FROM discounts WHERE customer_id = ?`,
		customerId,
	)
}

// ActiveDiscount returns the single active discount for a customer and
// month, or nil when none exists.
func (s *Store) ActiveDiscount(customerId, month string) (*models.CustomerDiscount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, err := s.queryDiscounts(
		`SELECT id, customer_id, discount_percentage, discount_amount, reason, discount_month, is_active, created_by, created_at
		 FROM discounts WHERE customer_id = ? AND discount_month = ? AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`,
		customerId, month,
	)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (s *Store) queryDiscounts(query string, args ...any) ([]models.CustomerDiscount, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CustomerDiscount
	for rows.Next() {
		var d models.CustomerDiscount
		var active int
		var createdAt sql.NullString
		if err := rows.Scan(&d.Id, &d.CustomerId, &d.DiscountPercentage, &d.DiscountAmount,
			&d.Reason, &d.DiscountMonth, &active, &d.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		d.IsActive = active != 0
		if createdAt.Valid {
			if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
				d.CreatedAt = t
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ClearDiscounts() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM discounts`)
	return err
}

// ---- Pending-write queue

// Enqueue appends a pending write. Re-enqueueing the same id overwrites
// the payload and resets nothing else.
func (s *Store) Enqueue(e QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO pending_queue (id, kind, data, ts, attempts) VALUES (?, ?, ?, ?, ?)`,
		e.Id, e.Kind, e.Data, e.Timestamp.UnixNano(), e.Attempts,
	)
	return err
}

// Pending returns queued writes oldest first.
func (s *Store) Pending() ([]QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT id, kind, data, ts, attempts FROM pending_queue ORDER BY ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueueEntry
	for rows.Next() {
		var e QueueEntry
		var ts int64
		if err := rows.Scan(&e.Id, &e.Kind, &e.Data, &ts, &e.Attempts); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) QueueDepth() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_queue`).Scan(&n)
	return n, err
}

// RemoveQueued drops a queue entry after a successful upload.
func (s *Store) RemoveQueued(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM pending_queue WHERE id = ?`, id)
	return err
}

// BumpAttempts increments the failure count and returns the new value.
func (s *Store) BumpAttempts(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`UPDATE pending_queue SET attempts = attempts + 1 WHERE id = ?`, id); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRow(`SELECT attempts FROM pending_queue WHERE id = ?`, id).Scan(&n)
	return n, err
}

func (s *Store) ClearQueue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM pending_queue`)
	return err
}

// ---- Dead letters

// DeadLetter moves a queue entry into the dead-letter table.
func (s *Store) DeadLetter(e QueueEntry, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO dead_letters (id, kind, data, ts, attempts, reason, failed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.Id, e.Kind, e.Data, e.Timestamp.UnixNano(), e.Attempts,
			reason, time.Now().UnixNano(),
		); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM pending_queue WHERE id = ?`, e.Id)
		return err
	})
}

func (s *Store) DeadLetters() ([]DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT id, kind, data, ts, attempts, reason, failed_at FROM dead_letters ORDER BY failed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var d DeadLetter
		var ts, failedAt int64
		if err := rows.Scan(&d.Id, &d.Kind, &d.Data, &ts, &d.Attempts, &d.Reason, &failedAt); err != nil {
			return nil, err
		}
		d.Timestamp = time.Unix(0, ts)
		d.FailedAt = time.Unix(0, failedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeadLetterCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM dead_letters`).Scan(&n)
	return n, err
}

// ---- Sync metadata

func (s *Store) LastSync() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'last_sync'`).Scan(&v); err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) SetLastSync(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('last_sync', ?)`,
		t.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ---- helpers

func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
