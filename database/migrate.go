package database

import (
	"fmt"

	"gorm.io/gorm"

	"tirta-backend/models"
)

// Migrate applies idempotent schema hardening on top of AutoMigrate:
// - rupiah columns as NUMERIC(12,0)
// - indexes for the hot report joins
// - foreign keys for readings/discounts/transactions
// - CHECK constraints for the invariants the core also enforces
func Migrate() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.User{},
			&models.Customer{},
			&models.MeterReading{},
			&models.ReadingRevision{},
			&models.CustomerDiscount{},
			&models.TransactionCategory{},
			&models.FinancialTransaction{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		alters := []string{
			`ALTER TABLE customer_discounts     ALTER COLUMN discount_amount TYPE numeric(12,0)`,
			`ALTER TABLE financial_transactions ALTER COLUMN amount          TYPE numeric(12,0)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_meter_readings_customer_date ON meter_readings (customer_id, date)`,
			// One reading per customer per calendar month.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_meter_readings_customer_month ON meter_readings (customer_id, date_trunc('month', date::timestamp))`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_reading_revisions_reading_id_version_no ON reading_revisions (reading_id, version_no)`,
			`CREATE INDEX IF NOT EXISTS idx_customer_discounts_customer_month ON customer_discounts (customer_id, discount_month)`,
			// At most one active discount per customer per month.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_customer_discounts_one_active ON customer_discounts (customer_id, discount_month) WHERE is_active`,
			`CREATE INDEX IF NOT EXISTS idx_financial_transactions_date ON financial_transactions (date)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []string{
			// Meter dial range
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'meter_readings'::regclass
					  AND conname  = 'chk_meter_readings_range'
				) THEN
					ALTER TABLE meter_readings
					ADD CONSTRAINT chk_meter_readings_range
					CHECK (reading >= 0 AND reading <= 999999);
				END IF;
			END $$;`,
			// Discount exclusivity: never both types at once
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'customer_discounts'::regclass
					  AND conname  = 'chk_customer_discounts_one_type'
				) THEN
					ALTER TABLE customer_discounts
					ADD CONSTRAINT chk_customer_discounts_one_type
					CHECK (NOT (discount_percentage > 0 AND discount_amount > 0));
				END IF;
			END $$;`,
			// Discount bounds
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'customer_discounts'::regclass
					  AND conname  = 'chk_customer_discounts_bounds'
				) THEN
					ALTER TABLE customer_discounts
					ADD CONSTRAINT chk_customer_discounts_bounds
					CHECK (discount_percentage >= 0 AND discount_percentage <= 100 AND discount_amount >= 0 AND discount_amount <= 1000000);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
