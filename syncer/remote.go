package syncer

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tirta-backend/models"
)

// Remote is the system-of-record the manager reconciles against.
// Upserts must be idempotent; a replayed upload is harmless.
type Remote interface {
	FetchCustomers(ctx context.Context) ([]models.Customer, error)
	FetchReadings(ctx context.Context, since string) ([]models.MeterReading, error)
	FetchDiscounts(ctx context.Context) ([]models.CustomerDiscount, error)

	// HasDiscounts reports whether the discount collection is provisioned.
	// Explicit capability probe; callers must not infer this from error text.
	HasDiscounts(ctx context.Context) bool

	UpsertCustomer(ctx context.Context, c *models.Customer) error
	UpsertReading(ctx context.Context, r *models.MeterReading) error
	UpsertDiscount(ctx context.Context, d *models.CustomerDiscount) error
}

// GormRemote implements Remote on the Postgres system of record.
type GormRemote struct {
	db *gorm.DB
}

func NewGormRemote(db *gorm.DB) *GormRemote {
	return &GormRemote{db: db}
}

func (g *GormRemote) FetchCustomers(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	err := g.db.WithContext(ctx).Find(&out).Error
	return out, err
}

func (g *GormRemote) FetchReadings(ctx context.Context, since string) ([]models.MeterReading, error) {
	var out []models.MeterReading
	err := g.db.WithContext(ctx).Where("date >= ?", since).Order("date").Find(&out).Error
	return out, err
}

func (g *GormRemote) FetchDiscounts(ctx context.Context) ([]models.CustomerDiscount, error) {
	var out []models.CustomerDiscount
	err := g.db.WithContext(ctx).Find(&out).Error
	return out, err
}

func (g *GormRemote) HasDiscounts(ctx context.Context) bool {
	return g.db.WithContext(ctx).Migrator().HasTable(&models.CustomerDiscount{})
}

func (g *GormRemote) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(c).Error
}

func (g *GormRemote) UpsertReading(ctx context.Context, r *models.MeterReading) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(r).Error
}

func (g *GormRemote) UpsertDiscount(ctx context.Context, d *models.CustomerDiscount) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(d).Error
}
