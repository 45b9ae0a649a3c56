package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionCategory buckets ledger entries (water fees, maintenance,
// electricity for the pump, etc).
type TransactionCategory struct {
	Id   string `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;unique"`
	Kind string `json:"kind" gorm:"type:VARCHAR(10);not null"` // "income" | "expense"
}

func (category *TransactionCategory) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if category.Id == "" {
		category.Id = uuid.NewString()
	}
	return
}

// FinancialTransaction is one row of the utility's cash ledger.
// Amount is in whole rupiah.
type FinancialTransaction struct {
	Id         string              `json:"id" gorm:"primaryKey"`
	CategoryId string              `json:"category_id" gorm:"not null;index"`
	Category   TransactionCategory `json:"category" gorm:"foreignKey:CategoryId;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Amount     int64               `json:"amount" gorm:"type:numeric(12,0);not null"`
	Date       string              `json:"date" gorm:"type:date;not null;index"`
	Note       string              `json:"note"`
	CreatedBy  string              `json:"created_by"`
	CreatedAt  time.Time           `json:"created_at"`
}

func (transaction *FinancialTransaction) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if transaction.Id == "" {
		transaction.Id = uuid.NewString()
	}
	return
}
