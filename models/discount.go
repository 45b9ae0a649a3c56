package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerDiscount grants a customer a reduction for one billing month.
// Exactly one of DiscountPercentage / DiscountAmount is non-zero.
// Discounts are never hard-deleted; revoking sets IsActive to false.
type CustomerDiscount struct {
	Id                 string    `json:"id" gorm:"primaryKey"`
	CustomerId         string    `json:"customer_id" gorm:"not null;index"`
	Customer           Customer  `json:"-" gorm:"foreignKey:CustomerId;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	DiscountPercentage float64   `json:"discount_percentage"`
	DiscountAmount     int64     `json:"discount_amount" gorm:"type:numeric(12,0)"`
	Reason             string    `json:"reason" gorm:"not null"`
	DiscountMonth      string    `json:"discount_month" gorm:"size:7;not null;index"`
	IsActive           bool      `json:"is_active"`
	CreatedBy          string    `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
}

func (discount *CustomerDiscount) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if discount.Id == "" {
		discount.Id = uuid.NewString()
	}
	return
}
