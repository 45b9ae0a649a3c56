package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a metered household. RT is the neighborhood unit code
// (Rukun Tetangga) used to group collection reports.
type Customer struct {
	Id     string `json:"id" gorm:"primaryKey"`
	Name   string `json:"name" gorm:"not null"`
	RT     string `json:"rt" gorm:"column:rt;not null;index"`
	Phone  string `json:"phone"`
	Active bool   `json:"active"`
}

func (customer *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if customer.Id == "" {
		customer.Id = uuid.NewString()
	}
	return
}
