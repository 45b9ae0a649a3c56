package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MeterReading is one cumulative meter value submitted for a customer.
// Date is the submission date (YYYY-MM-DD), not the physical read date.
// Readings for a customer are expected to be non-decreasing over time;
// the validation layer blocks violations at entry, the storage layer
// does not.
type MeterReading struct {
	Id         string    `json:"id" gorm:"primaryKey"`
	CustomerId string    `json:"customer_id" gorm:"not null;index:idx_meter_readings_customer_date,priority:1"`
	Customer   Customer  `json:"-" gorm:"foreignKey:CustomerId;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Reading    int64     `json:"reading" gorm:"not null"`
	Date       string    `json:"date" gorm:"type:date;not null;index:idx_meter_readings_customer_date,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
}

func (reading *MeterReading) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if reading.Id == "" {
		reading.Id = uuid.NewString()
	}
	return
}

// Month returns the calendar month of the reading as "YYYY-MM".
func (reading *MeterReading) Month() string {
	if len(reading.Date) < 7 {
		return reading.Date
	}
	return reading.Date[:7]
}

// ReadingRevision is an immutable snapshot taken before a reading is
// edited. Sequence of revisions per reading forms the audit trail.
type ReadingRevision struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	ReadingId string         `json:"reading_id" gorm:"index:idx_reading_revisions_reading_id_version_no,unique,priority:1"`
	VersionNo int            `json:"version_no" gorm:"not null;index:idx_reading_revisions_reading_id_version_no,unique,priority:2"`
	Snapshot  datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	EditedBy  string         `json:"edited_by"`
	CreatedAt time.Time      `json:"created_at"`
}
