package db

import "time"

type AdmissionModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	TicketID   string    `gorm:"uniqueIndex;not null"`
	Owner      string    `gorm:"not null"`
	Operator   string    `gorm:"index"`
	GateID     string    `gorm:"index;not null"`
	Nonce      string    `gorm:"not null"`
	AdmittedAt time.Time `gorm:"not null"`
}

func (AdmissionModel) TableName() string {
	return "admissions"
}
