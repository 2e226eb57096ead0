package models

import "time"

type ImportProgress struct {
	ID                    string  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	IsRunning             bool    `gorm:"not null;default:false"`
	ListID                *string `gorm:"type:text"`
	CurrentOffset         int64   `gorm:"not null;default:0"`
	TotalClientsProcessed int64   `gorm:"not null;default:0"`
	TotalMessagesImported int64   `gorm:"not null;default:0"`
	TotalImported         int64   `gorm:"not null;default:0"`
	LastRunAt             *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (ImportProgress) TableName() string {
	return "import_progress"
}
