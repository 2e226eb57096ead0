package models

import "time"

type Client struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Phone           string `gorm:"size:32;not null;uniqueIndex"`
	Name            string `gorm:"size:255;not null"`
	SalebotClientID *int64 `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Client) TableName() string {
	return "clients"
}

type ChatMessage struct {
	ID               int64  `gorm:"primaryKey"`
	ClientID         string `gorm:"type:uuid;index;not null"`
	Direction        string `gorm:"size:16;not null"`
	Text             string `gorm:"type:text"`
	SalebotMessageID int64  `gorm:"index;not null"`
	CreatedAt        time.Time
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
