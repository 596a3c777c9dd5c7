package entities

import "time"

// Label is a user-visible class name. Names are unique.
type Label struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"size:200;not null;uniqueIndex:idx_label_name"`
	Description string    `gorm:"size:1024"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Label) TableName() string {
	return "labels"
}
