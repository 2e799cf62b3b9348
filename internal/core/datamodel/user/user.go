package user

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"column:name;size:255;not null"`
	Email        string    `gorm:"column:email;size:255;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
