package backend

import "time"

type authUser struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

func (authUser) TableName() string {
	return "auth_users"
}

// refreshToken stores only the sha256 of the opaque token handed to clients.
type refreshToken struct {
	ID        uint   `gorm:"primaryKey"`
	TokenHash string `gorm:"size:64;not null;uniqueIndex"`
	UserID    string `gorm:"size:36;not null;index"`
	ExpiresAt time.Time
	Revoked   bool `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (refreshToken) TableName() string {
	return "auth_refresh_tokens"
}
