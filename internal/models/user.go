package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the profile row the story engine reads author details from.
// ID is the auth provider's user id.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:128"`
	Name      string    `json:"name"`
	AvatarRef string    `json:"avatar_ref"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserCompact is the author summary embedded in responses
type UserCompact struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarRef string `json:"avatar_ref"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Name: u.Name, AvatarRef: u.AvatarRef}
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UpdateProfileRequest updates the author details shown on new story items
type UpdateProfileRequest struct {
	Name      string `json:"name" validate:"omitempty,max=80"`
	AvatarRef string `json:"avatar_ref" validate:"omitempty,max=512"`
}
