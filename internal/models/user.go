package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	Fullname       string
	HashedPassword string

	// Asset URLs. CoverImage is empty if user has not uploaded it
	Avatar     string
	CoverImage string

	// Current refresh token; nil if user logged out or never logged in
	RefreshToken *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Public projection of the user: safe to send to clients
type PublicUser struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Fullname   string    `json:"fullname"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Fullname:   u.Fullname,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type CreateUserParams struct {
	Username       string
	Email          string
	Fullname       string
	HashedPassword string
	Avatar         string
	CoverImage     string
}

// Profile fields to update. Nil fields are left unchanged
type ProfilePatch struct {
	Fullname   *string
	Email      *string
	Avatar     *string
	CoverImage *string
}
