package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated principal issued by the identity backend.
type Identity struct {
	UID         string  `json:"uid"`
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}

// Account is the identity backend's stored record for an Identity.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PhotoURL     *string   `json:"photo_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Account) Identity() *Identity {
	return &Identity{
		UID:         a.ID.String(),
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
	}
}

// Profile is the public record stored under users/{uid}.
type Profile struct {
	UID         string     `json:"uid"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	PhotoURL    *string    `json:"photo_url,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// FallbackProfile derives a Profile from identity fields for identities whose
// users/{uid} record is missing.
func FallbackProfile(id *Identity) *Profile {
	name := id.DisplayName
	if strings.TrimSpace(name) == "" {
		name = id.Email
	}
	return &Profile{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: name,
		PhotoURL:    id.PhotoURL,
	}
}

type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}
