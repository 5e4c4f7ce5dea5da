package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultRating is assigned to every new account.
const DefaultRating = 1200

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	Rating         int       `json:"rating"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Participant is the read-only projection of a profile shown inside a
// battle view.
type Participant struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Rating    int     `json:"rating"`
}

// UnknownParticipant stands in for a profile that could not be fetched
// after a battle resolved. The battle view degrades instead of omitting
// the slot.
func UnknownParticipant(id string) *Participant {
	return &Participant{ID: id, Username: "unknown"}
}

func (u *User) Participant() *Participant {
	return &Participant{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL, Rating: u.Rating}
}
