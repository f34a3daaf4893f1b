package models

import "time"

// Profile is a portal account record. The messaging core reads it for
// display enrichment and credential checks only.
type Profile struct {
	ID        int       `json:"id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (p Profile) Identity() Identity {
	return Identity{ID: p.ID, Role: p.Role}
}
