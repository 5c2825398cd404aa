package models

import "time"

// Admin is an administrator account. Created at signup, never mutated.
type Admin struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminPublic is Admin without credentials for API responses.
type AdminPublic struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Admin to AdminPublic.
func (a *Admin) ToPublic() AdminPublic {
	return AdminPublic{ID: a.ID, Email: a.Email, CreatedAt: a.CreatedAt}
}
