package models

import "time"

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOrganizer UserRole = "organizer"
	RolePlayer    UserRole = "player"
)

func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleOrganizer || r == RolePlayer
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	TeamID       *int      `json:"team_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor — уже аутентифицированный принципал, который передаётся из
// транспортного слоя в сервисы. Сервисы ему доверяют и сами его не проверяют.
type Actor struct {
	UserID int
	Role   UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
