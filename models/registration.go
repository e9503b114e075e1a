package models

import "time"

// RegistrationStatus представляет статусы заявки, соответствующие ENUM в БД.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationRejected  RegistrationStatus = "rejected"
	RegistrationWithdrawn RegistrationStatus = "withdrawn"
)

func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationConfirmed, RegistrationRejected, RegistrationWithdrawn:
		return true
	}
	return false
}

// Registration — заявка на участие в турнире. Ровно одно из полей
// PlayerID/TeamID должно быть установлено, в соответствии с форматом турнира.
type Registration struct {
	ID           int                `json:"id" db:"id"`
	TournamentID int                `json:"tournament_id" db:"tournament_id"`
	PlayerID     *int               `json:"player_id,omitempty" db:"player_id"`
	TeamID       *int               `json:"team_id,omitempty" db:"team_id"`
	Status       RegistrationStatus `json:"status" db:"status"`
	ConfirmedAt  *time.Time         `json:"confirmed_at,omitempty" db:"confirmed_at"`
	RegisteredAt time.Time          `json:"registered_at" db:"registered_at"`

	Player     *User       `json:"player,omitempty" db:"-"`
	Team       *Team       `json:"team,omitempty" db:"-"`
	Tournament *Tournament `json:"tournament,omitempty" db:"-"`
}
