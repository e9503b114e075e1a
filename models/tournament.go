package models

import "time"

// TournamentStatus and TournamentFormat mirror the ENUM types in the database.
type TournamentStatus string

const (
	StatusDraft     TournamentStatus = "draft"
	StatusOpen      TournamentStatus = "open"
	StatusOngoing   TournamentStatus = "ongoing"
	StatusCompleted TournamentStatus = "completed"
	StatusCancelled TournamentStatus = "cancelled"
)

// IsTerminal reports whether no further transition or field edit is permitted.
func (s TournamentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type TournamentFormat string

const (
	FormatSolo TournamentFormat = "solo"
	FormatTeam TournamentFormat = "team"
)

func (f TournamentFormat) Valid() bool {
	return f == FormatSolo || f == FormatTeam
}

// Tournament представляет турнир.
type Tournament struct {
	ID              int              `json:"id" db:"id"`
	Name            string           `json:"name" db:"name"`
	Game            string           `json:"game" db:"game"`
	Format          TournamentFormat `json:"format" db:"format"`
	MaxParticipants int              `json:"max_participants" db:"max_participants"`
	PrizePool       float64          `json:"prize_pool" db:"prize_pool"`
	StartDate       time.Time        `json:"start_date" db:"start_date"`
	EndDate         *time.Time       `json:"end_date,omitempty" db:"end_date"`
	Status          TournamentStatus `json:"status" db:"status"`
	OrganizerID     int              `json:"organizer_id" db:"organizer_id"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	LogoKey         *string          `json:"-" db:"logo_key"`
	LogoURL         *string          `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Organizer     *User          `json:"organizer,omitempty" db:"-"`
	Registrations []Registration `json:"registrations,omitempty" db:"-"`
}
