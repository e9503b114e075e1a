package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурсы не найдены
	ErrUserNotFound         = errors.New("user not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed           = errors.New("validation failed")
	ErrPasswordTooShort           = errors.New("password is too short")
	ErrInvalidCredentials         = errors.New("invalid email or password")
	ErrTeamNameRequired           = errors.New("team name is required")
	ErrTeamTagRequired            = errors.New("team tag is required")
	ErrTeamCaptainMustBePlayer    = errors.New("team captain must have the player role")
	ErrUserAlreadyInTeam          = errors.New("user is already a member of a team")
	ErrTeamHasActiveRegistrations = errors.New("team is registered for an active tournament")

	// Жизненный цикл турнира
	ErrTournamentInvalidStatus           = errors.New("invalid tournament status provided")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrTournamentFrozen                  = errors.New("a completed or cancelled tournament can no longer be modified")
	ErrTournamentHasConfirmed            = errors.New("cannot delete a tournament with confirmed registrations")

	// Допуск заявок
	ErrRegistrationNotOpen      = errors.New("tournament is not open for registration")
	ErrTournamentFull           = errors.New("tournament is full (max participants reached)")
	ErrRegistrationConflict     = errors.New("player or team is already registered for this tournament")
	ErrRegistrationSoloOnly     = errors.New("solo tournament: team registration is not allowed")
	ErrRegistrationTeamRequired = errors.New("team tournament: team_id is required")
	ErrRegistrationNotPending   = errors.New("only pending registrations can be deleted")
	ErrRegistrationBadStatus    = errors.New("invalid registration status provided")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrUserMustBeCaptain    = errors.New("only the team captain can perform this action")

	// Конфликты уникальности
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrUserUsernameConflict = errors.New("username is already in use")
	ErrTeamNameConflict     = errors.New("team name is already in use")
	ErrTeamTagConflict      = errors.New("team tag is already in use")

	// Валидация полей турнира
	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrTournamentGameRequired     = errors.New("tournament game is required")
	ErrTournamentInvalidFormat    = errors.New("tournament format must be solo or team")
	ErrTournamentInvalidCapacity  = errors.New("tournament max participants must be at least 2")
	ErrTournamentInvalidPrizePool = errors.New("tournament prize pool cannot be negative")
	ErrTournamentStartDatePast    = errors.New("tournament start date must be in the future")
	ErrTournamentInvalidDateRange = errors.New("tournament end date must be after start date")
)
