package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bracketforge/esports-arena/models"
	"github.com/lib/pq"
)

var (
	ErrRegistrationNotFound          = errors.New("registration not found")
	ErrRegistrationConflict          = errors.New("registration conflict: player or team already registered for this tournament")
	ErrRegistrationPlayerInvalid     = errors.New("registration player reference invalid")
	ErrRegistrationTeamInvalid       = errors.New("registration team reference invalid")
	ErrRegistrationTournamentInvalid = errors.New("registration tournament reference invalid")
	ErrRegistrationTypeViolation     = errors.New("registration type violation: either player_id or team_id must be set, but not both")
)

type RegistrationRepository interface {
	// Create inserts the registration. Callers that need the capacity guarantee
	// pass the transaction holding the tournament row lock.
	Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error
	FindByID(ctx context.Context, id int) (*models.Registration, error)
	FindByPlayerAndTournament(ctx context.Context, playerID, tournamentID int) (*models.Registration, error)
	FindByTeamAndTournament(ctx context.Context, teamID, tournamentID int) (*models.Registration, error)
	CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.RegistrationStatus) (int, error)
	CountActiveByTeam(ctx context.Context, teamID int) (int, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Registration, error)
	ListByTournamentForUser(ctx context.Context, tournamentID, userID int) ([]*models.Registration, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.RegistrationStatus, confirmedAt *time.Time) error
	Delete(ctx context.Context, id int) error
	GetWithDetails(ctx context.Context, id int) (*models.Registration, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO registrations (tournament_id, player_id, team_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, registered_at`

	err := executor.QueryRowContext(ctx, query,
		reg.TournamentID,
		reg.PlayerID,
		reg.TeamID,
		reg.Status,
	).Scan(&reg.ID, &reg.RegisteredAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "registrations_tournament_id_player_id_key" ||
					pqErr.Constraint == "registrations_tournament_id_team_id_key" {
					return ErrRegistrationConflict
				}
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "registrations_player_id_fkey":
					return ErrRegistrationPlayerInvalid
				case "registrations_team_id_fkey":
					return ErrRegistrationTeamInvalid
				case "registrations_tournament_id_fkey":
					return ErrRegistrationTournamentInvalid
				}
			case "23514": // check_violation
				if pqErr.Constraint == "chk_registration_participant" {
					return ErrRegistrationTypeViolation
				}
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) scanRegistration(rowScanner interface {
	Scan(dest ...interface{}) error
}, reg *models.Registration) error {
	return rowScanner.Scan(
		&reg.ID,
		&reg.TournamentID,
		&reg.PlayerID,
		&reg.TeamID,
		&reg.Status,
		&reg.ConfirmedAt,
		&reg.RegisteredAt,
	)
}

func (r *postgresRegistrationRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Registration, error) {
	reg := &models.Registration{}
	row := r.db.QueryRowContext(ctx, query, args...)
	err := r.scanRegistration(row, reg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}
	return reg, nil
}

const registrationColumns = `id, tournament_id, player_id, team_id, status, confirmed_at, registered_at`

func (r *postgresRegistrationRepository) FindByID(ctx context.Context, id int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *postgresRegistrationRepository) FindByPlayerAndTournament(ctx context.Context, playerID, tournamentID int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE player_id = $1 AND tournament_id = $2`
	return r.findOne(ctx, query, playerID, tournamentID)
}

func (r *postgresRegistrationRepository) FindByTeamAndTournament(ctx context.Context, teamID, tournamentID int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE team_id = $1 AND tournament_id = $2`
	return r.findOne(ctx, query, teamID, tournamentID)
}

func (r *postgresRegistrationRepository) CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.RegistrationStatus) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM registrations WHERE tournament_id = $1 AND status = $2`
	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) CountActiveByTeam(ctx context.Context, teamID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM registrations reg
		JOIN tournaments t ON t.id = reg.tournament_id
		WHERE reg.team_id = $1 AND t.status IN ($2, $3)`
	var count int
	err := r.db.QueryRowContext(ctx, query, teamID, models.StatusOpen, models.StatusOngoing).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active team registrations: %w", err)
	}
	return count, nil
}

const registrationNestedColumns = `,
	u.id, u.username, u.email,
	tm.id, tm.name, tm.tag, tm.captain_id, tm.logo_key`

const registrationNestedJoins = `
	LEFT JOIN users u ON u.id = reg.player_id
	LEFT JOIN teams tm ON tm.id = reg.team_id`

func (r *postgresRegistrationRepository) listNested(ctx context.Context, where string, args ...interface{}) ([]*models.Registration, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			reg.id, reg.tournament_id, reg.player_id, reg.team_id, reg.status, reg.confirmed_at, reg.registered_at`)
	queryBuilder.WriteString(registrationNestedColumns)
	queryBuilder.WriteString(" FROM registrations reg")
	queryBuilder.WriteString(registrationNestedJoins)
	queryBuilder.WriteString(where)
	queryBuilder.WriteString(" ORDER BY reg.registered_at DESC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	registrations := make([]*models.Registration, 0)
	for rows.Next() {
		reg, scanErr := scanRegistrationNested(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		registrations = append(registrations, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}
	return registrations, nil
}

func scanRegistrationNested(rowScanner interface {
	Scan(dest ...interface{}) error
}) (*models.Registration, error) {
	var reg models.Registration
	var uID, tmID, tmCaptainID sql.NullInt64
	var uUsername, uEmail, tmName, tmTag sql.NullString
	var tmLogoKey sql.NullString

	err := rowScanner.Scan(
		&reg.ID, &reg.TournamentID, &reg.PlayerID, &reg.TeamID, &reg.Status, &reg.ConfirmedAt, &reg.RegisteredAt,
		&uID, &uUsername, &uEmail,
		&tmID, &tmName, &tmTag, &tmCaptainID, &tmLogoKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan registration row: %w", err)
	}

	if reg.PlayerID != nil && uID.Valid {
		reg.Player = &models.User{
			ID:       int(uID.Int64),
			Username: uUsername.String,
			Email:    uEmail.String,
		}
	}
	if reg.TeamID != nil && tmID.Valid {
		team := &models.Team{
			ID:        int(tmID.Int64),
			Name:      tmName.String,
			Tag:       tmTag.String,
			CaptainID: int(tmCaptainID.Int64),
		}
		if tmLogoKey.Valid {
			key := tmLogoKey.String
			team.LogoKey = &key
		}
		reg.Team = team
	}
	return &reg, nil
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Registration, error) {
	return r.listNested(ctx, " WHERE reg.tournament_id = $1", tournamentID)
}

func (r *postgresRegistrationRepository) ListByTournamentForUser(ctx context.Context, tournamentID, userID int) ([]*models.Registration, error) {
	// Участник видит только свои заявки: как игрок либо как капитан команды.
	where := " WHERE reg.tournament_id = $1 AND (reg.player_id = $2 OR tm.captain_id = $2)"
	return r.listNested(ctx, where, tournamentID, userID)
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.RegistrationStatus, confirmedAt *time.Time) error {
	executor := r.getExecutor(exec)
	query := `UPDATE registrations SET status = $1, confirmed_at = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, status, confirmedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM registrations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) GetWithDetails(ctx context.Context, id int) (*models.Registration, error) {
	query := `
		SELECT
			reg.id, reg.tournament_id, reg.player_id, reg.team_id, reg.status, reg.confirmed_at, reg.registered_at` +
		registrationNestedColumns + `,
			t.id, t.name, t.status, t.format
		FROM registrations reg` +
		registrationNestedJoins + `
		JOIN tournaments t ON t.id = reg.tournament_id
		WHERE reg.id = $1`

	var reg models.Registration
	var uID, tmID, tmCaptainID sql.NullInt64
	var uUsername, uEmail, tmName, tmTag, tmLogoKey sql.NullString
	var tour models.Tournament

	row := r.db.QueryRowContext(ctx, query, id)
	err := row.Scan(
		&reg.ID, &reg.TournamentID, &reg.PlayerID, &reg.TeamID, &reg.Status, &reg.ConfirmedAt, &reg.RegisteredAt,
		&uID, &uUsername, &uEmail,
		&tmID, &tmName, &tmTag, &tmCaptainID, &tmLogoKey,
		&tour.ID, &tour.Name, &tour.Status, &tour.Format,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration with details: %w", err)
	}

	if reg.PlayerID != nil && uID.Valid {
		reg.Player = &models.User{ID: int(uID.Int64), Username: uUsername.String, Email: uEmail.String}
	}
	if reg.TeamID != nil && tmID.Valid {
		team := &models.Team{
			ID:        int(tmID.Int64),
			Name:      tmName.String,
			Tag:       tmTag.String,
			CaptainID: int(tmCaptainID.Int64),
		}
		if tmLogoKey.Valid {
			key := tmLogoKey.String
			team.LogoKey = &key
		}
		reg.Team = team
	}
	reg.Tournament = &tour
	return &reg, nil
}
