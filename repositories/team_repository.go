package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bracketforge/esports-arena/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound       = errors.New("team not found")
	ErrTeamNameConflict   = errors.New("team name is already in use")
	ErrTeamTagConflict    = errors.New("team tag is already in use")
	ErrTeamInvalidCaptain = errors.New("invalid captain reference")
	ErrTeamInUse          = errors.New("team is in use (registrations exist)")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetByIDWithMembers(ctx context.Context, id int) (*models.Team, error)
	List(ctx context.Context) ([]models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	query := `
		INSERT INTO teams (name, tag, captain_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, t.Name, t.Tag, t.CaptainID).Scan(&t.ID, &t.CreatedAt)
	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT id, name, tag, captain_id, created_at, logo_key FROM teams WHERE id = $1`

	t := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Tag, &t.CaptainID, &t.CreatedAt, &t.LogoKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) GetByIDWithMembers(ctx context.Context, id int) (*models.Team, error) {
	team, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, username, email, role, created_at
		FROM users
		WHERE team_id = $1
		ORDER BY username ASC`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load team members: %w", err)
	}
	defer rows.Close()

	members := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if scanErr := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", scanErr)
		}
		members = append(members, u)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	team.Members = members
	return team, nil
}

func (r *postgresTeamRepository) List(ctx context.Context) ([]models.Team, error) {
	query := `SELECT id, name, tag, captain_id, created_at, logo_key FROM teams ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var t models.Team
		if scanErr := rows.Scan(&t.ID, &t.Name, &t.Tag, &t.CaptainID, &t.CreatedAt, &t.LogoKey); scanErr != nil {
			return nil, scanErr
		}
		teams = append(teams, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *postgresTeamRepository) Update(ctx context.Context, t *models.Team) error {
	query := `UPDATE teams SET name = $1, tag = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, t.Name, t.Tag, t.ID)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error {
	query := `UPDATE teams SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, teamID)
	if err != nil {
		return fmt.Errorf("failed to update team logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM teams WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			switch pqErr.Constraint {
			case "teams_name_key":
				return ErrTeamNameConflict
			case "teams_tag_key":
				return ErrTeamTagConflict
			}
		case "23503":
			if pqErr.Constraint == "teams_captain_id_fkey" {
				return ErrTeamInvalidCaptain
			}
			return ErrTeamInUse
		}
	}
	return err
}
