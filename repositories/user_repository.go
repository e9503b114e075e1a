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
	ErrUserNotFound         = errors.New("user not found")
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrUserUsernameConflict = errors.New("username is already in use")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateTeamID(ctx context.Context, userID int, teamID *int) error
	DetachTeamMembers(ctx context.Context, teamID int) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, team_id, created_at`

func scanUser(row interface{ Scan(dest ...interface{}) error }, u *models.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.TeamID, &u.CreatedAt)
}

func (r *postgresUserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, u.Username, u.Email, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrUserEmailConflict
			case "users_username_key":
				return ErrUserUsernameConflict
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u := &models.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, id), u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u := &models.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, email), u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *postgresUserRepository) UpdateTeamID(ctx context.Context, userID int, teamID *int) error {
	query := `UPDATE users SET team_id = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to update user team: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) DetachTeamMembers(ctx context.Context, teamID int) error {
	query := `UPDATE users SET team_id = NULL WHERE team_id = $1`
	if _, err := r.db.ExecContext(ctx, query, teamID); err != nil {
		return fmt.Errorf("failed to detach team members: %w", err)
	}
	return nil
}
