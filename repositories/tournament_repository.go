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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this organizer")
	ErrTournamentInUse        = errors.New("tournament is in use (registrations exist)")
	ErrTournamentInvalidOrg   = errors.New("invalid organizer reference")
)

type ListTournamentsFilter struct {
	Status *models.TournamentStatus
	Game   *string
	Format *models.TournamentFormat
	Limit  int
	Offset int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// LockByID reads the tournament row with FOR UPDATE inside the given
	// transaction, serializing concurrent admissions on the same tournament.
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Count(ctx context.Context, filter ListTournamentsFilter) (int, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, game, format, max_participants, prize_pool,
	start_date, end_date, status, organizer_id, created_at, logo_key`

func scanTournament(row interface{ Scan(dest ...interface{}) error }, t *models.Tournament) error {
	return row.Scan(
		&t.ID, &t.Name, &t.Game, &t.Format, &t.MaxParticipants, &t.PrizePool,
		&t.StartDate, &t.EndDate, &t.Status, &t.OrganizerID, &t.CreatedAt, &t.LogoKey,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			name, game, format, max_participants, prize_pool,
			start_date, end_date, status, organizer_id, logo_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Game, t.Format, t.MaxParticipants, t.PrizePool,
		t.StartDate, t.EndDate, t.Status, t.OrganizerID, t.LogoKey,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	err := scanTournament(r.db.QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`

	t := &models.Tournament{}
	err := scanTournament(executor.QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to lock tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) buildFilterClause(filter ListTournamentsFilter, args *[]interface{}) string {
	clause := ""
	argID := len(*args) + 1
	if filter.Status != nil {
		clause += fmt.Sprintf(" AND status = $%d", argID)
		*args = append(*args, *filter.Status)
		argID++
	}
	if filter.Game != nil {
		clause += fmt.Sprintf(" AND game = $%d", argID)
		*args = append(*args, *filter.Game)
		argID++
	}
	if filter.Format != nil {
		clause += fmt.Sprintf(" AND format = $%d", argID)
		*args = append(*args, *filter.Format)
	}
	return clause
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`
	args := []interface{}{}
	query += r.buildFilterClause(filter, &args)
	query += " ORDER BY start_date ASC, created_at DESC"

	argID := len(args) + 1
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Count(ctx context.Context, filter ListTournamentsFilter) (int, error) {
	query := `SELECT COUNT(*) FROM tournaments WHERE 1=1`
	args := []interface{}{}
	query += r.buildFilterClause(filter, &args)

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count tournaments: %w", err)
	}
	return total, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			game = $2,
			format = $3,
			max_participants = $4,
			prize_pool = $5,
			start_date = $6,
			end_date = $7
		WHERE id = $8`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.Game, t.Format, t.MaxParticipants, t.PrizePool,
		t.StartDate, t.EndDate, t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error {
	query := `UPDATE tournaments SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to update tournament logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM tournaments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_organizer_id_name_key" {
				return ErrTournamentNameConflict
			}
		case "23503":
			if pqErr.Constraint == "tournaments_organizer_id_fkey" {
				return ErrTournamentInvalidOrg
			}
			// FK violations from registrations pointing at tournaments mean the
			// tournament still has rows attached when deleting.
			return ErrTournamentInUse
		}
	}
	return err
}
