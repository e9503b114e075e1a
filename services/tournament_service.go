package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bracketforge/esports-arena/models"
	"github.com/bracketforge/esports-arena/repositories"
	"github.com/bracketforge/esports-arena/storage"
)

const EventTournamentStatusUpdated = "TOURNAMENT_STATUS_UPDATED"

// transitionGuard проверяет дополнительное условие перехода на уже
// загруженном (и заблокированном) турнире.
type transitionGuard func(t *models.Tournament, confirmedCount int, now time.Time) error

type transitionRule struct {
	adminOnly bool
	guard     transitionGuard
}

// statusTransitions — единственный источник правды о допустимых переходах
// статуса турнира. Всё, чего здесь нет, запрещено.
var statusTransitions = map[models.TournamentStatus]map[models.TournamentStatus]transitionRule{
	models.StatusDraft: {
		models.StatusOpen:      {guard: guardStartDateInFuture},
		models.StatusCancelled: {},
	},
	models.StatusOpen: {
		models.StatusOngoing:   {guard: guardEnoughConfirmed},
		models.StatusCancelled: {},
	},
	models.StatusOngoing: {
		models.StatusCompleted: {adminOnly: true},
		models.StatusCancelled: {},
	},
	// completed и cancelled терминальны: переходов из них нет.
}

func guardStartDateInFuture(t *models.Tournament, _ int, now time.Time) error {
	if !t.StartDate.After(now) {
		return fmt.Errorf("%w: %s -> %s requires a future start date",
			ErrTournamentInvalidStatusTransition, t.Status, models.StatusOpen)
	}
	return nil
}

func guardEnoughConfirmed(t *models.Tournament, confirmedCount int, _ time.Time) error {
	if confirmedCount < 2 {
		return fmt.Errorf("%w: %s -> %s requires at least 2 confirmed registrations",
			ErrTournamentInvalidStatusTransition, t.Status, models.StatusOngoing)
	}
	return nil
}

// TournamentService владеет жизненным циклом турнира: только он меняет status.
type TournamentService struct {
	txRunner         repositories.TxRunner
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	userRepo         repositories.UserRepository
	uploader         storage.FileUploader
	broadcaster      EventBroadcaster
	logger           *slog.Logger
}

func NewTournamentService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	registrationRepo repositories.RegistrationRepository,
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
	broadcaster EventBroadcaster,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		txRunner:         txRunner,
		tournamentRepo:   tournamentRepo,
		registrationRepo: registrationRepo,
		userRepo:         userRepo,
		uploader:         uploader,
		broadcaster:      broadcaster,
		logger:           logger,
	}
}

type CreateTournamentInput struct {
	Name            string                  `json:"name"`
	Game            string                  `json:"game"`
	Format          models.TournamentFormat `json:"format"`
	MaxParticipants int                     `json:"max_participants"`
	PrizePool       float64                 `json:"prize_pool"`
	StartDate       time.Time               `json:"start_date"`
	EndDate         *time.Time              `json:"end_date"`
}

func validateTournamentInput(in CreateTournamentInput, now time.Time) error {
	if in.Name == "" || len(in.Name) > 100 {
		return ErrTournamentNameRequired
	}
	if in.Game == "" || len(in.Game) > 100 {
		return ErrTournamentGameRequired
	}
	if !in.Format.Valid() {
		return ErrTournamentInvalidFormat
	}
	if in.MaxParticipants < 2 {
		return ErrTournamentInvalidCapacity
	}
	if in.PrizePool < 0 {
		return ErrTournamentInvalidPrizePool
	}
	if !in.StartDate.After(now) {
		return ErrTournamentStartDatePast
	}
	if in.EndDate != nil && !in.EndDate.After(in.StartDate) {
		return ErrTournamentInvalidDateRange
	}
	return nil
}

// Create всегда создаёт турнир в статусе draft; организатором становится actor.
func (s *TournamentService) Create(ctx context.Context, input CreateTournamentInput, actor models.Actor) (*models.Tournament, error) {
	if err := validateTournamentInput(input, time.Now()); err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		Name:            input.Name,
		Game:            input.Game,
		Format:          input.Format,
		MaxParticipants: input.MaxParticipants,
		PrizePool:       input.PrizePool,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		Status:          models.StatusDraft,
		OrganizerID:     actor.UserID,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return tournament, nil
}

func (s *TournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	populateTournamentLogoURL(tournament, s.uploader)

	if organizer, orgErr := s.userRepo.GetByID(ctx, tournament.OrganizerID); orgErr == nil {
		organizer.PasswordHash = ""
		tournament.Organizer = organizer
	} else if s.logger != nil {
		s.logger.WarnContext(ctx, "failed to populate tournament organizer",
			slog.Int("tournament_id", tournament.ID), slog.Any("error", orgErr))
	}

	regs, regErr := s.registrationRepo.ListByTournament(ctx, id)
	if regErr != nil {
		return nil, regErr
	}
	tournament.Registrations = make([]models.Registration, 0, len(regs))
	for _, reg := range regs {
		if reg != nil {
			tournament.Registrations = append(tournament.Registrations, *reg)
		}
	}
	return tournament, nil
}

type TournamentList struct {
	Total       int                 `json:"total"`
	Count       int                 `json:"count"`
	Tournaments []models.Tournament `json:"tournaments"`
}

func (s *TournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) (*TournamentList, error) {
	total, err := s.tournamentRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		populateTournamentLogoURL(&tournaments[i], s.uploader)
	}
	return &TournamentList{Total: total, Count: len(tournaments), Tournaments: tournaments}, nil
}

type UpdateTournamentInput struct {
	Name            *string                  `json:"name"`
	Game            *string                  `json:"game"`
	Format          *models.TournamentFormat `json:"format"`
	MaxParticipants *int                     `json:"max_participants"`
	PrizePool       *float64                 `json:"prize_pool"`
	StartDate       *time.Time               `json:"start_date"`
	EndDate         *time.Time               `json:"end_date"`
	ClearEndDate    bool                     `json:"clear_end_date"`
}

// Update меняет всё, кроме статуса. Терминальный турнир не редактируется.
func (s *TournamentService) Update(ctx context.Context, id int, input UpdateTournamentInput, actor models.Actor) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !canManageTournament(tournament, actor) {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status.IsTerminal() {
		return nil, ErrTournamentFrozen
	}

	now := time.Now()
	if input.Name != nil {
		tournament.Name = *input.Name
	}
	if input.Game != nil {
		tournament.Game = *input.Game
	}
	if input.Format != nil {
		tournament.Format = *input.Format
	}
	if input.MaxParticipants != nil {
		tournament.MaxParticipants = *input.MaxParticipants
	}
	if input.PrizePool != nil {
		tournament.PrizePool = *input.PrizePool
	}
	if input.StartDate != nil {
		if !input.StartDate.After(now) {
			return nil, ErrTournamentStartDatePast
		}
		tournament.StartDate = *input.StartDate
	}
	if input.ClearEndDate {
		tournament.EndDate = nil
	} else if input.EndDate != nil {
		tournament.EndDate = input.EndDate
	}

	if tournament.Name == "" || len(tournament.Name) > 100 {
		return nil, ErrTournamentNameRequired
	}
	if tournament.Game == "" || len(tournament.Game) > 100 {
		return nil, ErrTournamentGameRequired
	}
	if !tournament.Format.Valid() {
		return nil, ErrTournamentInvalidFormat
	}
	if tournament.MaxParticipants < 2 {
		return nil, ErrTournamentInvalidCapacity
	}
	if tournament.PrizePool < 0 {
		return nil, ErrTournamentInvalidPrizePool
	}
	if tournament.EndDate != nil && !tournament.EndDate.After(tournament.StartDate) {
		return nil, ErrTournamentInvalidDateRange
	}

	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

// Delete удаляет турнир, только если нет ни одной подтверждённой заявки.
func (s *TournamentService) Delete(ctx context.Context, id int, actor models.Actor) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return mapTournamentRepoError(err)
	}
	if !canManageTournament(tournament, actor) {
		return ErrForbiddenOperation
	}

	confirmed, err := s.registrationRepo.CountByStatus(ctx, nil, id, models.RegistrationConfirmed)
	if err != nil {
		return err
	}
	if confirmed > 0 {
		return ErrTournamentHasConfirmed
	}

	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return mapTournamentRepoError(err)
	}
	return nil
}

// Transition валидирует и применяет переход статуса по таблице statusTransitions.
// Проверка и запись выполняются на заблокированной строке турнира, поэтому
// гард "минимум 2 confirmed" не гоняется с одновременными подтверждениями.
func (s *TournamentService) Transition(ctx context.Context, id int, requested models.TournamentStatus, actor models.Actor) (*models.Tournament, error) {
	if !requested.Valid() {
		return nil, ErrTournamentInvalidStatus
	}

	var updated *models.Tournament
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.LockByID(ctx, exec, id)
		if err != nil {
			return mapTournamentRepoError(err)
		}

		rule, ok := statusTransitions[tournament.Status][requested]
		if !ok {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, tournament.Status, requested)
		}

		if rule.adminOnly {
			if !actor.IsAdmin() {
				return fmt.Errorf("%w: admin role required", ErrForbiddenOperation)
			}
		} else if !canManageTournament(tournament, actor) {
			return ErrForbiddenOperation
		}

		if rule.guard != nil {
			confirmed, countErr := s.registrationRepo.CountByStatus(ctx, exec, id, models.RegistrationConfirmed)
			if countErr != nil {
				return countErr
			}
			if guardErr := rule.guard(tournament, confirmed, time.Now()); guardErr != nil {
				return guardErr
			}
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, exec, id, requested); err != nil {
			return mapTournamentRepoError(err)
		}
		tournament.Status = requested
		updated = tournament
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToTournament(id, EventTournamentStatusUpdated, updated)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "tournament status updated",
			slog.Int("tournament_id", id), slog.String("status", string(updated.Status)))
	}
	populateTournamentLogoURL(updated, s.uploader)
	return updated, nil
}

// UploadLogo заменяет логотип турнира в объектном хранилище.
func (s *TournamentService) UploadLogo(ctx context.Context, id int, actor models.Actor, contentType string, file io.Reader) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !canManageTournament(tournament, actor) {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status.IsTerminal() {
		return nil, ErrTournamentFrozen
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	oldKey := tournament.LogoKey
	key := fmt.Sprintf("tournaments/%d/logo%s", id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if oldKey != nil && *oldKey != key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to delete previous tournament logo",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	tournament.LogoKey = &key
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}
