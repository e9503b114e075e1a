package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bracketforge/esports-arena/models"
	"github.com/bracketforge/esports-arena/repositories"
	"github.com/bracketforge/esports-arena/storage"
)

const (
	EventRegistrationCreated       = "REGISTRATION_CREATED"
	EventRegistrationStatusUpdated = "REGISTRATION_STATUS_UPDATED"
	EventRegistrationRemoved       = "REGISTRATION_REMOVED"
)

// RegistrationService отвечает за допуск заявок: создание, смену статуса,
// просмотр и удаление. Ёмкость турнира гарантируется даже при параллельных
// запросах: пара "подсчёт confirmed + запись" всегда выполняется в одной
// транзакции на заблокированной строке турнира.
type RegistrationService struct {
	txRunner         repositories.TxRunner
	registrationRepo repositories.RegistrationRepository
	tournamentRepo   repositories.TournamentRepository
	teamRepo         repositories.TeamRepository
	uploader         storage.FileUploader
	broadcaster      EventBroadcaster
	logger           *slog.Logger
}

func NewRegistrationService(
	txRunner repositories.TxRunner,
	registrationRepo repositories.RegistrationRepository,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	uploader storage.FileUploader,
	broadcaster EventBroadcaster,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		txRunner:         txRunner,
		registrationRepo: registrationRepo,
		tournamentRepo:   tournamentRepo,
		teamRepo:         teamRepo,
		uploader:         uploader,
		broadcaster:      broadcaster,
		logger:           logger,
	}
}

type RegisterInput struct {
	TeamID *int `json:"team_id"`
}

// Register создаёт заявку в статусе pending. Solo-турнир регистрирует самого
// actor-а, team-турнир требует team_id и капитанство.
func (s *RegistrationService) Register(ctx context.Context, tournamentID int, input RegisterInput, actor models.Actor) (*models.Registration, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	if tournament.Status != models.StatusOpen {
		return nil, ErrRegistrationNotOpen
	}

	wantsTeam := input.TeamID != nil
	if tournament.Format == models.FormatSolo && wantsTeam {
		return nil, ErrRegistrationSoloOnly
	}
	if tournament.Format == models.FormatTeam && !wantsTeam {
		return nil, ErrRegistrationTeamRequired
	}

	// Повторная регистрация запрещена независимо от статуса прежней заявки.
	if tournament.Format == models.FormatSolo {
		if _, findErr := s.registrationRepo.FindByPlayerAndTournament(ctx, actor.UserID, tournamentID); findErr == nil {
			return nil, ErrRegistrationConflict
		} else if !errors.Is(findErr, repositories.ErrRegistrationNotFound) {
			return nil, findErr
		}
	} else {
		if _, findErr := s.registrationRepo.FindByTeamAndTournament(ctx, *input.TeamID, tournamentID); findErr == nil {
			return nil, ErrRegistrationConflict
		} else if !errors.Is(findErr, repositories.ErrRegistrationNotFound) {
			return nil, findErr
		}
	}

	if tournament.Format == models.FormatTeam {
		team, teamErr := s.teamRepo.GetByID(ctx, *input.TeamID)
		if teamErr != nil {
			return nil, mapTeamRepoError(teamErr)
		}
		if team.CaptainID != actor.UserID {
			return nil, ErrUserMustBeCaptain
		}
	}

	registration := &models.Registration{
		TournamentID: tournamentID,
		Status:       models.RegistrationPending,
	}
	if tournament.Format == models.FormatSolo {
		playerID := actor.UserID
		registration.PlayerID = &playerID
	} else {
		registration.TeamID = input.TeamID
	}

	// Атомарная единица допуска: блокировка турнира, подсчёт confirmed,
	// вставка. Уникальные индексы добивают дубликаты, проскочившие
	// предварительную проверку.
	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		locked, lockErr := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
		if lockErr != nil {
			return mapTournamentRepoError(lockErr)
		}
		if locked.Status != models.StatusOpen {
			return ErrRegistrationNotOpen
		}

		confirmed, countErr := s.registrationRepo.CountByStatus(ctx, exec, tournamentID, models.RegistrationConfirmed)
		if countErr != nil {
			return countErr
		}
		if confirmed >= locked.MaxParticipants {
			return ErrTournamentFull
		}

		if createErr := s.registrationRepo.Create(ctx, exec, registration); createErr != nil {
			return mapRegistrationRepoError(createErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hydrated, err := s.hydrate(ctx, registration.ID)
	if err != nil {
		return nil, err
	}
	s.broadcast(tournamentID, EventRegistrationCreated, hydrated)
	return hydrated, nil
}

// UpdateStatus переводит заявку в новый статус. Любой прежний статус может
// стать confirmed, если позволяет ёмкость; confirmed_at ставится только на
// подтверждении и сбрасывается на любом уходе из него.
func (s *RegistrationService) UpdateStatus(ctx context.Context, tournamentID, registrationID int, newStatus models.RegistrationStatus, actor models.Actor) (*models.Registration, error) {
	if !newStatus.Valid() {
		return nil, ErrRegistrationBadStatus
	}

	tournament, registration, team, err := s.loadForUpdate(ctx, tournamentID, registrationID)
	if err != nil {
		return nil, err
	}
	if !canManageTournament(tournament, actor) && !isRegistrationParticipant(registration, team, actor) {
		return nil, ErrForbiddenOperation
	}

	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		locked, lockErr := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
		if lockErr != nil {
			return mapTournamentRepoError(lockErr)
		}

		var confirmedAt *time.Time
		if newStatus == models.RegistrationConfirmed {
			confirmed, countErr := s.registrationRepo.CountByStatus(ctx, exec, tournamentID, models.RegistrationConfirmed)
			if countErr != nil {
				return countErr
			}
			if confirmed >= locked.MaxParticipants {
				return ErrTournamentFull
			}
			now := time.Now()
			confirmedAt = &now
		}

		if updErr := s.registrationRepo.UpdateStatus(ctx, exec, registrationID, newStatus, confirmedAt); updErr != nil {
			return mapRegistrationRepoError(updErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hydrated, err := s.hydrate(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	s.broadcast(tournamentID, EventRegistrationStatusUpdated, hydrated)
	return hydrated, nil
}

// List: организатор и админ видят все заявки турнира, остальные — только те,
// где они игрок или капитан зарегистрированной команды.
func (s *RegistrationService) List(ctx context.Context, tournamentID int, actor models.Actor) ([]*models.Registration, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	var regs []*models.Registration
	if canManageTournament(tournament, actor) {
		regs, err = s.registrationRepo.ListByTournament(ctx, tournamentID)
	} else {
		regs, err = s.registrationRepo.ListByTournamentForUser(ctx, tournamentID, actor.UserID)
	}
	if err != nil {
		return nil, err
	}
	populateRegistrationLogoURLs(regs, s.uploader)
	return regs, nil
}

// Remove удаляет заявку. Удалить можно только pending; остальные статусы
// меняются через UpdateStatus, но не стираются.
func (s *RegistrationService) Remove(ctx context.Context, tournamentID, registrationID int, actor models.Actor) error {
	tournament, registration, team, err := s.loadForUpdate(ctx, tournamentID, registrationID)
	if err != nil {
		return err
	}
	if !canManageTournament(tournament, actor) && !isRegistrationParticipant(registration, team, actor) {
		return ErrForbiddenOperation
	}
	if registration.Status != models.RegistrationPending {
		return ErrRegistrationNotPending
	}

	if err := s.registrationRepo.Delete(ctx, registrationID); err != nil {
		return mapRegistrationRepoError(err)
	}
	s.broadcast(tournamentID, EventRegistrationRemoved, map[string]int{
		"registration_id": registrationID,
		"tournament_id":   tournamentID,
	})
	return nil
}

// loadForUpdate загружает турнир, заявку (с проверкой принадлежности) и,
// для командной заявки, команду — она нужна предикату участника.
func (s *RegistrationService) loadForUpdate(ctx context.Context, tournamentID, registrationID int) (*models.Tournament, *models.Registration, *models.Team, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, nil, nil, mapTournamentRepoError(err)
	}

	registration, err := s.registrationRepo.FindByID(ctx, registrationID)
	if err != nil {
		return nil, nil, nil, mapRegistrationRepoError(err)
	}
	if registration.TournamentID != tournamentID {
		return nil, nil, nil, ErrRegistrationNotFound
	}

	var team *models.Team
	if registration.TeamID != nil {
		team, err = s.teamRepo.GetByID(ctx, *registration.TeamID)
		if err != nil {
			return nil, nil, nil, mapTeamRepoError(err)
		}
	}
	return tournament, registration, team, nil
}

func (s *RegistrationService) hydrate(ctx context.Context, registrationID int) (*models.Registration, error) {
	registration, err := s.registrationRepo.GetWithDetails(ctx, registrationID)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	populateTeamLogoURL(registration.Team, s.uploader)
	return registration, nil
}

func (s *RegistrationService) broadcast(tournamentID int, eventType string, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToTournament(tournamentID, eventType, payload)
	}
}
