package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bracketforge/esports-arena/models"
	"github.com/bracketforge/esports-arena/repositories"
	"github.com/bracketforge/esports-arena/storage"
)

// TeamService инкапсулирует бизнес-логику команд. Ядро допуска заявок
// использует команды только на чтение (капитанство).
type TeamService struct {
	teamRepo         repositories.TeamRepository
	userRepo         repositories.UserRepository
	registrationRepo repositories.RegistrationRepository
	uploader         storage.FileUploader
	logger           *slog.Logger
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	registrationRepo repositories.RegistrationRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *TeamService {
	return &TeamService{
		teamRepo:         teamRepo,
		userRepo:         userRepo,
		registrationRepo: registrationRepo,
		uploader:         uploader,
		logger:           logger,
	}
}

type TeamInput struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

func normalizeTeamInput(in TeamInput) (TeamInput, error) {
	name := strings.TrimSpace(in.Name)
	tag := strings.ToUpper(strings.TrimSpace(in.Tag))
	if name == "" {
		return TeamInput{}, ErrTeamNameRequired
	}
	if tag == "" {
		return TeamInput{}, ErrTeamTagRequired
	}
	return TeamInput{Name: name, Tag: tag}, nil
}

// Create создаёт команду. Создатель должен быть игроком без команды;
// он становится капитаном и первым участником.
func (s *TeamService) Create(ctx context.Context, input TeamInput, actor models.Actor) (*models.Team, error) {
	normalized, err := normalizeTeamInput(input)
	if err != nil {
		return nil, err
	}

	captain, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	if captain.Role != models.RolePlayer {
		return nil, ErrTeamCaptainMustBePlayer
	}
	if captain.TeamID != nil {
		return nil, ErrUserAlreadyInTeam
	}

	team := &models.Team{
		Name:      normalized.Name,
		Tag:       normalized.Tag,
		CaptainID: actor.UserID,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, mapTeamRepoError(err)
	}
	if err := s.userRepo.UpdateTeamID(ctx, actor.UserID, &team.ID); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, team.ID)
}

func (s *TeamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByIDWithMembers(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	populateTeamLogoURL(team, s.uploader)
	if captain, capErr := s.userRepo.GetByID(ctx, team.CaptainID); capErr == nil {
		captain.PasswordHash = ""
		team.Captain = captain
	} else if s.logger != nil {
		s.logger.WarnContext(ctx, "failed to populate team captain",
			slog.Int("team_id", team.ID), slog.Any("error", capErr))
	}
	return team, nil
}

type TeamList struct {
	Total int           `json:"total"`
	Count int           `json:"count"`
	Teams []models.Team `json:"teams"`
}

func (s *TeamService) List(ctx context.Context) (*TeamList, error) {
	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		populateTeamLogoURL(&teams[i], s.uploader)
	}
	return &TeamList{Total: len(teams), Count: len(teams), Teams: teams}, nil
}

// Update доступен только капитану.
func (s *TeamService) Update(ctx context.Context, id int, input TeamInput, actor models.Actor) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if team.CaptainID != actor.UserID {
		return nil, ErrUserMustBeCaptain
	}

	normalized, err := normalizeTeamInput(input)
	if err != nil {
		return nil, err
	}
	team.Name = normalized.Name
	team.Tag = normalized.Tag

	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, mapTeamRepoError(err)
	}
	return s.GetByID(ctx, id)
}

// Delete доступен только капитану и запрещён, пока команда заявлена в
// открытый или идущий турнир. Участники предварительно отвязываются.
func (s *TeamService) Delete(ctx context.Context, id int, actor models.Actor) error {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return mapTeamRepoError(err)
	}
	if team.CaptainID != actor.UserID {
		return ErrUserMustBeCaptain
	}

	active, err := s.registrationRepo.CountActiveByTeam(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrTeamHasActiveRegistrations
	}

	if err := s.userRepo.DetachTeamMembers(ctx, id); err != nil {
		return err
	}
	if err := s.teamRepo.Delete(ctx, id); err != nil {
		return mapTeamRepoError(err)
	}
	if team.LogoKey != nil {
		if delErr := s.uploader.Delete(ctx, *team.LogoKey); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to delete team logo",
				slog.String("key", *team.LogoKey), slog.Any("error", delErr))
		}
	}
	return nil
}

// UploadLogo заменяет логотип команды в объектном хранилище.
func (s *TeamService) UploadLogo(ctx context.Context, id int, actor models.Actor, contentType string, file io.Reader) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if team.CaptainID != actor.UserID {
		return nil, ErrUserMustBeCaptain
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	oldKey := team.LogoKey
	key := fmt.Sprintf("teams/%d/logo%s", id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}
	if err := s.teamRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		return nil, mapTeamRepoError(err)
	}
	if oldKey != nil && *oldKey != key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to delete previous team logo",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	team.LogoKey = &key
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}
