package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bracketforge/esports-arena/models"
	"github.com/bracketforge/esports-arena/repositories"
	"github.com/bracketforge/esports-arena/storage"
)

// EventBroadcaster доставляет событие всем подписчикам комнаты турнира.
// Реализуется websocket-хабом; nil-значение допустимо (события молча теряются).
type EventBroadcaster interface {
	BroadcastToTournament(tournamentID int, eventType string, payload interface{})
}

// --- Предикаты авторизации ---
// Проверки ролей и владения повторяются в обоих сервисах, поэтому вынесены
// сюда. Работают на уже загруженных сущностях, про транспорт ничего не знают.

func canManageTournament(t *models.Tournament, actor models.Actor) bool {
	return actor.IsAdmin() || t.OrganizerID == actor.UserID
}

func isRegistrationParticipant(reg *models.Registration, team *models.Team, actor models.Actor) bool {
	if reg.PlayerID != nil && *reg.PlayerID == actor.UserID {
		return true
	}
	if reg.TeamID != nil && team != nil && team.CaptainID == actor.UserID {
		return true
	}
	return false
}

// --- Перевод ошибок репозитория в доменные ---

func mapTournamentRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentInUse):
		return ErrTournamentHasConfirmed
	}
	return err
}

func mapRegistrationRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrRegistrationNotFound):
		return ErrRegistrationNotFound
	case errors.Is(err, repositories.ErrRegistrationConflict):
		return ErrRegistrationConflict
	case errors.Is(err, repositories.ErrRegistrationTournamentInvalid):
		return ErrTournamentNotFound
	}
	return err
}

func mapUserRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrUserEmailConflict):
		return ErrUserEmailConflict
	case errors.Is(err, repositories.ErrUserUsernameConflict):
		return ErrUserUsernameConflict
	}
	return err
}

func mapTeamRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrTeamNameConflict
	case errors.Is(err, repositories.ErrTeamTagConflict):
		return ErrTeamTagConflict
	}
	return err
}

// --- Заполнение публичных URL логотипов ---

func populateTournamentLogoURL(t *models.Tournament, uploader storage.FileUploader) {
	if t != nil && t.LogoKey != nil && *t.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*t.LogoKey)
		if url != "" {
			t.LogoURL = &url
		}
	}
}

func populateTeamLogoURL(team *models.Team, uploader storage.FileUploader) {
	if team != nil && team.LogoKey != nil && *team.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*team.LogoKey)
		if url != "" {
			team.LogoURL = &url
		}
	}
}

func populateRegistrationLogoURLs(regs []*models.Registration, uploader storage.FileUploader) {
	if uploader == nil {
		return
	}
	for _, reg := range regs {
		if reg != nil {
			populateTeamLogoURL(reg.Team, uploader)
		}
	}
}

// GetExtensionFromContentType возвращает расширение файла для типов,
// принимаемых загрузчиком логотипов.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type: %q", contentType)
	}
}
