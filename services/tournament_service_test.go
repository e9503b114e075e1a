package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bracketforge/esports-arena/models"
)

type tournamentFixture struct {
	tournaments   *fakeTournamentRepo
	registrations *fakeRegistrationRepo
	teams         *fakeTeamRepo
	users         *fakeUserRepo
	broadcaster   *fakeBroadcaster
	service       *TournamentService
}

func newTournamentFixture() *tournamentFixture {
	teams := newFakeTeamRepo()
	f := &tournamentFixture{
		tournaments:   newFakeTournamentRepo(),
		registrations: newFakeRegistrationRepo(teams),
		teams:         teams,
		users:         newFakeUserRepo(),
		broadcaster:   &fakeBroadcaster{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewTournamentService(
		&fakeTxRunner{},
		f.tournaments,
		f.registrations,
		f.users,
		nil,
		f.broadcaster,
		logger,
	)
	return f
}

func (f *tournamentFixture) addTournament(status models.TournamentStatus, organizerID int) *models.Tournament {
	return f.tournaments.add(&models.Tournament{
		Name:            "Summer Clash",
		Game:            "CS2",
		Format:          models.FormatSolo,
		MaxParticipants: 16,
		StartDate:       time.Now().Add(48 * time.Hour),
		Status:          status,
		OrganizerID:     organizerID,
	})
}

func (f *tournamentFixture) addConfirmed(tournamentID int, playerIDs ...int) {
	now := time.Now()
	for _, playerID := range playerIDs {
		id := playerID
		f.registrations.add(&models.Registration{
			TournamentID: tournamentID,
			PlayerID:     &id,
			Status:       models.RegistrationConfirmed,
			ConfirmedAt:  &now,
		})
	}
}

var organizerActor = models.Actor{UserID: 1, Role: models.RoleOrganizer}
var adminActor = models.Actor{UserID: 99, Role: models.RoleAdmin}

func TestCreateTournamentStartsAsDraft(t *testing.T) {
	f := newTournamentFixture()
	created, err := f.service.Create(context.Background(), CreateTournamentInput{
		Name:            "Autumn Open",
		Game:            "Dota 2",
		Format:          models.FormatTeam,
		MaxParticipants: 8,
		PrizePool:       1000,
		StartDate:       time.Now().Add(72 * time.Hour),
	}, organizerActor)
	if err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	if created.Status != models.StatusDraft {
		t.Fatalf("expected status draft, got %q", created.Status)
	}
	if created.OrganizerID != organizerActor.UserID {
		t.Fatalf("expected organizer %d, got %d", organizerActor.UserID, created.OrganizerID)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
}

func TestCreateTournamentValidation(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	valid := CreateTournamentInput{
		Name:            "Cup",
		Game:            "LoL",
		Format:          models.FormatSolo,
		MaxParticipants: 4,
		StartDate:       future,
	}

	tests := []struct {
		name    string
		mutate  func(in *CreateTournamentInput)
		wantErr error
	}{
		{"empty name", func(in *CreateTournamentInput) { in.Name = "" }, ErrTournamentNameRequired},
		{"empty game", func(in *CreateTournamentInput) { in.Game = "" }, ErrTournamentGameRequired},
		{"unknown format", func(in *CreateTournamentInput) { in.Format = "duo" }, ErrTournamentInvalidFormat},
		{"capacity below two", func(in *CreateTournamentInput) { in.MaxParticipants = 1 }, ErrTournamentInvalidCapacity},
		{"negative prize pool", func(in *CreateTournamentInput) { in.PrizePool = -5 }, ErrTournamentInvalidPrizePool},
		{"past start date", func(in *CreateTournamentInput) { in.StartDate = time.Now().Add(-time.Hour) }, ErrTournamentStartDatePast},
		{"end before start", func(in *CreateTournamentInput) {
			end := in.StartDate.Add(-time.Hour)
			in.EndDate = &end
		}, ErrTournamentInvalidDateRange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newTournamentFixture()
			input := valid
			tc.mutate(&input)
			if _, err := f.service.Create(context.Background(), input, organizerActor); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestTransitionMatrix прогоняет все пары статусов через Transition.
// Админ-актор и выполненные гарды, так что отказ может значить только одно:
// перехода нет в таблице.
func TestTransitionMatrix(t *testing.T) {
	statuses := []models.TournamentStatus{
		models.StatusDraft, models.StatusOpen, models.StatusOngoing,
		models.StatusCompleted, models.StatusCancelled,
	}
	allowed := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusDraft:   {models.StatusOpen, models.StatusCancelled},
		models.StatusOpen:    {models.StatusOngoing, models.StatusCancelled},
		models.StatusOngoing: {models.StatusCompleted, models.StatusCancelled},
	}

	isAllowed := func(from, to models.TournamentStatus) bool {
		for _, status := range allowed[from] {
			if status == to {
				return true
			}
		}
		return false
	}

	for _, from := range statuses {
		for _, to := range statuses {
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				f := newTournamentFixture()
				tournament := f.addTournament(from, organizerActor.UserID)
				f.addConfirmed(tournament.ID, 10, 11) // гард "минимум 2 confirmed" выполнен

				updated, err := f.service.Transition(context.Background(), tournament.ID, to, adminActor)
				if isAllowed(from, to) {
					if err != nil {
						t.Fatalf("expected %s -> %s to succeed, got %v", from, to, err)
					}
					if updated.Status != to {
						t.Fatalf("expected status %q, got %q", to, updated.Status)
					}
					return
				}
				if !errors.Is(err, ErrTournamentInvalidStatusTransition) {
					t.Fatalf("expected invalid transition error for %s -> %s, got %v", from, to, err)
				}
			})
		}
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusDraft, organizerActor.UserID)

	if _, err := f.service.Transition(context.Background(), tournament.ID, "paused", adminActor); !errors.Is(err, ErrTournamentInvalidStatus) {
		t.Fatalf("expected ErrTournamentInvalidStatus, got %v", err)
	}
}

func TestTransitionOpenRequiresFutureStartDate(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.tournaments.add(&models.Tournament{
		Name:            "Late Cup",
		Game:            "CS2",
		Format:          models.FormatSolo,
		MaxParticipants: 8,
		StartDate:       time.Now().Add(-time.Hour),
		Status:          models.StatusDraft,
		OrganizerID:     organizerActor.UserID,
	})

	if _, err := f.service.Transition(context.Background(), tournament.ID, models.StatusOpen, organizerActor); !errors.Is(err, ErrTournamentInvalidStatusTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	// Отмена из draft не зависит от даты старта.
	if _, err := f.service.Transition(context.Background(), tournament.ID, models.StatusCancelled, organizerActor); err != nil {
		t.Fatalf("cancel draft: %v", err)
	}
}

func TestTransitionOngoingRequiresTwoConfirmed(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusOpen, organizerActor.UserID)
	f.addConfirmed(tournament.ID, 10)

	if _, err := f.service.Transition(context.Background(), tournament.ID, models.StatusOngoing, organizerActor); !errors.Is(err, ErrTournamentInvalidStatusTransition) {
		t.Fatalf("expected invalid transition error with one confirmed, got %v", err)
	}

	f.addConfirmed(tournament.ID, 11)
	updated, err := f.service.Transition(context.Background(), tournament.ID, models.StatusOngoing, organizerActor)
	if err != nil {
		t.Fatalf("start tournament: %v", err)
	}
	if updated.Status != models.StatusOngoing {
		t.Fatalf("expected ongoing, got %q", updated.Status)
	}
}

func TestTransitionCompleteRequiresAdmin(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusOngoing, organizerActor.UserID)

	if _, err := f.service.Transition(context.Background(), tournament.ID, models.StatusCompleted, organizerActor); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("expected ErrForbiddenOperation for organizer, got %v", err)
	}

	if _, err := f.service.Transition(context.Background(), tournament.ID, models.StatusCompleted, adminActor); err != nil {
		t.Fatalf("complete as admin: %v", err)
	}
}

func TestTransitionForbiddenForStranger(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusDraft, organizerActor.UserID)
	stranger := models.Actor{UserID: 42, Role: models.RoleOrganizer}

	if _, err := f.service.Transition(context.Background(), tournament.ID, models.StatusOpen, stranger); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("expected ErrForbiddenOperation, got %v", err)
	}
}

func TestTransitionBroadcastsEvent(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusDraft, organizerActor.UserID)

	if _, err := f.service.Transition(context.Background(), tournament.ID, models.StatusOpen, organizerActor); err != nil {
		t.Fatalf("open tournament: %v", err)
	}
	events := f.broadcaster.eventTypes()
	if len(events) != 1 || events[0] != EventTournamentStatusUpdated {
		t.Fatalf("expected one %s event, got %v", EventTournamentStatusUpdated, events)
	}
}

func TestUpdateFrozenWhenTerminal(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusCompleted, organizerActor.UserID)
	name := "Renamed"

	if _, err := f.service.Update(context.Background(), tournament.ID, UpdateTournamentInput{Name: &name}, organizerActor); !errors.Is(err, ErrTournamentFrozen) {
		t.Fatalf("expected ErrTournamentFrozen, got %v", err)
	}
}

func TestUpdateForbiddenForNonOwner(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusDraft, organizerActor.UserID)
	name := "Hijacked"
	stranger := models.Actor{UserID: 42, Role: models.RoleOrganizer}

	if _, err := f.service.Update(context.Background(), tournament.ID, UpdateTournamentInput{Name: &name}, stranger); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("expected ErrForbiddenOperation, got %v", err)
	}
}

func TestUpdateAppliesPartialPatch(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusDraft, organizerActor.UserID)
	name := "Winter Major"
	prize := 5000.0

	updated, err := f.service.Update(context.Background(), tournament.ID, UpdateTournamentInput{
		Name:      &name,
		PrizePool: &prize,
	}, organizerActor)
	if err != nil {
		t.Fatalf("update tournament: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("expected name %q, got %q", name, updated.Name)
	}
	if updated.PrizePool != prize {
		t.Fatalf("expected prize pool %v, got %v", prize, updated.PrizePool)
	}
	if updated.Game != tournament.Game {
		t.Fatalf("expected untouched game %q, got %q", tournament.Game, updated.Game)
	}
}

func TestDeleteBlockedByConfirmedRegistrations(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusOpen, organizerActor.UserID)
	f.addConfirmed(tournament.ID, 10)

	if err := f.service.Delete(context.Background(), tournament.ID, organizerActor); !errors.Is(err, ErrTournamentHasConfirmed) {
		t.Fatalf("expected ErrTournamentHasConfirmed, got %v", err)
	}
}

func TestDeleteSucceedsWithOnlyPending(t *testing.T) {
	f := newTournamentFixture()
	tournament := f.addTournament(models.StatusOpen, organizerActor.UserID)
	playerID := 10
	f.registrations.add(&models.Registration{
		TournamentID: tournament.ID,
		PlayerID:     &playerID,
		Status:       models.RegistrationPending,
	})

	if err := f.service.Delete(context.Background(), tournament.ID, organizerActor); err != nil {
		t.Fatalf("delete tournament: %v", err)
	}
	if _, err := f.service.GetByID(context.Background(), tournament.ID); !errors.Is(err, ErrTournamentNotFound) {
		t.Fatalf("expected ErrTournamentNotFound after delete, got %v", err)
	}
}

func TestGetByIDHydratesOrganizerAndRegistrations(t *testing.T) {
	f := newTournamentFixture()
	f.users.add(&models.User{ID: 1, Username: "org", Email: "org@example.com", Role: models.RoleOrganizer, PasswordHash: "secret"})
	tournament := f.addTournament(models.StatusOpen, 1)
	f.addConfirmed(tournament.ID, 10, 11)

	got, err := f.service.GetByID(context.Background(), tournament.ID)
	if err != nil {
		t.Fatalf("get tournament: %v", err)
	}
	if got.Organizer == nil || got.Organizer.Username != "org" {
		t.Fatalf("expected hydrated organizer, got %+v", got.Organizer)
	}
	if got.Organizer.PasswordHash != "" {
		t.Fatal("expected organizer password hash to be stripped")
	}
	if len(got.Registrations) != 2 {
		t.Fatalf("expected 2 registrations, got %d", len(got.Registrations))
	}
}
