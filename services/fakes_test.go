package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/bracketforge/esports-arena/models"
	"github.com/bracketforge/esports-arena/repositories"
	"github.com/bracketforge/esports-arena/storage"
)

// In-memory фейки репозиториев для сервисных тестов. Потокобезопасны:
// тесты допуска гоняют их из многих горутин.

// fakeTxRunner сериализует транзакции глобальным мьютексом, воспроизводя
// эффект блокировки строки турнира (FOR UPDATE) в памяти.
type fakeTxRunner struct {
	mu sync.Mutex
}

func (r *fakeTxRunner) RunInTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(nil)
}

type fakeTournamentRepo struct {
	mu          sync.Mutex
	nextID      int
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{nextID: 1, tournaments: make(map[int]*models.Tournament)}
}

func (r *fakeTournamentRepo) add(t *models.Tournament) *models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	}
	r.tournaments[t.ID] = t
	return t
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now()
	copied := *t
	r.tournaments[t.ID] = &copied
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) LockByID(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Format != nil && t.Format != *filter.Format {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTournamentRepo) Count(ctx context.Context, filter repositories.ListTournamentsFilter) (int, error) {
	list, err := r.List(ctx, filter)
	return len(list), err
}

func (r *fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	copied := *t
	r.tournaments[t.ID] = &copied
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *fakeTournamentRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

type fakeRegistrationRepo struct {
	mu            sync.Mutex
	nextID        int
	registrations map[int]*models.Registration
	teams         *fakeTeamRepo // для ListByTournamentForUser (капитанство)
}

func newFakeRegistrationRepo(teams *fakeTeamRepo) *fakeRegistrationRepo {
	return &fakeRegistrationRepo{
		nextID:        1,
		registrations: make(map[int]*models.Registration),
		teams:         teams,
	}
}

func (r *fakeRegistrationRepo) add(reg *models.Registration) *models.Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg.ID == 0 {
		reg.ID = r.nextID
		r.nextID++
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now()
	}
	r.registrations[reg.ID] = reg
	return reg
}

func (r *fakeRegistrationRepo) Create(_ context.Context, _ repositories.SQLExecutor, reg *models.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Частичные уникальные индексы: один игрок / одна команда на турнир.
	for _, existing := range r.registrations {
		if existing.TournamentID != reg.TournamentID {
			continue
		}
		if reg.PlayerID != nil && existing.PlayerID != nil && *existing.PlayerID == *reg.PlayerID {
			return repositories.ErrRegistrationConflict
		}
		if reg.TeamID != nil && existing.TeamID != nil && *existing.TeamID == *reg.TeamID {
			return repositories.ErrRegistrationConflict
		}
	}
	reg.ID = r.nextID
	r.nextID++
	reg.RegisteredAt = time.Now()
	copied := *reg
	r.registrations[reg.ID] = &copied
	return nil
}

func (r *fakeRegistrationRepo) FindByID(_ context.Context, id int) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	copied := *reg
	return &copied, nil
}

func (r *fakeRegistrationRepo) FindByPlayerAndTournament(_ context.Context, playerID, tournamentID int) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID && reg.PlayerID != nil && *reg.PlayerID == playerID {
			copied := *reg
			return &copied, nil
		}
	}
	return nil, repositories.ErrRegistrationNotFound
}

func (r *fakeRegistrationRepo) FindByTeamAndTournament(_ context.Context, teamID, tournamentID int) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID && reg.TeamID != nil && *reg.TeamID == teamID {
			copied := *reg
			return &copied, nil
		}
	}
	return nil, repositories.ErrRegistrationNotFound
}

func (r *fakeRegistrationRepo) CountByStatus(_ context.Context, _ repositories.SQLExecutor, tournamentID int, status models.RegistrationStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID && reg.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeRegistrationRepo) CountActiveByTeam(_ context.Context, teamID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, reg := range r.registrations {
		if reg.TeamID != nil && *reg.TeamID == teamID &&
			(reg.Status == models.RegistrationPending || reg.Status == models.RegistrationConfirmed) {
			count++
		}
	}
	return count, nil
}

func (r *fakeRegistrationRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Registration
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID {
			copied := *reg
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRegistrationRepo) ListByTournamentForUser(_ context.Context, tournamentID, userID int) ([]*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Registration
	for _, reg := range r.registrations {
		if reg.TournamentID != tournamentID {
			continue
		}
		visible := reg.PlayerID != nil && *reg.PlayerID == userID
		if !visible && reg.TeamID != nil && r.teams != nil {
			if team, err := r.teams.GetByID(context.Background(), *reg.TeamID); err == nil {
				visible = team.CaptainID == userID
			}
		}
		if visible {
			copied := *reg
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRegistrationRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.RegistrationStatus, confirmedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = status
	reg.ConfirmedAt = confirmedAt
	return nil
}

func (r *fakeRegistrationRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.registrations[id]; !ok {
		return repositories.ErrRegistrationNotFound
	}
	delete(r.registrations, id)
	return nil
}

func (r *fakeRegistrationRepo) GetWithDetails(ctx context.Context, id int) (*models.Registration, error) {
	return r.FindByID(ctx, id)
}

type fakeTeamRepo struct {
	mu     sync.Mutex
	nextID int
	teams  map[int]*models.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{nextID: 1, teams: make(map[int]*models.Team)}
}

func (r *fakeTeamRepo) add(team *models.Team) *models.Team {
	r.mu.Lock()
	defer r.mu.Unlock()
	if team.ID == 0 {
		team.ID = r.nextID
		r.nextID++
	}
	r.teams[team.ID] = team
	return team
}

func (r *fakeTeamRepo) Create(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.teams {
		if existing.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
		if existing.Tag == team.Tag {
			return repositories.ErrTeamTagConflict
		}
	}
	team.ID = r.nextID
	r.nextID++
	team.CreatedAt = time.Now()
	copied := *team
	r.teams[team.ID] = &copied
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *team
	return &copied, nil
}

func (r *fakeTeamRepo) GetByIDWithMembers(ctx context.Context, id int) (*models.Team, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTeamRepo) List(_ context.Context) ([]models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Team
	for _, team := range r.teams {
		out = append(out, *team)
	}
	return out, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	copied := *team
	r.teams[team.ID] = &copied
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.LogoKey = logoKey
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int]*models.User)}
}

func (r *fakeUserRepo) add(u *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
		if existing.Username == u.Username {
			return repositories.ErrUserUsernameConflict
		}
	}
	u.ID = r.nextID
	r.nextID++
	u.CreatedAt = time.Now()
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateTeamID(_ context.Context, userID int, teamID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.TeamID = teamID
	return nil
}

func (r *fakeUserRepo) DetachTeamMembers(_ context.Context, teamID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			u.TeamID = nil
		}
	}
	return nil
}

// fakeUploader складывает загруженные ключи в память.
type fakeUploader struct {
	mu       sync.Mutex
	uploaded map[string]string // key -> content type
	deleted  []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploaded: make(map[string]string)}
}

func (u *fakeUploader) Upload(_ context.Context, key, contentType string, _ io.Reader) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploaded[key] = contentType
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type broadcastEvent struct {
	tournamentID int
	eventType    string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *fakeBroadcaster) BroadcastToTournament(tournamentID int, eventType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{tournamentID: tournamentID, eventType: eventType})
}

func (b *fakeBroadcaster) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.eventType
	}
	return out
}
