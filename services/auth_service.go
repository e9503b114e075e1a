package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bracketforge/esports-arena/models"
	"github.com/bracketforge/esports-arena/repositories"
	"github.com/bracketforge/esports-arena/utils"
)

const minPasswordLength = 8

// AuthService регистрирует пользователей и проверяет учётные данные.
// Выпуск токена — забота транспортного слоя.
type AuthService struct {
	userRepo repositories.UserRepository
}

func NewAuthService(userRepo repositories.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *AuthService) Register(ctx context.Context, input SignupInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrValidationFailed)
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	role := models.RolePlayer
	if input.Role != "" {
		role = models.UserRole(input.Role)
		// Админов через публичную регистрацию не создаём.
		if !role.Valid() || role == models.RoleAdmin {
			return nil, fmt.Errorf("%w: invalid role", ErrValidationFailed)
		}
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		// Не раскрываем, существует ли такой email.
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(creds.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
