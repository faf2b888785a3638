package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"bptrack/internal/domain"
	"bptrack/internal/repository"
	"bptrack/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService accounts and bearer-token sessions
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)

	// Authenticate resolves a bearer token to its user id, ErrUnauthenticated otherwise.
	Authenticate(ctx context.Context, token string) (string, error)

	Logout(ctx context.Context, token string) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

const (
	sessionKeyPrefix  = "session:"
	minPasswordLength = 6
	minUsernameLength = 3
)

type authService struct {
	users      repository.UsersRepository
	sessions   store.KV
	sessionTTL time.Duration
	bcryptCost int
	logger     *zap.Logger
}

func NewAuthService(users repository.UsersRepository, sessions store.KV, sessionTTL time.Duration, logger *zap.Logger) AuthService {
	return &authService{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
	}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return nil, invalid("All fields are required")
	}
	if len(username) < minUsernameLength {
		return nil, invalid(fmt.Sprintf("Username should be at least %d characters long", minUsernameLength))
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalid(fmt.Sprintf("Password should be at least %d characters long", minPasswordLength))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("Invalid email address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		ProfileImage: "https://api.dicebear.com/9.x/avataaars/svg?seed=" + uuid.NewString(),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.newSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return &AuthResponse{User: user, Token: token}, nil
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, invalid("All fields are required")
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login rejected", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	token, err := s.newSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, Token: token}, nil
}

func (s *authService) newSession(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.sessions.Set(ctx, sessionKeyPrefix+token, userID, s.sessionTTL); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	userID, err := s.sessions.Get(ctx, sessionKeyPrefix+token)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return "", ErrUnauthenticated
		}
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return userID, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthenticated
	}
	if err := s.sessions.Del(ctx, sessionKeyPrefix+token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *authService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
