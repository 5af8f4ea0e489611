package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ragchat/internal/domain"
)

// TokenResponse is returned on register and login.
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        UserProfile `json:"user"`
}

type UserProfile struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	QueryCount int        `json:"query_count"`
	IsActive   bool       `json:"is_active"`
}

// Service handles registration, login and token-based identity resolution.
type Service struct {
	users  domain.UserRepository
	tokens *JWTService
	// window seeds limit_reset_time on registration so the first quota
	// check starts a full period.
	window time.Duration
}

func NewService(users domain.UserRepository, tokens *JWTService, window time.Duration) *Service {
	return &Service{users: users, tokens: tokens, window: window}
}

func (s *Service) Register(ctx context.Context, email, password, fullName string) (*TokenResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Email:          email,
		FullName:       fullName,
		HashedPassword: hashed,
		IsActive:       true,
		QueryCount:     0,
		LimitResetTime: time.Now().UTC().Add(s.window),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.tokenResponse(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(truncateForBcrypt(password))) != nil {
		return nil, domain.ErrUnauthenticated
	}
	if !user.IsActive {
		return nil, domain.ErrForbidden
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}

	return s.tokenResponse(user)
}

// ResolveIdentity validates a bearer token and loads the account behind it.
func (s *Service) ResolveIdentity(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !user.IsActive {
		return nil, domain.ErrForbidden
	}
	return user, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	profile := profileOf(user)
	return &profile, nil
}

func (s *Service) tokenResponse(user *domain.User) (*TokenResponse, error) {
	token, _, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        profileOf(user),
	}, nil
}

func profileOf(user *domain.User) UserProfile {
	return UserProfile{
		ID:         user.ID,
		Email:      user.Email,
		FullName:   user.FullName,
		CreatedAt:  user.CreatedAt,
		LastLogin:  user.LastLogin,
		QueryCount: user.QueryCount,
		IsActive:   user.IsActive,
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(truncateForBcrypt(password)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// bcrypt only looks at the first 72 bytes.
func truncateForBcrypt(password string) string {
	if len(password) > 72 {
		return password[:72]
	}
	return password
}
