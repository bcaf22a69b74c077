package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/user"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Token is the response payload for register and login.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        user.User `json:"user"`
}

// Service handles shopper registration and login.
type Service struct {
	users user.Repository
	jwt   *JWTService
	log   *logrus.Entry
}

func NewService(users user.Repository, jwt *JWTService, log *logrus.Logger) *Service {
	return &Service{
		users: users,
		jwt:   jwt,
		log:   log.WithField("component", "auth"),
	}
}

func (s *Service) Register(ctx context.Context, email, password, name string) (*Token, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, user.ErrEmailAlreadyExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &user.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", u.ID).Info("user registered")
	return s.issueToken(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(u)
}

func (s *Service) issueToken(u *user.User) (*Token, error) {
	tokenString, expiresAt, err := s.jwt.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	safe := *u
	safe.PasswordHash = ""
	return &Token{
		AccessToken: tokenString,
		ExpiresAt:   expiresAt,
		User:        safe,
	}, nil
}
