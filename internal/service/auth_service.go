package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"shortener/internal/model"
	"shortener/internal/password"
	"shortener/internal/repository"
	"shortener/internal/token"
)

var (
	// ErrInvalidCredentials is returned for unknown email, wrong
	// password and bad tokens alike, so a caller cannot enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInactiveAccount    = errors.New("account is inactive")
)

// AuthService orchestrates registration, login and token resolution.
//
// There is no revocation list: logout is advisory and an issued token
// stays valid until its natural expiry.
type AuthService interface {
	Register(ctx context.Context, email, plaintext string) (*model.User, error)
	Login(ctx context.Context, email, plaintext string) (string, error)
	CurrentUser(ctx context.Context, tokenStr string) (*model.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	hasher   *password.Hasher
	tokens   *token.Manager
	logger   *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, hasher *password.Hasher, tokens *token.Manager) AuthService {
	return &authService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		logger:   zap.L().With(zap.String("component", "AuthService")),
	}
}

func (s *authService) Register(ctx context.Context, email, plaintext string) (*model.User, error) {
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, err
	}

	user := model.NewUser(email, digest)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, plaintext string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !s.hasher.Verify(plaintext, user.HashedPassword) {
		return "", ErrInvalidCredentials
	}

	// Checked only after the password verifies so a wrong password
	// against an inactive account still looks like bad credentials.
	if !user.IsActive {
		return "", ErrInactiveAccount
	}

	tokenStr, err := s.tokens.Issue(user.Email)
	if err != nil {
		s.logger.Error("Failed to issue token", zap.Error(err))
		return "", err
	}

	return tokenStr, nil
}

// CurrentUser resolves a bearer token to the user it was issued for.
// Every owner-scoped operation gates on this.
func (s *authService) CurrentUser(ctx context.Context, tokenStr string) (*model.User, error) {
	subject, err := s.tokens.Verify(tokenStr)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return user, nil
}
