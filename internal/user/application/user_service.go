package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	userDomain "github.com/davicafu/postmesh/internal/user/domain"
	sharedUtils "github.com/davicafu/postmesh/internal/shared/infra/utils"
)

const refreshTokenBytes = 40

type TokenTTLs struct {
	Access  time.Duration
	Refresh time.Duration
}

// UserService registra cuentas y emite los tokens que consume el gateway.
type UserService struct {
	users  userDomain.UserRepository
	tokens userDomain.RefreshTokenRepository
	hasher userDomain.PasswordHasher
	issuer userDomain.AccessTokenIssuer
	ttl    TokenTTLs
	now    func() time.Time
	log    *zap.Logger
}

func NewUserService(users userDomain.UserRepository, tokens userDomain.RefreshTokenRepository, hasher userDomain.PasswordHasher, issuer userDomain.AccessTokenIssuer, ttl TokenTTLs, log *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
		log:    log,
	}
}

func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// Register crea la cuenta si ni el email ni el username están cogidos y devuelve un par de tokens.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*userDomain.Tokens, error) {
	s.log.Info("Registration started", zap.String("username", username))

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if exists {
		s.log.Warn("User already exists", zap.String("username", username))
		return nil, userDomain.ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := userDomain.NewUser(username, email, hash, s.now())
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("User saved", zap.String("user_id", user.ID.String()))

	return s.issueTokens(ctx, user)
}

// Login comprueba credenciales, invalida los refresh tokens anteriores y emite unos nuevos.
func (s *UserService) Login(ctx context.Context, username, password string) (*userDomain.Tokens, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, userDomain.ErrUserNotFound) {
		s.log.Warn("Login for unknown user", zap.String("username", username))
		return nil, userDomain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
		return nil, userDomain.ErrInvalidCredentials
	}

	if err := s.tokens.DeleteByUser(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

// Refresh rota el refresh token: el usado se borra y se emite un par nuevo.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*userDomain.Tokens, error) {
	stored, err := s.tokens.Get(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if stored.Expired(s.now()) {
		s.log.Warn("Expired refresh token", zap.String("user_id", stored.UserID.String()))
		_, _ = s.tokens.Delete(ctx, refreshToken)
		return nil, userDomain.ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if errors.Is(err, userDomain.ErrUserNotFound) {
		return nil, userDomain.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	deleted, err := s.tokens.Delete(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !deleted {
		// Otra petición lo rotó entre el Get y el Delete.
		return nil, userDomain.ErrInvalidRefreshToken
	}
	return s.issueTokens(ctx, user)
}

// Logout borra el refresh token. Un token desconocido es ErrInvalidRefreshToken.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	deleted, err := s.tokens.Delete(ctx, refreshToken)
	if err != nil {
		return err
	}
	if !deleted {
		return userDomain.ErrInvalidRefreshToken
	}
	s.log.Info("Refresh token deleted")
	return nil
}

func (s *UserService) issueTokens(ctx context.Context, user *userDomain.User) (*userDomain.Tokens, error) {
	access, err := s.issuer.Issue(user, s.ttl.Access)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := &userDomain.RefreshToken{
		Token:     hex.EncodeToString(raw),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.ttl.Refresh).UTC(),
	}

	err = sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		return s.tokens.Save(ctx, refresh)
	})
	if err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &userDomain.Tokens{AccessToken: access, RefreshToken: refresh.Token, UserID: user.ID}, nil
}
