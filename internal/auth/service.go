// Package auth handles email and password authentication with JWT bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/feedline/service/internal/user"
)

const (
	resetTokenLifetime  = time.Hour
	verifyTokenLifetime = time.Hour
)

// Errors surfaced to clients; the message doubles as the error code.
var (
	ErrUserAlreadyExists = errors.New("REGISTER_USER_ALREADY_EXISTS")
	ErrBadCredentials    = errors.New("LOGIN_BAD_CREDENTIALS")
	ErrResetBadToken     = errors.New("RESET_PASSWORD_BAD_TOKEN")
	ErrVerifyBadToken    = errors.New("VERIFY_USER_BAD_TOKEN")
	ErrAlreadyVerified   = errors.New("VERIFY_USER_ALREADY_VERIFIED")
)

// UserStore is the user behaviour the auth service relies on.
type UserStore interface {
	Create(ctx context.Context, email, hashedPassword string) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	SetPassword(ctx context.Context, id, hashedPassword string) error
	MarkVerified(ctx context.Context, id string) (*user.User, error)
}

// Options configures token signing.
type Options struct {
	Secret        string
	TokenLifetime time.Duration
	// Production hides issued reset and verify tokens from the logs.
	Production bool
}

// Service contains the business logic for registration, login, password
// reset and e-mail verification.
type Service struct {
	users      UserStore
	tokens     *tokenIssuer
	lifetime   time.Duration
	production bool
	bcryptCost int
	log        zerolog.Logger
}

// NewService creates a new auth Service.
func NewService(users UserStore, opts Options, log zerolog.Logger) *Service {
	return &Service{
		users:      users,
		tokens:     newTokenIssuer(opts.Secret),
		lifetime:   opts.TokenLifetime,
		production: opts.Production,
		bcryptCost: bcrypt.DefaultCost,
		log:        log.With().Str("component", "auth").Logger(),
	}
}

// Register creates an account for email with the given password.
func (s *Service) Register(ctx context.Context, email, password string) (*user.User, error) {
	hashed, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Create(ctx, email, hashed)
	if errors.Is(err, user.ErrAlreadyExists) {
		return nil, ErrUserAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("user_id", u.ID).Msg("user registered")
	return u, nil
}

// Login checks the credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		// Burn a comparison so unknown emails take as long as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrBadCredentials
	}
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	if !u.IsActive {
		return "", ErrBadCredentials
	}

	token, err := s.tokens.issue(claims{RegisteredClaims: subject(u.ID)}, AudienceAccess, s.lifetime)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	s.log.Info().Str("user_id", u.ID).Msg("user logged in")
	return token, nil
}

// ParseAccessToken validates an access token and returns the user id it was
// issued to.
func (s *Service) ParseAccessToken(token string) (string, error) {
	c, err := s.tokens.parse(token, AudienceAccess)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// ForgotPassword issues a password reset token for an active user. Unknown
// or inactive accounts are ignored silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	if !u.IsActive {
		return nil
	}

	token, err := s.tokens.issue(claims{
		RegisteredClaims:    subject(u.ID),
		PasswordFingerprint: passwordFingerprint(u.HashedPassword),
	}, AudienceReset, resetTokenLifetime)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	s.deliver("password reset requested", u, token)
	return nil
}

// ResetPassword sets a new password for the user the reset token belongs to.
// A token is spent once the password changes.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	c, err := s.tokens.parse(token, AudienceReset)
	if err != nil {
		return ErrResetBadToken
	}

	u, err := s.users.GetByID(ctx, c.Subject)
	if errors.Is(err, user.ErrNotFound) {
		return ErrResetBadToken
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if !u.IsActive || c.PasswordFingerprint != passwordFingerprint(u.HashedPassword) {
		return ErrResetBadToken
	}

	hashed, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, u.ID, hashed); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.log.Info().Str("user_id", u.ID).Msg("password reset")
	return nil
}

// RequestVerify issues an e-mail verification token for an active,
// unverified user. Anything else is ignored silently.
func (s *Service) RequestVerify(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("request verify: %w", err)
	}
	if !u.IsActive || u.IsVerified {
		return nil
	}

	token, err := s.tokens.issue(claims{
		RegisteredClaims: subject(u.ID),
		Email:            u.Email,
	}, AudienceVerify, verifyTokenLifetime)
	if err != nil {
		return fmt.Errorf("issue verify token: %w", err)
	}

	s.deliver("verification requested", u, token)
	return nil
}

// Verify marks the user behind a verification token as verified.
func (s *Service) Verify(ctx context.Context, token string) (*user.User, error) {
	c, err := s.tokens.parse(token, AudienceVerify)
	if err != nil || c.Email == "" {
		return nil, ErrVerifyBadToken
	}

	u, err := s.users.GetByID(ctx, c.Subject)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrVerifyBadToken
	}
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if u.Email != c.Email {
		return nil, ErrVerifyBadToken
	}
	if u.IsVerified {
		return nil, ErrAlreadyVerified
	}

	verified, err := s.users.MarkVerified(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	s.log.Info().Str("user_id", u.ID).Msg("user verified")
	return verified, nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// deliver stands in for an outbound mailer: the token is logged outside
// production only.
func (s *Service) deliver(event string, u *user.User, token string) {
	ev := s.log.Info().Str("user_id", u.ID)
	if !s.production {
		ev = ev.Str("token", token)
	}
	ev.Msg(event)
}

func subject(id string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: id}
}

// dummyHash is a bcrypt hash of a random string, compared against when the
// account does not exist.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z1vkTq8UlbX0Q5e6H9eX9Eoi")
