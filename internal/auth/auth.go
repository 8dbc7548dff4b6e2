// Package auth handles credentials: password hashing, token minting,
// and token verification. It owns no storage; user lookups go through
// the user service.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jacentio/plume/internal/apperr"
	"github.com/jacentio/plume/internal/model"
	"github.com/jacentio/plume/internal/users"
)

const (
	bcryptCost  = 10
	minPassword = 8
)

// Session is a minted token plus the identity it represents.
type Session struct {
	Token  string     `json:"token"`
	User   users.View `json:"user"`
	Expiry time.Time  `json:"expiresAt"`
}

// Service issues and verifies sessions.
type Service struct {
	users  *users.Service
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an auth service signing with the given secret.
func NewService(userSvc *users.Service, secret []byte, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: userSvc, secret: secret, ttl: ttl, logger: logger, now: time.Now}
}

// Register creates a user from raw credentials and opens a session.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	if len(password) < minPassword {
		return nil, apperr.InvalidInput("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user, err := s.users.Register(ctx, username, email, string(hash))
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("userId", user.ID))
	return s.open(user)
}

// Login verifies credentials and opens a session. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	return s.open(user)
}

// Verify parses a bearer token and returns the user id it names.
func (s *Service) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !token.Valid {
		return "", apperr.Unauthorized("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", apperr.Unauthorized("invalid token")
	}
	return sub, nil
}

func (s *Service) open(user *model.UserItem) (*Session, error) {
	now := s.now().UTC()
	expiry := now.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, apperr.Internal("sign token", err)
	}

	return &Session{
		Token:  token,
		User:   users.ToView(user),
		Expiry: expiry,
	}, nil
}
