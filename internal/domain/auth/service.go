package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	apperrors "github.com/efficiencynow/efficiencynow/pkg/errors"
	"github.com/efficiencynow/efficiencynow/pkg/metrics"
)

// Service exposes authentication workflows backed by the in-memory user index.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (UserView, error)
	// Mirror copies a user that is already durable into the index.
	Mirror(user User) bool
	Authenticate(ctx context.Context, req LoginRequest) (LoginResponse, error)
	IsAuthenticated(ctx context.Context, token string) bool
	ResolveIdentity(ctx context.Context, token string) (UserView, error)
	Logout(ctx context.Context, token string) error
	RemoveUser(ctx context.Context, email string) error
	Stats(ctx context.Context) (metrics.IndexStats, error)
}

type service struct {
	repo     Repository
	index    *UserIndex
	sessions SessionStore
	hasher   CredentialHasher
	logger   *slog.Logger

	lockedWriteTimeout time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// dummyPassword is hashed once so lookups of unknown emails still pay for a
// full verification.
const dummyPassword = "Unused@Passw0rd"

// storeWriteTimeout bounds a durable write made while the index write lock
// is held; every login waits on that lock.
const storeWriteTimeout = 5 * time.Second

// NewService constructs a Service instance.
func NewService(repo Repository, index *UserIndex, sessions SessionStore, hasher CredentialHasher, logger *slog.Logger) Service {
	return &service{
		repo:     repo,
		index:    index,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger.With("component", "auth.service"),

		lockedWriteTimeout: storeWriteTimeout,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (UserView, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return UserView{}, apperrors.Wrap(CodeInvalidInput, "invalid email address", err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return UserView{}, apperrors.Wrap(CodeInvalidInput, "name cannot be empty", nil)
	}
	if _, exists := s.index.Get(email); exists {
		return UserView{}, apperrors.Wrap(CodeEmailExists, "email already registered", ErrEmailExists)
	}
	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordPolicy) {
			return UserView{}, apperrors.Wrap(CodeInvalidInput, err.Error(), err)
		}
		return UserView{}, apperrors.Wrap(CodeInternal, "failed to hash password", err)
	}
	user, err := s.repo.Save(ctx, User{
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return UserView{}, apperrors.Wrap(CodeEmailExists, "email already registered", err)
		}
		return UserView{}, apperrors.Wrap(CodeInternal, "failed to create user", err)
	}
	s.Mirror(user)
	s.logger.Info("user registered", "userId", user.ID)
	return toView(user), nil
}

func (s *service) Mirror(user User) bool {
	replaced := s.index.Put(user)
	if replaced {
		s.logger.Warn("mirror overwrote existing index entry", "userId", user.ID)
	}
	return replaced
}

func (s *service) Authenticate(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap(CodeInvalidInput, "invalid email address", err)
	}
	user, found := s.index.Get(email)
	if !found {
		s.hasher.Verify(req.Password, s.dummy())
		return LoginResponse{}, invalidCredentials()
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return LoginResponse{}, invalidCredentials()
	}
	token, err := s.sessions.Create(ctx, user.Email)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap(CodeInternal, "failed to create session", err)
	}
	return LoginResponse{Token: token, User: toView(user)}, nil
}

func (s *service) IsAuthenticated(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	_, ok, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		s.logger.Error("session lookup failed", "error", err)
		return false
	}
	return ok
}

func (s *service) ResolveIdentity(ctx context.Context, token string) (UserView, error) {
	if strings.TrimSpace(token) == "" {
		return UserView{}, invalidSession()
	}
	email, ok, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return UserView{}, apperrors.Wrap(CodeInternal, "failed to look up session", err)
	}
	if !ok {
		return UserView{}, invalidSession()
	}
	user, found := s.index.Get(email)
	if !found {
		return UserView{}, apperrors.Wrap(CodeUserNotFound, "user not found", ErrRecordNotFound)
	}
	return toView(user), nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return invalidSession()
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return invalidSession()
		}
		return apperrors.Wrap(CodeInternal, "failed to revoke session", err)
	}
	return nil
}

func (s *service) RemoveUser(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return apperrors.Wrap(CodeInvalidInput, "invalid email address", err)
	}
	err = s.index.RemoveWith(email, func() error {
		ctx, cancel := context.WithTimeout(ctx, s.lockedWriteTimeout)
		defer cancel()
		return s.repo.DeleteByEmail(ctx, email)
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return apperrors.Wrap(CodeUserNotFound, "user not found", err)
		}
		return apperrors.Wrap(CodeInternal, "failed to remove user", err)
	}
	revoked, err := s.sessions.RevokeAll(ctx, email)
	if err != nil {
		s.logger.Warn("failed to revoke sessions of removed user", "error", err)
	}
	s.logger.Info("user removed", "revokedSessions", revoked)
	return nil
}

func (s *service) Stats(ctx context.Context) (metrics.IndexStats, error) {
	live, err := s.sessions.Len(ctx)
	if err != nil {
		return metrics.IndexStats{}, apperrors.Wrap(CodeInternal, "failed to count sessions", err)
	}
	return metrics.IndexStats{
		Users:        s.index.Len(),
		TreeHeight:   s.index.Height(),
		LiveSessions: live,
	}, nil
}

func (s *service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error("failed to prepare dummy hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func invalidCredentials() error {
	return apperrors.Wrap(CodeInvalidCredentials, "invalid email or password", ErrInvalidCredentials)
}

func invalidSession() error {
	return apperrors.Wrap(CodeInvalidSession, "session is not valid", ErrInvalidSession)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}
