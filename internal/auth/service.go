package auth

import (
	"context"

	"lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/form/store"
	"lead-capture/internal/models"
)

// Credentials is a login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is a sign-up request.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// Authenticator exchanges credentials for an identity and a token.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*models.User, string, error)
	Register(ctx context.Context, reg Registration) (*models.User, string, error)
}

// Service runs the session's auth actions. Every action waits for the
// startup guard first so a login result can never be overwritten by a
// late verification of a stale token.
type Service struct {
	store *store.Store
	guard *Guard
	auth  Authenticator
	log   logger.Logger
}

// NewService wires the auth service for one session.
func NewService(s *store.Store, guard *Guard, auth Authenticator, log logger.Logger) *Service {
	return &Service{
		store: s,
		guard: guard,
		auth:  auth,
		log:   log,
	}
}

// Login authenticates the user and installs the resulting identity and
// token on the session.
func (s *Service) Login(ctx context.Context, creds Credentials) (*models.User, error) {
	if err := s.guard.WaitReady(ctx); err != nil {
		return nil, err
	}

	user, token, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.log.Warn("login failed", map[string]interface{}{
			"session_id": s.store.SessionID(),
			"error":      err.Error(),
		})
		return nil, s.asAuthError(err)
	}

	if err := s.store.SetAuth(ctx, models.Authenticated(user, token)); err != nil {
		// The user is signed in for this session even if the token
		// could not be persisted for the next one.
		s.log.Warn("login succeeded but token persistence failed", map[string]interface{}{
			"session_id": s.store.SessionID(),
		})
	}
	s.log.Info("user logged in", map[string]interface{}{
		"session_id": s.store.SessionID(),
		"user_id":    user.ID,
	})
	return user, nil
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, reg Registration) (*models.User, error) {
	if err := s.guard.WaitReady(ctx); err != nil {
		return nil, err
	}

	user, token, err := s.auth.Register(ctx, reg)
	if err != nil {
		s.log.Warn("registration failed", map[string]interface{}{
			"session_id": s.store.SessionID(),
			"error":      err.Error(),
		})
		return nil, s.asAuthError(err)
	}

	if err := s.store.SetAuth(ctx, models.Authenticated(user, token)); err != nil {
		s.log.Warn("registration succeeded but token persistence failed", map[string]interface{}{
			"session_id": s.store.SessionID(),
		})
	}
	s.log.Info("user registered", map[string]interface{}{
		"session_id": s.store.SessionID(),
		"user_id":    user.ID,
	})
	return user, nil
}

// Logout drops the identity and the persisted token. Form progress is
// untouched.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.guard.WaitReady(ctx); err != nil {
		return err
	}
	return s.store.Logout(ctx)
}

// asAuthError keeps backend-provided messages (wrong password, email
// taken) and maps everything else to the generic login failure.
func (s *Service) asAuthError(err error) error {
	switch errors.CodeOf(err) {
	case errors.ErrCodeAuthFailed, errors.ErrCodeBackendUnreachable:
		return err
	default:
		return errors.NewAuthFailedError("")
	}
}
