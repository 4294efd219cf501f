package auth

import (
	"context"
	"sync"

	"lead-capture/internal/common/logger"
	"lead-capture/internal/common/metrics"
	"lead-capture/internal/form/store"
	"lead-capture/internal/models"
)

// TokenVerifier checks a stored token against the backend and returns
// the identity it belongs to.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

// Guard runs the one-shot startup authentication check for a session:
// load the persisted token, verify it, and either restore the signed-in
// identity or silently fall back to the anonymous state. Auth actions
// wait for the guard so a login can never race the verification.
type Guard struct {
	store    *store.Store
	tokens   store.TokenStore
	verifier TokenVerifier
	log      logger.Logger

	once  sync.Once
	ready chan struct{}
}

// NewGuard returns an unstarted guard.
func NewGuard(s *store.Store, tokens store.TokenStore, verifier TokenVerifier, log logger.Logger) *Guard {
	return &Guard{
		store:    s,
		tokens:   tokens,
		verifier: verifier,
		log:      log,
		ready:    make(chan struct{}),
	}
}

// Run performs the startup check exactly once. Calling it again is a
// no-op. Every failure path lands on the anonymous state; the check
// never surfaces an error to the user.
func (g *Guard) Run(ctx context.Context) {
	g.once.Do(func() {
		defer close(g.ready)
		g.check(ctx)
	})
}

// Ready reports whether the startup check has completed.
func (g *Guard) Ready() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the startup check completes or the context is
// cancelled.
func (g *Guard) WaitReady(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guard) check(ctx context.Context) {
	token, err := g.tokens.Load(ctx)
	if err != nil {
		metrics.TokenVerifications.WithLabelValues("load_failed").Inc()
		g.log.Warn("failed to load persisted token", map[string]interface{}{
			"session_id": g.store.SessionID(),
			"error":      err.Error(),
		})
		return
	}
	if token == "" {
		metrics.TokenVerifications.WithLabelValues("absent").Inc()
		return
	}

	user, err := g.verifier.VerifyToken(ctx, token)
	if err != nil {
		// Expired or revoked sessions end up here; drop the token and
		// continue anonymously without telling the user anything.
		metrics.TokenVerifications.WithLabelValues("invalid").Inc()
		g.log.Info("stored token rejected, continuing anonymously", map[string]interface{}{
			"session_id": g.store.SessionID(),
			"error":      err.Error(),
		})
		if clearErr := g.tokens.Clear(ctx); clearErr != nil {
			g.log.Warn("failed to discard rejected token", map[string]interface{}{
				"session_id": g.store.SessionID(),
				"error":      clearErr.Error(),
			})
		}
		return
	}

	metrics.TokenVerifications.WithLabelValues("valid").Inc()
	if err := g.store.SetAuth(ctx, models.Authenticated(user, token)); err != nil {
		g.log.Warn("failed to persist restored auth state", map[string]interface{}{
			"session_id": g.store.SessionID(),
			"error":      err.Error(),
		})
	}
	g.log.Info("session restored from persisted token", map[string]interface{}{
		"session_id": g.store.SessionID(),
		"user_id":    user.ID,
	})
}
