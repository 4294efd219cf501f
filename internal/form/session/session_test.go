package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-capture/internal/auth"
	"lead-capture/internal/common/database"
	"lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/models"
)

type fakeBackend struct {
	verifyUser *models.User
	verifyErr  error
}

func (f *fakeBackend) SubmitLead(_ context.Context, _ *models.LeadPayload) (*models.SubmissionResult, error) {
	return &models.SubmissionResult{LeadID: "lead-1"}, nil
}

func (f *fakeBackend) VerifyToken(_ context.Context, _ string) (*models.User, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyUser == nil {
		return nil, errors.NewTokenVerificationFailedError("no user")
	}
	return f.verifyUser, nil
}

func (f *fakeBackend) Login(_ context.Context, _ auth.Credentials) (*models.User, string, error) {
	return &models.User{ID: 1, Role: models.RoleUser}, "tok", nil
}

func (f *fakeBackend) Register(_ context.Context, _ auth.Registration) (*models.User, string, error) {
	return &models.User{ID: 2, Role: models.RoleUser}, "tok", nil
}

func (f *fakeBackend) AdminUsers(_ context.Context, _ string) ([]models.AdminUser, error) {
	return nil, nil
}

func (f *fakeBackend) AdminAccounts(_ context.Context, _ string) ([]models.Account, error) {
	return nil, nil
}

func (f *fakeBackend) AdminLeads(_ context.Context, _ string) ([]models.Lead, error) {
	return nil, nil
}

func (f *fakeBackend) AdminStats(_ context.Context, _ string) (*models.DashboardStats, error) {
	return &models.DashboardStats{}, nil
}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rdb.Close() })
	registry := NewRegistry(rdb, time.Hour)
	return NewManager(registry, rdb, &fakeBackend{}, time.Hour, logger.NewTestLogger(t)), mr
}

func TestRegistry_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rdb.Close() })
	registry := NewRegistry(rdb, time.Hour)
	ctx := context.Background()

	snapshot := models.WizardSession{
		ID:          "sess-1",
		CurrentStep: models.StepContactDetails,
		FormData: models.FormData{
			LoanDetails: models.LoanDetails{LoanAmount: "50000", LoanType: models.LoanTypePersonal},
		},
		Errors: models.FormErrors{models.FieldName: "Full name is required"},
	}
	require.NoError(t, registry.Save(ctx, snapshot))
	assert.Equal(t, time.Hour, mr.TTL("wizard:session:sess-1"))

	loaded, err := registry.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot.CurrentStep, loaded.CurrentStep)
	assert.Equal(t, snapshot.FormData, loaded.FormData)
	assert.Equal(t, snapshot.Errors, loaded.Errors)
	// Save stamps the snapshot.
	assert.False(t, loaded.UpdatedAt.IsZero())

	require.NoError(t, registry.Delete(ctx, "sess-1"))
	_, err = registry.Load(ctx, "sess-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionNotFound, errors.CodeOf(err))
}

func TestManager_CreatePersistsSnapshot(t *testing.T) {
	m, mr := newTestManager(t)

	sess, err := m.Create(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.True(t, mr.Exists("wizard:session:"+sess.ID))
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, models.FirstStep, sess.Store.CurrentStep())
}

func TestManager_GetReturnsLiveSession(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.Create(context.Background())
	require.NoError(t, err)

	got, err := m.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Same(t, created, got)
}

func TestManager_GetResumesFromSnapshot(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx)
	require.NoError(t, err)

	amount := "75000"
	created.Store.UpdateLoanDetails(models.LoanDetailsUpdate{LoanAmount: &amount})
	require.NoError(t, m.Save(ctx, created))

	// Drop the live handle to simulate a process restart.
	m.mu.Lock()
	delete(m.sessions, created.ID)
	m.mu.Unlock()

	resumed, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.NotSame(t, created, resumed)
	assert.Equal(t, "75000", resumed.Store.FormData().LoanAmount)
}

func TestManager_SubmissionOutcomeSurvivesRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rdb.Close() })
	registry := NewRegistry(rdb, time.Hour)
	backend := &fakeBackend{}
	m := NewManager(registry, rdb, backend, time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	sess, err := m.Create(ctx)
	require.NoError(t, err)

	amount := "50000"
	loanType := models.LoanTypePersonal
	sess.Store.UpdateLoanDetails(models.LoanDetailsUpdate{LoanAmount: &amount, LoanType: &loanType})
	require.NoError(t, sess.Controller.Next())
	name, email, phone := "John Doe", "john@example.com", "5551234567"
	sess.Store.UpdateContactDetails(models.ContactDetailsUpdate{Name: &name, Email: &email, Phone: &phone})

	require.NoError(t, sess.Controller.Submit(ctx))

	// The resolution hook persists the outcome asynchronously; wait for
	// it to land in the snapshot, not just in the live store.
	require.Eventually(t, func() bool {
		snap, err := registry.Load(ctx, sess.ID)
		return err == nil && snap.Submission.IsSuccess
	}, time.Second, 5*time.Millisecond)

	// A fresh manager over the same Redis stands in for a restarted
	// process; the resolved outcome must come back from the snapshot.
	m2 := NewManager(registry, rdb, backend, time.Hour, logger.NewTestLogger(t))
	resumed, err := m2.Get(ctx, sess.ID)
	require.NoError(t, err)

	sub := resumed.Store.Submission()
	assert.True(t, sub.IsSuccess)
	require.NotNil(t, sub.Result)
	assert.Equal(t, "lead-1", sub.Result.LeadID)
	assert.False(t, sub.IsLoading)
}

func TestManager_GetUnknownSession(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Get(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionNotFound, errors.CodeOf(err))
}

func TestManager_DeleteRemovesEverything(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Store.SetAuth(ctx, models.Authenticated(&models.User{ID: 1, Role: models.RoleUser}, "tok")))

	require.NoError(t, m.Delete(ctx, sess.ID))

	assert.Equal(t, 0, m.Count())
	assert.False(t, mr.Exists("wizard:session:"+sess.ID))
	assert.False(t, mr.Exists("auth:token:"+sess.ID))
}

func TestManager_GuardRestoresPersistedToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rdb.Close() })
	registry := NewRegistry(rdb, time.Hour)
	backend := &fakeBackend{verifyUser: &models.User{ID: 5, Role: models.RoleAdmin}}
	m := NewManager(registry, rdb, backend, time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	sess, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Guard.WaitReady(ctx))
	assert.False(t, sess.Store.Auth().IsAuthenticated)

	// Seed a persisted token, then force a resume so the new guard
	// finds and verifies it.
	tokens := auth.NewRedisTokenStore(rdb, sess.ID, time.Hour)
	require.NoError(t, tokens.Save(ctx, "tok-persisted"))
	m.mu.Lock()
	delete(m.sessions, sess.ID)
	m.mu.Unlock()

	resumed, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NoError(t, resumed.Guard.WaitReady(ctx))

	authState := resumed.Store.Auth()
	assert.True(t, authState.IsAuthenticated)
	require.NotNil(t, authState.User)
	assert.Equal(t, int64(5), authState.User.ID)
}
