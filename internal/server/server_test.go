package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-capture/internal/auth"
	"lead-capture/internal/common/config"
	"lead-capture/internal/common/database"
	commonerrors "lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/form/session"
	"lead-capture/internal/models"
)

type fakeBackend struct {
	submitResult *models.SubmissionResult
	submitErr    error
	loginUser    *models.User
	loginErr     error
}

func (f *fakeBackend) SubmitLead(_ context.Context, _ *models.LeadPayload) (*models.SubmissionResult, error) {
	return f.submitResult, f.submitErr
}

func (f *fakeBackend) VerifyToken(_ context.Context, _ string) (*models.User, error) {
	return nil, commonerrors.NewTokenVerificationFailedError("no session")
}

func (f *fakeBackend) Login(_ context.Context, _ auth.Credentials) (*models.User, string, error) {
	if f.loginErr != nil {
		return nil, "", f.loginErr
	}
	return f.loginUser, "tok-1", nil
}

func (f *fakeBackend) Register(_ context.Context, reg auth.Registration) (*models.User, string, error) {
	return &models.User{ID: 99, Name: reg.Name, Email: reg.Email, Role: models.RoleUser}, "tok-new", nil
}

func (f *fakeBackend) AdminUsers(_ context.Context, _ string) ([]models.AdminUser, error) {
	return []models.AdminUser{{ID: "u1"}}, nil
}

func (f *fakeBackend) AdminAccounts(_ context.Context, _ string) ([]models.Account, error) {
	return nil, nil
}

func (f *fakeBackend) AdminLeads(_ context.Context, _ string) ([]models.Lead, error) {
	return nil, nil
}

func (f *fakeBackend) AdminStats(_ context.Context, _ string) (*models.DashboardStats, error) {
	return &models.DashboardStats{TotalLeads: 1}, nil
}

type okHealth struct{}

func (okHealth) Check(_ context.Context) map[string]string {
	return map[string]string{"redis": "ok"}
}

func newTestServer(t *testing.T, backend *fakeBackend) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rdb.Close() })

	registry := session.NewRegistry(rdb, time.Hour)
	manager := session.NewManager(registry, rdb, backend, time.Hour, logger.NewTestLogger(t))

	srv := New(config.ServerConfig{Address: ":0"}, manager, okHealth{}, logger.NewTestLogger(t))
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

type envelopeBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, envelopeBody) {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelopeBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func createSession(t *testing.T, ts *httptest.Server) sessionView {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view sessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func decodeView(t *testing.T, env envelopeBody) sessionView {
	t.Helper()
	var view sessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func TestCreateAndGetSession(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	view := createSession(t, ts)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, 1, view.CurrentStep)
	assert.Equal(t, "loan_details", view.Phase)

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, view.ID, decodeView(t, env).ID)
}

func TestGetSession_NotFound(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestUpdateLoanDetailsAndAdvance(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	view := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + view.ID

	resp, env := doJSON(t, http.MethodPatch, base+"/loan-details", map[string]interface{}{
		"loanAmount": "50000",
		"loanType":   "Personal",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "50000", decodeView(t, env).FormData.LoanAmount)

	resp, env = doJSON(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decodeView(t, env).CurrentStep)
}

func TestNext_ValidationErrorsReturned(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	view := createSession(t, ts)

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+view.ID+"/next", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "Loan amount is required", env.Errors["loanAmount"])
	assert.Equal(t, "Please select a loan type", env.Errors["loanType"])
	// The session view still comes back so the client can render state.
	assert.Equal(t, 1, decodeView(t, env).CurrentStep)
}

func TestEditClearsValidationErrors(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	view := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + view.ID

	_, _ = doJSON(t, http.MethodPost, base+"/next", nil)

	resp, env := doJSON(t, http.MethodPatch, base+"/loan-details", map[string]interface{}{
		"loanAmount": "50000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeView(t, env).Errors)
}

func TestSubmitLifecycle_Success(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{submitResult: &models.SubmissionResult{
		LeadID:                  "lead-1",
		AccountID:               "acct-1",
		NextStepURL:             "https://portal.example.com/next",
		EstimatedProcessingTime: "24 hours",
	}})
	view := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + view.ID

	_, _ = doJSON(t, http.MethodPatch, base+"/loan-details", map[string]interface{}{
		"loanAmount": "50000", "loanType": "Personal",
	})
	_, _ = doJSON(t, http.MethodPost, base+"/next", nil)
	_, _ = doJSON(t, http.MethodPatch, base+"/contact-details", map[string]interface{}{
		"name": "John Doe", "email": "john@example.com", "phone": "5551234567",
	})

	resp, _ := doJSON(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, env := doJSON(t, http.MethodGet, base, nil)
		return decodeView(t, env).Submission.IsSuccess
	}, time.Second, 10*time.Millisecond)

	_, env := doJSON(t, http.MethodGet, base, nil)
	final := decodeView(t, env)
	assert.Equal(t, "success", final.Phase)
	require.NotNil(t, final.Submission.Result)
	assert.Equal(t, "lead-1", final.Submission.Result.LeadID)
}

func TestSubmitAndRetryAfterTransportFailure(t *testing.T) {
	backend := &fakeBackend{submitErr: fmt.Errorf("connection refused")}
	ts := newTestServer(t, backend)
	view := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + view.ID

	_, _ = doJSON(t, http.MethodPatch, base+"/loan-details", map[string]interface{}{
		"loanAmount": "50000", "loanType": "Business",
	})
	_, _ = doJSON(t, http.MethodPost, base+"/next", nil)
	_, _ = doJSON(t, http.MethodPatch, base+"/contact-details", map[string]interface{}{
		"name": "John Doe", "email": "john@example.com", "phone": "5551234567",
	})
	_, _ = doJSON(t, http.MethodPost, base+"/submit", nil)

	require.Eventually(t, func() bool {
		_, env := doJSON(t, http.MethodGet, base, nil)
		return decodeView(t, env).Submission.Error != ""
	}, time.Second, 10*time.Millisecond)

	_, env := doJSON(t, http.MethodGet, base, nil)
	assert.Equal(t, "failed", decodeView(t, env).Phase)
	assert.Equal(t,
		"Unable to connect to our servers. Please check your internet connection and try again.",
		decodeView(t, env).Submission.Error)

	backend.submitErr = nil
	backend.submitResult = &models.SubmissionResult{LeadID: "lead-2"}

	resp, _ := doJSON(t, http.MethodPost, base+"/retry", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, env := doJSON(t, http.MethodGet, base, nil)
		return decodeView(t, env).Submission.IsSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestReset(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	view := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + view.ID

	_, _ = doJSON(t, http.MethodPatch, base+"/loan-details", map[string]interface{}{
		"loanAmount": "50000", "loanType": "Personal",
	})

	resp, env := doJSON(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reset := decodeView(t, env)
	assert.Equal(t, 1, reset.CurrentStep)
	assert.Empty(t, reset.FormData.LoanAmount)
}

func TestLoginLogout(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{
		loginUser: &models.User{ID: 4, Name: "Jane", Email: "jane@example.com", Role: models.RoleUser},
	})
	view := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + view.ID

	resp, env := doJSON(t, http.MethodPost, base+"/login", map[string]string{
		"email": "jane@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logged := decodeView(t, env)
	assert.True(t, logged.Auth.IsAuthenticated)
	require.NotNil(t, logged.Auth.User)
	assert.Equal(t, int64(4), logged.Auth.User.ID)

	resp, env = doJSON(t, http.MethodPost, base+"/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeView(t, env).Auth.IsAuthenticated)
}

func TestLogin_FailureStatus(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{
		loginErr: commonerrors.NewAuthFailedError("Invalid email or password"),
	})
	view := createSession(t, ts)

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+view.ID+"/login", map[string]string{
		"email": "jane@example.com", "password": "bad",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", env.Message)
}

func TestAdminOverview_Gated(t *testing.T) {
	backend := &fakeBackend{
		loginUser: &models.User{ID: 2, Name: "Sam", Email: "sam@example.com", Role: models.RoleUser},
	}
	ts := newTestServer(t, backend)
	view := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + view.ID

	// Anonymous sessions are refused.
	resp, _ := doJSON(t, http.MethodGet, base+"/admin/overview", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// A regular user is refused too.
	_, _ = doJSON(t, http.MethodPost, base+"/login", map[string]string{"email": "sam@example.com", "password": "pw"})
	resp, _ = doJSON(t, http.MethodGet, base+"/admin/overview", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// An admin gets the overview.
	backend.loginUser = &models.User{ID: 1, Name: "Jane", Email: "jane@example.com", Role: models.RoleAdmin}
	_, _ = doJSON(t, http.MethodPost, base+"/login", map[string]string{"email": "jane@example.com", "password": "pw"})
	resp, env := doJSON(t, http.MethodGet, base+"/admin/overview", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var overview models.AdminOverview
	require.NoError(t, json.Unmarshal(env.Data, &overview))
	assert.Equal(t, 1, overview.Stats.TotalLeads)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	view := createSession(t, ts)

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
