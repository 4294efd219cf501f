// Package backend is the HTTP client for the lead-processing API. It
// owns the request/response envelope, the response contract check and
// the mapping from HTTP failures to coded errors.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"lead-capture/internal/auth"
	commonerrors "lead-capture/internal/common/errors"
	commonhttp "lead-capture/internal/common/http"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/models"
)

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type authData struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type verifyData struct {
	User *models.User `json:"user"`
}

// Client talks to the lead-processing backend.
type Client struct {
	baseURL    string
	httpClient *commonhttp.Client
	log        logger.Logger
}

// NewClient builds a backend client for the given base URL.
func NewClient(baseURL string, httpClient *commonhttp.Client, log logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log,
	}
}

// Login exchanges credentials for an identity and a bearer token.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (*models.User, string, error) {
	env, err := c.post(ctx, "/api/login", creds, "")
	if err != nil {
		return nil, "", err
	}
	if !env.Success {
		return nil, "", commonerrors.NewAuthFailedError(env.Message)
	}
	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.User == nil || data.Token == "" {
		return nil, "", commonerrors.NewBadBackendResponseError("login response missing user or token")
	}
	return data.User, data.Token, nil
}

// Register creates an account and returns the signed-in identity.
func (c *Client) Register(ctx context.Context, reg auth.Registration) (*models.User, string, error) {
	env, err := c.post(ctx, "/api/register", reg, "")
	if err != nil {
		return nil, "", err
	}
	if !env.Success {
		return nil, "", commonerrors.NewAuthFailedError(env.Message)
	}
	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.User == nil || data.Token == "" {
		return nil, "", commonerrors.NewBadBackendResponseError("register response missing user or token")
	}
	return data.User, data.Token, nil
}

// VerifyToken checks a stored token and returns its identity. Any
// non-success outcome maps to a verification failure so callers can
// fall back to the anonymous state.
func (c *Client) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	env, err := c.get(ctx, "/api/verify-token", token)
	if err != nil {
		if commonerrors.CodeOf(err) == commonerrors.ErrCodeBackendUnreachable {
			return nil, err
		}
		return nil, commonerrors.NewTokenVerificationFailedError(err.Error())
	}
	if !env.Success {
		return nil, commonerrors.NewTokenVerificationFailedError(env.Message)
	}
	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.User == nil {
		return nil, commonerrors.NewTokenVerificationFailedError("verify response missing user")
	}
	return data.User, nil
}

// SubmitLead sends a frozen lead payload. Structured rejections come
// back as a lead-rejected error carrying the combined message; the
// success payload is checked against the response contract before use.
func (c *Client) SubmitLead(ctx context.Context, payload *models.LeadPayload) (*models.SubmissionResult, error) {
	env, err := c.post(ctx, "/api/submit-lead", payload, "")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, commonerrors.NewLeadSubmitRejectedError(env.Message, env.Errors)
	}
	if err := validateSubmissionResult(env.Data); err != nil {
		c.log.Warn("submit-lead response failed contract check", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, commonerrors.NewBadBackendResponseError(err.Error())
	}
	var result models.SubmissionResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return nil, commonerrors.NewBadBackendResponseError(err.Error())
	}
	return &result, nil
}

// AdminUsers lists all users. Requires an admin bearer token.
func (c *Client) AdminUsers(ctx context.Context, token string) ([]models.AdminUser, error) {
	var users []models.AdminUser
	if err := c.getAdmin(ctx, "/api/admin/users", token, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AdminAccounts lists all accounts.
func (c *Client) AdminAccounts(ctx context.Context, token string) ([]models.Account, error) {
	var accounts []models.Account
	if err := c.getAdmin(ctx, "/api/admin/accounts", token, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// AdminLeads lists all submitted leads.
func (c *Client) AdminLeads(ctx context.Context, token string) ([]models.Lead, error) {
	var leads []models.Lead
	if err := c.getAdmin(ctx, "/api/admin/leads", token, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// AdminStats fetches the dashboard aggregates.
func (c *Client) AdminStats(ctx context.Context, token string) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := c.getAdmin(ctx, "/api/admin/stats", token, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health pings the backend's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return commonerrors.NewBackendUnreachableError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

func (c *Client) getAdmin(ctx context.Context, path, token string, out interface{}) error {
	env, err := c.get(ctx, path, token)
	if err != nil {
		return err
	}
	if !env.Success {
		return commonerrors.NewAdminAccessDeniedError()
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return commonerrors.NewBadBackendResponseError(err.Error())
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, token string) (*envelope, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path, token string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

// do executes the request and decodes the envelope. Non-2xx statuses
// are not an error by themselves; the envelope's success flag decides.
func (c *Client) do(req *http.Request) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, commonerrors.NewBackendUnreachableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, commonerrors.NewBackendUnreachableError(err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, commonerrors.NewBadBackendResponseError(
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}
	return &env, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
