// Package admin gates the dashboard data behind the admin role.
package admin

import (
	"context"

	"lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/form/store"
	"lead-capture/internal/models"
)

// API is the slice of the backend the dashboard needs.
type API interface {
	AdminUsers(ctx context.Context, token string) ([]models.AdminUser, error)
	AdminAccounts(ctx context.Context, token string) ([]models.Account, error)
	AdminLeads(ctx context.Context, token string) ([]models.Lead, error)
	AdminStats(ctx context.Context, token string) (*models.DashboardStats, error)
}

// Dashboard serves the admin overview for one session.
type Dashboard struct {
	store *store.Store
	api   API
	log   logger.Logger
}

// NewDashboard wires the dashboard for a session.
func NewDashboard(s *store.Store, api API, log logger.Logger) *Dashboard {
	return &Dashboard{store: s, api: api, log: log}
}

// Overview fetches everything the dashboard shows. Non-admin sessions
// are refused before any backend call happens; the backend enforces the
// same rule on its side, this check just fails fast.
func (d *Dashboard) Overview(ctx context.Context) (*models.AdminOverview, error) {
	auth := d.store.Auth()
	if !auth.IsAuthenticated || !auth.User.IsAdmin() {
		return nil, errors.NewAdminAccessDeniedError()
	}

	users, err := d.api.AdminUsers(ctx, auth.Token)
	if err != nil {
		return nil, err
	}
	accounts, err := d.api.AdminAccounts(ctx, auth.Token)
	if err != nil {
		return nil, err
	}
	leads, err := d.api.AdminLeads(ctx, auth.Token)
	if err != nil {
		return nil, err
	}
	stats, err := d.api.AdminStats(ctx, auth.Token)
	if err != nil {
		return nil, err
	}

	d.log.Info("admin overview served", map[string]interface{}{
		"session_id": d.store.SessionID(),
		"user_id":    auth.User.ID,
		"leads":      len(leads),
	})
	return &models.AdminOverview{
		Users:    users,
		Accounts: accounts,
		Leads:    leads,
		Stats:    stats,
	}, nil
}
