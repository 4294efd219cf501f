// Package store holds the per-session wizard state behind a single
// mutex. All mutations go through explicit action methods so the state
// invariants are enforced in one place.
package store

import (
	"context"
	"sync"
	"time"

	"lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/models"
)

// TokenStore persists the auth token for a session across restarts.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// SubmissionUpdate is a partial update for the submission state. Nil
// fields are left untouched; ClearError and ClearResult reset their
// field to the zero value.
type SubmissionUpdate struct {
	IsLoading   *bool
	IsSuccess   *bool
	Error       *string
	Result      *models.SubmissionResult
	ClearError  bool
	ClearResult bool
}

// Store is the state container for one wizard session.
type Store struct {
	mu sync.Mutex

	sessionID   string
	currentStep int
	formData    models.FormData
	errors      models.FormErrors
	auth        models.AuthState
	submission  models.SubmissionState
	createdAt   time.Time
	updatedAt   time.Time

	tokens TokenStore
	log    logger.Logger
}

// New returns a store in the initial wizard state: step 1, empty form,
// no errors, unauthenticated, submission idle.
func New(sessionID string, tokens TokenStore, log logger.Logger) *Store {
	now := time.Now().UTC()
	return &Store{
		sessionID:   sessionID,
		currentStep: models.FirstStep,
		errors:      models.FormErrors{},
		createdAt:   now,
		updatedAt:   now,
		tokens:      tokens,
		log:         log,
	}
}

// SessionID returns the session identifier.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Snapshot returns a copy of the durable session state. The auth token
// is intentionally absent; it lives under its own durable key.
func (s *Store) Snapshot() models.WizardSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	errsCopy := make(models.FormErrors, len(s.errors))
	for k, v := range s.errors {
		errsCopy[k] = v
	}
	return models.WizardSession{
		ID:          s.sessionID,
		CurrentStep: s.currentStep,
		FormData:    s.formData,
		Errors:      errsCopy,
		Submission:  s.submission,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}

// Restore replaces the wizard state with a previously saved snapshot.
// Auth state is not part of the snapshot and is untouched.
func (s *Store) Restore(session models.WizardSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentStep = session.CurrentStep
	if s.currentStep < models.FirstStep || s.currentStep > models.LastStep {
		s.currentStep = models.FirstStep
	}
	s.formData = session.FormData
	s.errors = make(models.FormErrors, len(session.Errors))
	for k, v := range session.Errors {
		s.errors[k] = v
	}
	s.submission = session.Submission
	// A submission can never still be in flight after a restore.
	s.submission.IsLoading = false
	if !session.CreatedAt.IsZero() {
		s.createdAt = session.CreatedAt
	}
	s.updatedAt = time.Now().UTC()
}

// CurrentStep returns the active wizard step.
func (s *Store) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStep
}

// SetCurrentStep moves the wizard to the given step.
func (s *Store) SetCurrentStep(step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if step < models.FirstStep || step > models.LastStep {
		return errors.NewInvalidStepTransitionError(s.currentStep, step)
	}
	s.currentStep = step
	s.updatedAt = time.Now().UTC()
	return nil
}

// FormData returns a copy of the captured fields.
func (s *Store) FormData() models.FormData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formData
}

// UpdateLoanDetails merges the non-nil fields into the step-1 data.
// Editing a field that currently carries a validation error clears the
// whole error map; editing a clean field leaves other errors showing.
func (s *Store) UpdateLoanDetails(update models.LoanDetailsUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touchedErroring := false
	if update.LoanAmount != nil {
		s.formData.LoanAmount = *update.LoanAmount
		touchedErroring = touchedErroring || s.errors[models.FieldLoanAmount] != ""
	}
	if update.LoanType != nil {
		s.formData.LoanType = *update.LoanType
		touchedErroring = touchedErroring || s.errors[models.FieldLoanType] != ""
	}
	if touchedErroring {
		s.clearErrorsLocked()
	}
	s.updatedAt = time.Now().UTC()
}

// UpdateContactDetails merges the non-nil fields into the step-2 data
// with the same error-clearing behavior as UpdateLoanDetails.
func (s *Store) UpdateContactDetails(update models.ContactDetailsUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touchedErroring := false
	if update.Name != nil {
		s.formData.Name = *update.Name
		touchedErroring = touchedErroring || s.errors[models.FieldName] != ""
	}
	if update.Email != nil {
		s.formData.Email = *update.Email
		touchedErroring = touchedErroring || s.errors[models.FieldEmail] != ""
	}
	if update.Phone != nil {
		s.formData.Phone = *update.Phone
		touchedErroring = touchedErroring || s.errors[models.FieldPhone] != ""
	}
	if touchedErroring {
		s.clearErrorsLocked()
	}
	s.updatedAt = time.Now().UTC()
}

// Errors returns a copy of the current validation errors.
func (s *Store) Errors() models.FormErrors {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(models.FormErrors, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// SetErrors replaces the error map wholesale.
func (s *Store) SetErrors(errs models.FormErrors) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errors = make(models.FormErrors, len(errs))
	for k, v := range errs {
		s.errors[k] = v
	}
	s.updatedAt = time.Now().UTC()
}

// ClearErrors empties the error map. Safe to call when already empty.
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearErrorsLocked()
	s.updatedAt = time.Now().UTC()
}

func (s *Store) clearErrorsLocked() {
	if len(s.errors) > 0 {
		s.errors = models.FormErrors{}
	}
}

// Auth returns the current auth snapshot.
func (s *Store) Auth() models.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

// SetAuth installs a new auth state and persists or clears the durable
// token to match. A persistence failure does not roll back the
// in-memory state; the session stays usable and only resumption after
// a restart is degraded.
func (s *Store) SetAuth(ctx context.Context, auth models.AuthState) error {
	s.mu.Lock()
	s.auth = auth
	s.updatedAt = time.Now().UTC()
	token := auth.Token
	s.mu.Unlock()

	if s.tokens == nil {
		return nil
	}
	var err error
	if token != "" {
		err = s.tokens.Save(ctx, token)
	} else {
		err = s.tokens.Clear(ctx)
	}
	if err != nil {
		s.log.Warn("failed to persist auth token", map[string]interface{}{
			"session_id": s.sessionID,
			"error":      err.Error(),
		})
		return errors.NewTokenStorageFailedError(err)
	}
	return nil
}

// Logout drops the auth state and the persisted token. Form data and
// wizard position are untouched.
func (s *Store) Logout(ctx context.Context) error {
	return s.SetAuth(ctx, models.Unauthenticated())
}

// Submission returns the current submission state.
func (s *Store) Submission() models.SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submission
}

// SetSubmission merges a partial submission update.
func (s *Store) SetSubmission(update SubmissionUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.IsLoading != nil {
		s.submission.IsLoading = *update.IsLoading
	}
	if update.IsSuccess != nil {
		s.submission.IsSuccess = *update.IsSuccess
	}
	if update.ClearError {
		s.submission.Error = ""
	} else if update.Error != nil {
		s.submission.Error = *update.Error
	}
	if update.ClearResult {
		s.submission.Result = nil
	} else if update.Result != nil {
		s.submission.Result = update.Result
	}
	s.updatedAt = time.Now().UTC()
}

// ResetForm returns the wizard to its initial state: step 1, empty
// fields, no errors, submission idle. Auth survives the reset.
func (s *Store) ResetForm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentStep = models.FirstStep
	s.formData = models.FormData{}
	s.errors = models.FormErrors{}
	s.submission = models.SubmissionState{}
	s.updatedAt = time.Now().UTC()
}
