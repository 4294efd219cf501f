package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/models"
)

type fakeTokenStore struct {
	saved   string
	cleared bool
	failOn  string
}

func (f *fakeTokenStore) Save(_ context.Context, token string) error {
	if f.failOn == "save" {
		return errors.New("redis down")
	}
	f.saved = token
	return nil
}

func (f *fakeTokenStore) Load(_ context.Context) (string, error) {
	return f.saved, nil
}

func (f *fakeTokenStore) Clear(_ context.Context) error {
	if f.failOn == "clear" {
		return errors.New("redis down")
	}
	f.saved = ""
	f.cleared = true
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakeTokenStore) {
	t.Helper()
	tokens := &fakeTokenStore{}
	return New("sess-1", tokens, logger.NewTestLogger(t)), tokens
}

func TestNew_InitialState(t *testing.T) {
	s, _ := newTestStore(t)

	assert.Equal(t, models.FirstStep, s.CurrentStep())
	assert.True(t, s.FormData().IsEmpty())
	assert.Empty(t, s.Errors())
	assert.False(t, s.Auth().IsAuthenticated)
	assert.True(t, s.Submission().Idle())
}

func TestSetCurrentStep(t *testing.T) {
	tests := []struct {
		name    string
		step    int
		wantErr bool
	}{
		{name: "forward to step 2", step: models.StepContactDetails},
		{name: "back to step 1", step: models.StepLoanDetails},
		{name: "below range", step: 0, wantErr: true},
		{name: "above range", step: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			err := s.SetCurrentStep(tt.step)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, commonerrors.ErrCodeInvalidStepTransition, commonerrors.CodeOf(err))
				assert.Equal(t, models.FirstStep, s.CurrentStep())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.step, s.CurrentStep())
			}
		})
	}
}

func TestUpdateLoanDetails_PartialMerge(t *testing.T) {
	s, _ := newTestStore(t)

	amount := "5000"
	s.UpdateLoanDetails(models.LoanDetailsUpdate{LoanAmount: &amount})
	loanType := models.LoanTypeBusiness
	s.UpdateLoanDetails(models.LoanDetailsUpdate{LoanType: &loanType})

	form := s.FormData()
	assert.Equal(t, "5000", form.LoanAmount)
	assert.Equal(t, models.LoanTypeBusiness, form.LoanType)
}

func TestUpdate_EditingErroringFieldClearsAllErrors(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetErrors(models.FormErrors{
		models.FieldLoanAmount: "Loan amount is required",
		models.FieldLoanType:   "Please select a loan type",
	})

	amount := "5000"
	s.UpdateLoanDetails(models.LoanDetailsUpdate{LoanAmount: &amount})

	// Editing a field that has an error clears every error, including
	// the other field's.
	assert.Empty(t, s.Errors())
}

func TestUpdate_EditingCleanFieldKeepsErrors(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetErrors(models.FormErrors{models.FieldLoanType: "Please select a loan type"})

	amount := "5000"
	s.UpdateLoanDetails(models.LoanDetailsUpdate{LoanAmount: &amount})

	// loanAmount carried no error, so the loanType error stays visible.
	assert.Equal(t, "Please select a loan type", s.Errors()[models.FieldLoanType])
	assert.Equal(t, "5000", s.FormData().LoanAmount)
}

func TestUpdateContactDetails_ClearsErrors(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetErrors(models.FormErrors{
		models.FieldName:  "Full name is required",
		models.FieldEmail: "Email address is required",
	})

	name := "John Doe"
	s.UpdateContactDetails(models.ContactDetailsUpdate{Name: &name})

	assert.Empty(t, s.Errors())
	assert.Equal(t, "John Doe", s.FormData().Name)
}

func TestUpdateContactDetails_CleanFieldKeepsErrors(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetErrors(models.FormErrors{models.FieldEmail: "Email address is required"})

	phone := "5551234567"
	s.UpdateContactDetails(models.ContactDetailsUpdate{Phone: &phone})

	assert.Equal(t, "Email address is required", s.Errors()[models.FieldEmail])
}

func TestClearErrors_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)

	s.ClearErrors()
	s.ClearErrors()
	assert.Empty(t, s.Errors())
}

func TestErrors_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetErrors(models.FormErrors{models.FieldName: "Full name is required"})

	errs := s.Errors()
	errs[models.FieldName] = "mutated"

	assert.Equal(t, "Full name is required", s.Errors()[models.FieldName])
}

func TestSetAuth_PersistsToken(t *testing.T) {
	s, tokens := newTestStore(t)
	user := &models.User{ID: 7, Name: "Jane", Email: "jane@example.com", Role: models.RoleUser}

	err := s.SetAuth(context.Background(), models.Authenticated(user, "tok-abc"))
	require.NoError(t, err)

	assert.Equal(t, "tok-abc", tokens.saved)
	auth := s.Auth()
	assert.True(t, auth.Consistent())
	assert.True(t, auth.IsAuthenticated)
	assert.Equal(t, int64(7), auth.User.ID)
}

func TestSetAuth_StorageFailureKeepsMemoryState(t *testing.T) {
	tokens := &fakeTokenStore{failOn: "save"}
	s := New("sess-1", tokens, logger.NewTestLogger(t))
	user := &models.User{ID: 1, Role: models.RoleUser}

	err := s.SetAuth(context.Background(), models.Authenticated(user, "tok"))
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeTokenStorageFailed, commonerrors.CodeOf(err))

	// The in-memory session is still authenticated.
	assert.True(t, s.Auth().IsAuthenticated)
}

func TestLogout_ClearsTokenButKeepsForm(t *testing.T) {
	s, tokens := newTestStore(t)
	user := &models.User{ID: 3, Role: models.RoleUser}
	require.NoError(t, s.SetAuth(context.Background(), models.Authenticated(user, "tok")))

	amount := "25000"
	s.UpdateLoanDetails(models.LoanDetailsUpdate{LoanAmount: &amount})

	require.NoError(t, s.Logout(context.Background()))

	assert.True(t, tokens.cleared)
	auth := s.Auth()
	assert.False(t, auth.IsAuthenticated)
	assert.Nil(t, auth.User)
	assert.True(t, auth.Consistent())
	assert.Equal(t, "25000", s.FormData().LoanAmount)
}

func TestSetSubmission_PartialMerge(t *testing.T) {
	s, _ := newTestStore(t)

	loading := true
	s.SetSubmission(SubmissionUpdate{IsLoading: &loading})
	assert.True(t, s.Submission().IsLoading)

	loading = false
	errMsg := "Unable to connect to our servers. Please check your internet connection and try again."
	s.SetSubmission(SubmissionUpdate{IsLoading: &loading, Error: &errMsg})

	sub := s.Submission()
	assert.False(t, sub.IsLoading)
	assert.Equal(t, errMsg, sub.Error)

	success := true
	s.SetSubmission(SubmissionUpdate{
		IsSuccess:  &success,
		ClearError: true,
		Result:     &models.SubmissionResult{LeadID: "lead-1"},
	})

	sub = s.Submission()
	assert.True(t, sub.IsSuccess)
	assert.Empty(t, sub.Error)
	require.NotNil(t, sub.Result)
	assert.Equal(t, "lead-1", sub.Result.LeadID)
}

func TestResetForm_PreservesAuth(t *testing.T) {
	s, _ := newTestStore(t)
	user := &models.User{ID: 9, Role: models.RoleAdmin}
	require.NoError(t, s.SetAuth(context.Background(), models.Authenticated(user, "tok")))

	amount := "5000"
	s.UpdateLoanDetails(models.LoanDetailsUpdate{LoanAmount: &amount})
	require.NoError(t, s.SetCurrentStep(models.StepContactDetails))
	s.SetErrors(models.FormErrors{models.FieldName: "Full name is required"})
	success := true
	s.SetSubmission(SubmissionUpdate{IsSuccess: &success, Result: &models.SubmissionResult{LeadID: "l1"}})

	s.ResetForm()

	assert.Equal(t, models.FirstStep, s.CurrentStep())
	assert.True(t, s.FormData().IsEmpty())
	assert.Empty(t, s.Errors())
	assert.True(t, s.Submission().Idle())
	assert.True(t, s.Auth().IsAuthenticated)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	amount := "75000"
	loanType := models.LoanTypeMortgage
	s.UpdateLoanDetails(models.LoanDetailsUpdate{LoanAmount: &amount, LoanType: &loanType})
	require.NoError(t, s.SetCurrentStep(models.StepContactDetails))
	s.SetErrors(models.FormErrors{models.FieldPhone: "Phone number is required"})

	snap := s.Snapshot()

	restored := New("sess-1", nil, logger.NewNoOpLogger())
	restored.Restore(snap)

	assert.Equal(t, models.StepContactDetails, restored.CurrentStep())
	assert.Equal(t, "75000", restored.FormData().LoanAmount)
	assert.Equal(t, models.LoanTypeMortgage, restored.FormData().LoanType)
	assert.Equal(t, "Phone number is required", restored.Errors()[models.FieldPhone])
}

func TestRestore_DropsInFlightSubmission(t *testing.T) {
	snap := models.WizardSession{
		ID:          "sess-1",
		CurrentStep: models.StepContactDetails,
		Submission:  models.SubmissionState{IsLoading: true},
	}

	s := New("sess-1", nil, logger.NewNoOpLogger())
	s.Restore(snap)

	assert.False(t, s.Submission().IsLoading)
}

func TestRestore_ClampsInvalidStep(t *testing.T) {
	s := New("sess-1", nil, logger.NewNoOpLogger())
	s.Restore(models.WizardSession{ID: "sess-1", CurrentStep: 42})

	assert.Equal(t, models.FirstStep, s.CurrentStep())
}
