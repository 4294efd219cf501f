// internal/models/submission.go
package models

// SubmissionResult is the success payload returned by the backend's
// submit-lead endpoint.
type SubmissionResult struct {
	LeadID                  string `json:"leadId"`
	AccountID               string `json:"accountId"`
	NextStepURL             string `json:"nextStepUrl"`
	EstimatedProcessingTime string `json:"estimatedProcessingTime"`
	IsFirstTimeUser         bool   `json:"isFirstTimeUser,omitempty"`
}

// SubmissionState tracks one submission lifecycle. After a completed
// attempt at most one of IsSuccess/Error is meaningfully set; IsLoading
// is true only strictly between start and resolution; Result is
// populated only on success.
type SubmissionState struct {
	IsLoading bool              `json:"isLoading"`
	IsSuccess bool              `json:"isSuccess"`
	Error     string            `json:"error,omitempty"`
	Result    *SubmissionResult `json:"result,omitempty"`
}

// Idle reports whether no attempt has started or resolved.
func (s SubmissionState) Idle() bool {
	return !s.IsLoading && !s.IsSuccess && s.Error == "" && s.Result == nil
}

// LeadPayload is the submit-lead request body: the form fields plus the
// authenticated user's identifier, or null for anonymous submissions.
type LeadPayload struct {
	LoanAmount string   `json:"loanAmount"`
	LoanType   LoanType `json:"loanType"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	UserID     *int64   `json:"userId"`
}

// NewLeadPayload freezes the current form data and user identity into a
// submission payload. Retries reuse the frozen payload verbatim.
func NewLeadPayload(form FormData, user *User) *LeadPayload {
	p := &LeadPayload{
		LoanAmount: form.LoanAmount,
		LoanType:   form.LoanType,
		Name:       form.Name,
		Email:      form.Email,
		Phone:      form.Phone,
	}
	if user != nil {
		id := user.ID
		p.UserID = &id
	}
	return p
}
