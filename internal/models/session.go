package models

import "time"

// WizardSession is the durable snapshot of one embedded form instance.
// It carries everything needed to resume the wizard after a restart
// except the auth token, which lives under its own durable key.
type WizardSession struct {
	ID          string          `json:"id"`
	CurrentStep int             `json:"currentStep"`
	FormData    FormData        `json:"formData"`
	Errors      FormErrors      `json:"errors,omitempty"`
	Submission  SubmissionState `json:"submission"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Touch updates the last-modified timestamp.
func (s *WizardSession) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
