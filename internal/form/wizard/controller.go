// Package wizard drives the two-step form flow: step transitions,
// validation gating, submission lifecycle and retry.
package wizard

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/common/metrics"
	"lead-capture/internal/common/observability"
	"lead-capture/internal/form/store"
	"lead-capture/internal/form/validate"
	"lead-capture/internal/models"
)

// Phase is the externally visible wizard state, derived from the store.
type Phase string

const (
	PhaseStep1      Phase = "loan_details"
	PhaseStep2      Phase = "contact_details"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseFailed     Phase = "failed"
)

// Submitter sends a frozen lead payload to the backend. Rejections and
// transport failures come back as coded errors; only a nil error
// carries a result.
type Submitter interface {
	SubmitLead(ctx context.Context, payload *models.LeadPayload) (*models.SubmissionResult, error)
}

// AuditTrail records submission attempts and outcomes. Write failures
// never affect the submission itself.
type AuditTrail interface {
	RecordAttempt(ctx context.Context, sessionID string, attempt int64, payload *models.LeadPayload) error
	RecordOutcome(ctx context.Context, sessionID string, attempt int64, outcome, leadID, errorMessage string) error
}

// Notifier is told about accepted leads so confirmations can go out.
type Notifier interface {
	LeadAccepted(ctx context.Context, payload *models.LeadPayload, result *models.SubmissionResult)
}

// Controller coordinates one session's wizard flow on top of its store.
type Controller struct {
	store      *store.Store
	submitter  Submitter
	audit      AuditTrail
	notifier   Notifier
	obs        *observability.Observability
	onResolved func(ctx context.Context)
	log        logger.Logger

	mu      sync.Mutex
	attempt int64
	frozen  *models.LeadPayload
}

// Option configures optional controller collaborators.
type Option func(*Controller)

// WithAuditTrail wires the submission audit log.
func WithAuditTrail(audit AuditTrail) Option {
	return func(c *Controller) { c.audit = audit }
}

// WithNotifier wires the confirmation notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithObservability wires tracing and OTel submission metrics.
func WithObservability(obs *observability.Observability) Option {
	return func(c *Controller) { c.obs = obs }
}

// WithResolutionHook registers a callback invoked after each submission
// resolution lands, so the owning layer can persist the new state.
func WithResolutionHook(fn func(ctx context.Context)) Option {
	return func(c *Controller) { c.onResolved = fn }
}

// New returns a controller for the given session store.
func New(s *store.Store, submitter Submitter, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:     s,
		submitter: submitter,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase derives the current wizard phase. Success and in-flight states
// take precedence over the step position.
func (c *Controller) Phase() Phase {
	sub := c.store.Submission()
	switch {
	case sub.IsSuccess:
		return PhaseSuccess
	case sub.IsLoading:
		return PhaseSubmitting
	case sub.Error != "":
		return PhaseFailed
	}
	if c.store.CurrentStep() == models.StepContactDetails {
		return PhaseStep2
	}
	return PhaseStep1
}

// Next validates the loan-details step and advances to contact details.
// On failure the error map is installed and the step does not move.
func (c *Controller) Next() error {
	step := c.store.CurrentStep()
	if step != models.StepLoanDetails {
		return errors.NewInvalidStepTransitionError(step, step+1)
	}

	errs := validate.Step1(c.store.FormData())
	if len(errs) > 0 {
		c.store.SetErrors(errs)
		c.countValidationFailures(step, errs)
		return errors.NewValidationFailedError(step, len(errs))
	}

	c.store.ClearErrors()
	if err := c.store.SetCurrentStep(models.StepContactDetails); err != nil {
		return err
	}
	metrics.WizardStepTransitions.WithLabelValues("forward").Inc()
	return nil
}

// Back returns to the loan-details step. Captured fields survive; no
// validation runs on the way back.
func (c *Controller) Back() error {
	step := c.store.CurrentStep()
	if step != models.StepContactDetails {
		return errors.NewInvalidStepTransitionError(step, step-1)
	}
	if c.store.Submission().IsLoading {
		return errors.NewSubmissionInFlightError()
	}
	if err := c.store.SetCurrentStep(models.StepLoanDetails); err != nil {
		return err
	}
	metrics.WizardStepTransitions.WithLabelValues("backward").Inc()
	return nil
}

// Submit validates the contact-details step, freezes the payload and
// starts an asynchronous submission. A second call while one is in
// flight is refused.
func (c *Controller) Submit(ctx context.Context) error {
	step := c.store.CurrentStep()
	if step != models.LastStep {
		return errors.NewInvalidStepTransitionError(step, step)
	}
	if c.store.Submission().IsLoading {
		return errors.NewSubmissionInFlightError()
	}

	errs := validate.Step2(c.store.FormData())
	if len(errs) > 0 {
		c.store.SetErrors(errs)
		c.countValidationFailures(step, errs)
		return errors.NewValidationFailedError(step, len(errs))
	}
	c.store.ClearErrors()

	auth := c.store.Auth()
	payload := models.NewLeadPayload(c.store.FormData(), auth.User)

	c.mu.Lock()
	c.attempt++
	seq := c.attempt
	c.frozen = payload
	c.mu.Unlock()

	c.begin(ctx, seq, payload)
	return nil
}

// Retry resends the frozen payload from the last failed attempt. The
// form is not re-validated; what was sent before is sent again.
func (c *Controller) Retry(ctx context.Context) error {
	sub := c.store.Submission()
	if sub.IsLoading {
		return errors.NewSubmissionInFlightError()
	}
	if sub.Error == "" {
		return errors.NewInvalidStepTransitionError(c.store.CurrentStep(), c.store.CurrentStep())
	}

	c.mu.Lock()
	payload := c.frozen
	if payload == nil {
		c.mu.Unlock()
		return errors.NewInvalidStepTransitionError(c.store.CurrentStep(), c.store.CurrentStep())
	}
	c.attempt++
	seq := c.attempt
	c.mu.Unlock()

	c.begin(ctx, seq, payload)
	return nil
}

// StartOver returns the wizard to a blank step 1. Any in-flight
// submission resolution arriving afterwards is discarded as stale.
// The reset happens under the attempt lock so a resolution can never
// slip in between the sequence bump and the wipe.
func (c *Controller) StartOver() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempt++
	c.frozen = nil
	c.store.ResetForm()
}

func (c *Controller) begin(ctx context.Context, seq int64, payload *models.LeadPayload) {
	loading := true
	c.store.SetSubmission(store.SubmissionUpdate{
		IsLoading:   &loading,
		ClearError:  true,
		ClearResult: true,
	})

	if c.audit != nil {
		if err := c.audit.RecordAttempt(ctx, c.store.SessionID(), seq, payload); err != nil {
			c.log.Warn("failed to record submission attempt", map[string]interface{}{
				"session_id": c.store.SessionID(),
				"error":      err.Error(),
			})
		}
	}

	// Detach from the request context so an early client disconnect
	// does not abort a submission already underway.
	go c.run(context.WithoutCancel(ctx), seq, payload)
}

func (c *Controller) run(ctx context.Context, seq int64, payload *models.LeadPayload) {
	if c.obs != nil {
		var span trace.Span
		ctx, span = c.obs.StartSubmissionSpan(ctx, c.store.SessionID())
		defer span.End()
	}

	start := time.Now()
	result, err := c.submitter.SubmitLead(ctx, payload)
	elapsed := time.Since(start)
	metrics.LeadSubmissionDuration.Observe(elapsed.Seconds())

	c.resolve(ctx, seq, payload, result, err, elapsed)
}

// resolve applies a submission outcome. Only the latest attempt may
// touch the state; anything older is counted and dropped. The staleness
// check and the store write happen under one lock so a StartOver can
// never interleave between them.
func (c *Controller) resolve(ctx context.Context, seq int64, payload *models.LeadPayload, result *models.SubmissionResult, err error, elapsed time.Duration) {
	loading := false
	var outcome, leadID, msg string

	c.mu.Lock()
	if seq != c.attempt {
		c.mu.Unlock()
		metrics.LeadSubmissions.WithLabelValues(metrics.OutcomeStale).Inc()
		c.log.Info("discarding stale submission resolution", map[string]interface{}{
			"session_id": c.store.SessionID(),
			"attempt":    seq,
		})
		return
	}

	switch {
	case err == nil:
		success := true
		c.store.SetSubmission(store.SubmissionUpdate{
			IsLoading:  &loading,
			IsSuccess:  &success,
			ClearError: true,
			Result:     result,
		})
		outcome, leadID = metrics.OutcomeSuccess, result.LeadID

	case errors.CodeOf(err) == errors.ErrCodeLeadSubmitRejected,
		errors.CodeOf(err) == errors.ErrCodeBadBackendResponse:
		msg = errorMessage(err)
		c.store.SetSubmission(store.SubmissionUpdate{
			IsLoading: &loading,
			Error:     &msg,
		})
		outcome = metrics.OutcomeRejected

	default:
		msg = errorMessage(errors.NewBackendUnreachableError(err))
		c.store.SetSubmission(store.SubmissionUpdate{
			IsLoading: &loading,
			Error:     &msg,
		})
		outcome = metrics.OutcomeTransport
	}
	c.mu.Unlock()

	switch outcome {
	case metrics.OutcomeSuccess:
		c.recordOutcome(ctx, seq, outcome, leadID, "", elapsed)
		c.log.Info("lead submitted", map[string]interface{}{
			"session_id": c.store.SessionID(),
			"lead_id":    result.LeadID,
			"account_id": result.AccountID,
		})
		if c.notifier != nil {
			c.notifier.LeadAccepted(ctx, payload, result)
		}
	case metrics.OutcomeRejected:
		c.recordOutcome(ctx, seq, outcome, "", msg, elapsed)
		c.log.Warn("lead submission rejected", map[string]interface{}{
			"session_id": c.store.SessionID(),
			"error":      msg,
		})
	case metrics.OutcomeTransport:
		c.recordOutcome(ctx, seq, outcome, "", msg, elapsed)
		c.log.Error("lead submission transport failure", map[string]interface{}{
			"session_id": c.store.SessionID(),
			"error":      err.Error(),
		})
	}

	if c.onResolved != nil {
		c.onResolved(ctx)
	}
}

func (c *Controller) recordOutcome(ctx context.Context, seq int64, outcome, leadID, errMsg string, elapsed time.Duration) {
	metrics.LeadSubmissions.WithLabelValues(outcome).Inc()
	if c.obs != nil {
		c.obs.RecordSubmission(ctx, outcome)
		c.obs.RecordSubmissionDuration(ctx, elapsed, outcome)
	}
	if c.audit != nil {
		if err := c.audit.RecordOutcome(ctx, c.store.SessionID(), seq, outcome, leadID, errMsg); err != nil {
			c.log.Warn("failed to record submission outcome", map[string]interface{}{
				"session_id": c.store.SessionID(),
				"error":      err.Error(),
			})
		}
	}
}

func (c *Controller) countValidationFailures(step int, errs models.FormErrors) {
	for field := range errs {
		metrics.ValidationFailures.WithLabelValues(strconv.Itoa(step), field).Inc()
	}
}

func errorMessage(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return stdErr.Message
	}
	return err.Error()
}
