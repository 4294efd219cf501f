package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"lead-capture/internal/auth"
	"lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/common/metrics"
	"lead-capture/internal/form/session"
	"lead-capture/internal/models"
)

// HealthChecker reports downstream health for the /health endpoint.
type HealthChecker interface {
	Check(ctx context.Context) map[string]string
}

type handlers struct {
	manager *session.Manager
	checker HealthChecker
	log     logger.Logger
}

func newHandlers(manager *session.Manager, health HealthChecker, log logger.Logger) *handlers {
	return &handlers{manager: manager, checker: health, log: log}
}

// sessionView is the client-facing session state.
type sessionView struct {
	ID          string                 `json:"id"`
	Phase       string                 `json:"phase"`
	CurrentStep int                    `json:"currentStep"`
	FormData    models.FormData        `json:"formData"`
	Errors      models.FormErrors      `json:"errors"`
	Auth        authView               `json:"auth"`
	Submission  models.SubmissionState `json:"submission"`
}

type authView struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	Ready           bool         `json:"ready"`
	User            *models.User `json:"user,omitempty"`
}

func viewOf(sess *session.Session) sessionView {
	authState := sess.Store.Auth()
	return sessionView{
		ID:          sess.ID,
		Phase:       string(sess.Controller.Phase()),
		CurrentStep: sess.Store.CurrentStep(),
		FormData:    sess.Store.FormData(),
		Errors:      sess.Store.Errors(),
		Auth: authView{
			IsAuthenticated: authState.IsAuthenticated,
			Ready:           sess.Guard.Ready(),
			User:            authState.User,
		},
		Submission: sess.Store.Submission(),
	}
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, viewOf(sess))
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, map[string]string{"id": id})
}

func (h *handlers) updateLoanDetails(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		LoanAmount *string          `json:"loanAmount"`
		LoanType   *models.LoanType `json:"loanType"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	sess.Store.UpdateLoanDetails(models.LoanDetailsUpdate{
		LoanAmount: body.LoanAmount,
		LoanType:   body.LoanType,
	})
	h.persist(r.Context(), sess)
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) updateContactDetails(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
		Phone *string `json:"phone"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	sess.Store.UpdateContactDetails(models.ContactDetailsUpdate{
		Name:  body.Name,
		Email: body.Email,
		Phone: body.Phone,
	})
	h.persist(r.Context(), sess)
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) next(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	err := sess.Controller.Next()
	h.persist(r.Context(), sess)
	if err != nil {
		h.writeActionResult(w, sess, err)
		return
	}
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) back(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	err := sess.Controller.Back()
	h.persist(r.Context(), sess)
	if err != nil {
		h.writeActionResult(w, sess, err)
		return
	}
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	err := sess.Controller.Submit(r.Context())
	h.persist(r.Context(), sess)
	if err != nil {
		h.writeActionResult(w, sess, err)
		return
	}
	// Submission resolves asynchronously; the client polls the session.
	h.writeData(w, http.StatusAccepted, viewOf(sess))
}

func (h *handlers) retry(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	err := sess.Controller.Retry(r.Context())
	h.persist(r.Context(), sess)
	if err != nil {
		h.writeActionResult(w, sess, err)
		return
	}
	h.writeData(w, http.StatusAccepted, viewOf(sess))
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Controller.StartOver()
	h.persist(r.Context(), sess)
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var creds auth.Credentials
	if !h.decode(w, r, &creds) {
		return
	}
	if _, err := sess.Auth.Login(r.Context(), creds); err != nil {
		h.writeError(w, err)
		return
	}
	h.persist(r.Context(), sess)
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var reg auth.Registration
	if !h.decode(w, r, &reg) {
		return
	}
	if _, err := sess.Auth.Register(r.Context(), reg); err != nil {
		h.writeError(w, err)
		return
	}
	h.persist(r.Context(), sess)
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Auth.Logout(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.persist(r.Context(), sess)
	h.writeData(w, http.StatusOK, viewOf(sess))
}

func (h *handlers) adminOverview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	overview, err := sess.Admin.Overview(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, overview)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	if h.checker != nil {
		checks = h.checker.Check(r.Context())
	}
	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}
	h.writeJSON(w, status, envelope{
		Success: status == http.StatusOK,
		Data:    checks,
	})
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := mux.Vars(r)["id"]
	sess, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *handlers) persist(ctx context.Context, sess *session.Session) {
	if err := h.manager.Save(ctx, sess); err != nil {
		h.log.Warn("failed to persist session snapshot", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		h.writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Message: "Invalid request body",
		})
		return false
	}
	return true
}

// envelope mirrors the backend's response wrapper.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// writeActionResult reports a refused wizard action. Validation
// failures still return the session view so the caller sees the field
// errors that were installed.
func (h *handlers) writeActionResult(w http.ResponseWriter, sess *session.Session, err error) {
	if errors.CodeOf(err) == errors.ErrCodeValidationFailed {
		h.writeJSON(w, http.StatusUnprocessableEntity, envelope{
			Success: false,
			Message: message(err),
			Data:    viewOf(sess),
			Errors:  sess.Store.Errors(),
		})
		return
	}
	h.writeError(w, err)
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeValidationFailed:
		status = http.StatusUnprocessableEntity
	case errors.ErrCodeInvalidStepTransition, errors.ErrCodeSubmissionInFlight:
		status = http.StatusConflict
	case errors.ErrCodeAuthFailed:
		status = http.StatusUnauthorized
	case errors.ErrCodeAdminAccessDenied:
		status = http.StatusForbidden
	case errors.ErrCodeBackendUnreachable:
		status = http.StatusBadGateway
	}
	metrics.RequestErrors.WithLabelValues(errors.GetErrorCategory(code)).Inc()
	h.log.Debug("request refused", map[string]interface{}{
		"code":     string(code),
		"category": errors.GetErrorCategory(code),
		"status":   status,
	})
	h.writeJSON(w, status, envelope{
		Success: false,
		Message: message(err),
	})
}

func (h *handlers) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, envelope{Success: true, Data: data})
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func message(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return stdErr.Message
	}
	return err.Error()
}
