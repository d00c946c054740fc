package http

import (
	"errors"
	"net/http"

	"quiz-gate-service/internal/app"
	"quiz-gate-service/internal/domain"

	"github.com/gin-gonic/gin"
)

// SubmissionObserver counts form submissions by result.
type SubmissionObserver interface {
	ObserveSubmission(form, result string)
}

// RegistrationHandler serves the registration and contact forms.
type RegistrationHandler struct {
	service  *app.RegistrationService
	observer SubmissionObserver
}

func NewRegistrationHandler(service *app.RegistrationService, observer SubmissionObserver) *RegistrationHandler {
	return &RegistrationHandler{service: service, observer: observer}
}

type registrationRequest struct {
	domain.Registration
	UserID string `json:"userId"`
}

func (h *RegistrationHandler) SubmitRegistration(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.observe("registration", domain.SubmissionValidation)
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.service.Submit(c.Request.Context(), req.UserID, req.Registration); err != nil {
		h.observe("registration", kindOf(err))
		writeError(c, err)
		return
	}
	h.observe("registration", "")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Registration submitted successfully"})
}

func (h *RegistrationHandler) SubmitContact(c *gin.Context) {
	var req domain.ContactMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		h.observe("contact", domain.SubmissionValidation)
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.service.SubmitContact(c.Request.Context(), req); err != nil {
		h.observe("contact", kindOf(err))
		writeError(c, err)
		return
	}
	h.observe("contact", "")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Form submitted successfully"})
}

func (h *RegistrationHandler) observe(form string, kind domain.SubmissionKind) {
	if h.observer == nil {
		return
	}
	result := string(kind)
	if result == "" {
		result = "ok"
	}
	h.observer.ObserveSubmission(form, result)
}

func kindOf(err error) domain.SubmissionKind {
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Kind
	}
	return domain.SubmissionServer
}
