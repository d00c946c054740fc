package http

import (
	"errors"
	"net/http"

	"quiz-gate-service/internal/domain"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	var subErr *domain.SubmissionError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict, "already_answered"
	case errors.Is(err, domain.ErrNoAnswer):
		return http.StatusConflict, "no_answer"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrSeed):
		return http.StatusBadRequest, "invalid_question_count"
	case errors.Is(err, domain.ErrOptionNotFound):
		return http.StatusBadRequest, "option_not_found"
	case errors.Is(err, domain.ErrUserBlocked):
		return http.StatusForbidden, "blocked"
	case errors.As(err, &subErr):
		switch subErr.Kind {
		case domain.SubmissionValidation:
			return http.StatusBadRequest, "validation"
		case domain.SubmissionNetwork:
			return http.StatusBadGateway, "network"
		}
		return http.StatusInternalServerError, "server"
	}
	return http.StatusInternalServerError, "internal"
}

// errorMessage is the user-visible text for err; internal failures are not echoed.
func errorMessage(err error, status int) string {
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Msg
	}
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	c.AbortWithStatusJSON(status, gin.H{"error": errorMessage(err, status), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": "bad_request"})
}
