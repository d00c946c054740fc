package http

import (
	"errors"
	"io"
	"net/http"

	"quiz-gate-service/internal/app"
	"quiz-gate-service/internal/domain"

	"github.com/gin-gonic/gin"
)

// QuizHandler exposes the quiz session operations over REST.
type QuizHandler struct {
	service *app.QuizService
}

func NewQuizHandler(service *app.QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

// Register mounts the quiz routes. startGuards run before session creation only.
func (h *QuizHandler) Register(rg *gin.RouterGroup, startGuards ...gin.HandlerFunc) {
	rg.POST("/sessions", append(startGuards, h.start)...)
	rg.GET("/sessions/:id", h.snapshot)
	rg.POST("/sessions/:id/timer", h.beginTimer)
	rg.POST("/sessions/:id/answer", h.answer)
	rg.POST("/sessions/:id/advance", h.advance)
	rg.POST("/sessions/:id/violation", h.violation)
	rg.GET("/progress/:userId", h.progress)
}

type startRequest struct {
	UserID        string `json:"userId"`
	QuestionCount int    `json:"questionCount"`
}

type timerRequest struct {
	DurationSeconds int `json:"durationSeconds"`
}

type answerRequest struct {
	Option string `json:"option" binding:"required"`
}

type violationRequest struct {
	Kind string `json:"kind" binding:"required"`
}

type outcomeResponse struct {
	domain.Outcome
	Destination string `json:"destination"`
}

type snapshotResponse struct {
	domain.Snapshot
	Destination string `json:"destination,omitempty"`
}

func newSnapshotResponse(snap domain.Snapshot) snapshotResponse {
	resp := snapshotResponse{Snapshot: snap}
	if snap.Outcome != nil {
		resp.Destination = snap.Outcome.Destination()
	}
	return resp
}

func (h *QuizHandler) start(c *gin.Context) {
	var req startRequest
	if !bindOptional(c, &req) {
		return
	}
	snap, err := h.service.Start(c.Request.Context(), req.UserID, req.QuestionCount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSnapshotResponse(snap))
}

func (h *QuizHandler) snapshot(c *gin.Context) {
	snap, err := h.service.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSnapshotResponse(snap))
}

func (h *QuizHandler) beginTimer(c *gin.Context) {
	var req timerRequest
	if !bindOptional(c, &req) {
		return
	}
	snap, err := h.service.BeginQuestionTimer(c.Request.Context(), c.Param("id"), req.DurationSeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSnapshotResponse(snap))
}

func (h *QuizHandler) answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "option is required")
		return
	}
	snap, err := h.service.SelectAnswer(c.Request.Context(), c.Param("id"), req.Option)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSnapshotResponse(snap))
}

func (h *QuizHandler) advance(c *gin.Context) {
	snap, err := h.service.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSnapshotResponse(snap))
}

func (h *QuizHandler) violation(c *gin.Context) {
	var req violationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "kind is required")
		return
	}
	kind, err := domain.ParseViolationKind(req.Kind)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	outcome, err := h.service.ReportViolation(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeResponse{Outcome: outcome, Destination: outcome.Destination()})
}

func (h *QuizHandler) progress(c *gin.Context) {
	progress, notice, err := h.service.Progress(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress, "notice": notice})
}

// bindOptional decodes a JSON body when one is present; an empty body keeps defaults.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}
