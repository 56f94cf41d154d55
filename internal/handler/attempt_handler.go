package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mockprep/backend/internal/middleware"
	"github.com/mockprep/backend/internal/model"
	"github.com/mockprep/backend/internal/response"
	"github.com/mockprep/backend/internal/service"
	"github.com/mockprep/backend/internal/timer"
	"github.com/mockprep/backend/internal/validator"
)

// AttemptHandler handles the exam attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// Start godoc
// POST /api/v1/exams/:exam_id/attempts
// Starts a new attempt or resumes the live one. The optional X-Session-Token
// header lets the same browser session pass the single-attempt gate.
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := pathID(c, "exam_id")
	if !ok {
		return
	}

	res, err := h.attemptService.Start(c.Request.Context(), claims.UserID, examID, middleware.SessionToken(c))
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"attempt": res})
}

// Poll godoc
// GET /api/v1/attempts/:attempt_id/status
// Returns the unified running/timeout/completed status with remaining time.
func (h *AttemptHandler) Poll(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := pathID(c, "attempt_id")
	if !ok {
		return
	}

	res, err := h.attemptService.Poll(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Questions godoc
// GET /api/v1/attempts/:attempt_id/questions
// Returns the paper with correct options stripped and saved answers overlaid.
func (h *AttemptHandler) Questions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := pathID(c, "attempt_id")
	if !ok {
		return
	}

	res, err := h.attemptService.Questions(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// SubmitAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers
// Saves or replaces the answer for one question.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := pathID(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ans, err := h.attemptService.SubmitAnswer(c.Request.Context(), attemptID, claims.UserID, req.QuestionID, req.SelectedOption)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"question_id":     ans.QuestionID,
		"selected_option": ans.SelectedOption,
	})
}

// Submit godoc
// POST /api/v1/attempts/:attempt_id/submit
// Finalizes the attempt and returns the score. Idempotent: repeated calls
// return the stored result.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := pathID(c, "attempt_id")
	if !ok {
		return
	}

	res, err := h.attemptService.Submit(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// Review godoc
// GET /api/v1/attempts/:attempt_id/review
// Returns the stored result with per-question correctness for a completed
// attempt.
func (h *AttemptHandler) Review(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := pathID(c, "attempt_id")
	if !ok {
		return
	}

	res, err := h.attemptService.Review(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Extend godoc
// POST /api/v1/admin/attempts/:attempt_id/extend
// Adds time to a live attempt. Admin only.
func (h *AttemptHandler) Extend(c *gin.Context) {
	attemptID, ok := pathID(c, "attempt_id")
	if !ok {
		return
	}

	var req model.ExtendTimerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.attemptService.Extend(c.Request.Context(), attemptID, time.Duration(req.AdditionalSeconds)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, timer.ErrTimerGone):
			response.Fail(c, http.StatusGone, response.ErrTimeExpired)
		default:
			h.failAttemptError(c, err)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// failAttemptError maps service errors onto the response taxonomy. Timer
// transport failures fall through to 500: an unreachable Redis is an outage,
// not an expiry.
func (h *AttemptHandler) failAttemptError(c *gin.Context, err error) {
	var tierErr *service.TierError
	var activeErr *service.ActiveAttemptError

	switch {
	case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrAttemptNotFound), errors.Is(err, service.ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusForbidden, response.ErrExamNotAvailable)
	case errors.As(err, &tierErr):
		response.Fail(c, http.StatusForbidden, response.ErrTierUpgradeRequired)
	case errors.As(err, &activeErr):
		response.FailWithDetails(c, http.StatusConflict, response.ErrActiveAttempt, gin.H{
			"exam_id":    activeErr.ExamID,
			"started_at": activeErr.StartedAt,
		})
	case errors.Is(err, service.ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusBadRequest, response.ErrAlreadyCompleted)
	case errors.Is(err, service.ErrNotCompleted):
		response.Fail(c, http.StatusBadRequest, response.ErrNotCompleted)
	case errors.Is(err, service.ErrTimeExpired):
		response.Fail(c, http.StatusGone, response.ErrTimeExpired)
	case errors.Is(err, service.ErrQuestionNotInExam):
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInExam)
	case errors.Is(err, service.ErrTimerCorrupt):
		response.Fail(c, http.StatusInternalServerError, response.ErrTimerCorrupted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
