package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mockprep/backend/internal/middleware"
	"github.com/mockprep/backend/internal/response"
	"github.com/mockprep/backend/internal/service"
)

// ExamHandler handles the exam lobby and attempt history endpoints.
type ExamHandler struct {
	examService *service.ExamService
	attempts    service.AttemptLister
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, attempts service.AttemptLister) *ExamHandler {
	return &ExamHandler{examService: examService, attempts: attempts}
}

// List godoc
// GET /api/v1/exams
// Returns published exams annotated with the caller's access and any live
// attempt they could resume.
func (h *ExamHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exams, err := h.examService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// History godoc
// GET /api/v1/attempts
// Returns the caller's past attempts, newest first.
func (h *ExamHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attempts.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}
