package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	lessondomain "github.com/skolarhq/skolar/internal/lesson/domain"
)

type setLessonCompletionRequest struct {
	Completed *bool `json:"completed"`
}

func (s *Server) SetLessonCompletion(c *gin.Context) {
	var req setLessonCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Completed == nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lessonSvc.SetCompletion(c.Request.Context(), lessondomain.SetCompletionRequest{
		LessonID:  strings.TrimSpace(c.Param("id")),
		Completed: *req.Completed,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.Lesson.ID.String()
		_ = s.auditSvc.Record(c.Request.Context(), "lesson.set_completion", "lesson", &targetID, map[string]any{
			"lesson_id":        resp.Lesson.ID.String(),
			"teacher_id":       resp.Lesson.TeacherID.String(),
			"completed":        resp.Lesson.IsCompleted,
			"payout_refreshed": resp.PayoutRefreshed,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTeacherLessons(c *gin.Context) {
	var query struct {
		Period        string `form:"period"`
		CompletedOnly bool   `form:"completed_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lessonSvc.ListForPeriod(c.Request.Context(), lessondomain.ListLessonsRequest{
		TeacherID:     strings.TrimSpace(c.Param("id")),
		BillingPeriod: strings.TrimSpace(query.Period),
		CompletedOnly: query.CompletedOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isLessonValidationError(err error) bool {
	switch err {
	case lessondomain.ErrInvalidLessonID:
		return true
	default:
		return false
	}
}
