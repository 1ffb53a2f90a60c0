package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/skolarhq/skolar/internal/payout/domain"
)

func (s *Server) GetPayout(c *gin.Context) {
	resp, err := s.payoutSvc.Get(c.Request.Context(), payoutdomain.GetPayoutRequest{
		TeacherID:     teacherParam(c),
		BillingPeriod: strings.TrimSpace(c.Param("period")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayouts(c *gin.Context) {
	var query struct {
		Period string `form:"period"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.ListForPeriod(c.Request.Context(), payoutdomain.ListPayoutsRequest{
		BillingPeriod: strings.TrimSpace(query.Period),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type recomputePayoutRequest struct {
	RatePerHour *float64 `json:"rate_per_hour"`
}

func (s *Server) RecomputePayout(c *gin.Context) {
	var req recomputePayoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.payoutSvc.Recompute(c.Request.Context(), payoutdomain.RecomputeRequest{
		TeacherID:     teacherParam(c),
		BillingPeriod: strings.TrimSpace(c.Param("period")),
		RateOverride:  req.RatePerHour,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.TeacherID.String()
		_ = s.auditSvc.Record(c.Request.Context(), "payout.recompute", "payout", &targetID, map[string]any{
			"teacher_id":     resp.TeacherID.String(),
			"billing_period": resp.BillingPeriod,
			"total_amount":   resp.TotalAmount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setPayoutRateRequest struct {
	RatePerHour float64 `json:"rate_per_hour"`
}

func (s *Server) SetPayoutRate(c *gin.Context) {
	var req setPayoutRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.SetRate(c.Request.Context(), payoutdomain.SetRateRequest{
		TeacherID:     teacherParam(c),
		BillingPeriod: strings.TrimSpace(c.Param("period")),
		RatePerHour:   req.RatePerHour,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.TeacherID.String()
		_ = s.auditSvc.Record(c.Request.Context(), "payout.set_rate", "payout", &targetID, map[string]any{
			"teacher_id":     resp.TeacherID.String(),
			"billing_period": resp.BillingPeriod,
			"rate_per_hour":  resp.RatePerHour,
			"total_amount":   resp.TotalAmount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// teacherParam reads the teacher path segment. "me" lets a teacher-role
// caller address their own record without knowing its id.
func teacherParam(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("teacher_id"))
	if id == "me" {
		return ""
	}
	return id
}

func isPayoutValidationError(err error) bool {
	switch err {
	case payoutdomain.ErrInvalidPeriod,
		payoutdomain.ErrInvalidRate,
		payoutdomain.ErrInvalidTeacher:
		return true
	default:
		return false
	}
}
