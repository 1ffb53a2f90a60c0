package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/skolarhq/skolar/internal/authorization"
	"github.com/skolarhq/skolar/internal/identity"
	lessondomain "github.com/skolarhq/skolar/internal/lesson/domain"
	payoutdomain "github.com/skolarhq/skolar/internal/payout/domain"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		errType string
	}{
		{"invalid period", payoutdomain.ErrInvalidPeriod, http.StatusBadRequest, "validation_error"},
		{"invalid rate", payoutdomain.ErrInvalidRate, http.StatusBadRequest, "validation_error"},
		{"invalid lesson id", lessondomain.ErrInvalidLessonID, http.StatusBadRequest, "validation_error"},
		{"unauthenticated", identity.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
		{"unknown role", identity.ErrUnknownRole, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"teacher not found", teacherdomain.ErrTeacherNotFound, http.StatusNotFound, "not_found"},
		{"lesson not found", lessondomain.ErrLessonNotFound, http.StatusNotFound, "not_found"},
		{"payout not found", payoutdomain.ErrPayoutNotFound, http.StatusNotFound, "not_found"},
		{"gorm not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"limiter backend down", ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.errType, payload.Type)
		})
	}
}

func TestExhaustedUpsertConflictIsInternal(t *testing.T) {
	// A conflict only escapes the payout service after its internal retry,
	// so the caller gets a server error, never a request to retry.
	status, payload := mapError(payoutdomain.ErrConflict)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", payload.Type)
}
