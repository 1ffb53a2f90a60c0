package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/skolarhq/skolar/internal/authorization"
	"github.com/skolarhq/skolar/internal/identity"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	"github.com/skolarhq/skolar/pkg/db/pagination"
)

func (s *Server) ListTeachers(c *gin.Context) {
	caller, ok := identity.FromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, identity.ErrUnauthenticated)
		return
	}
	if err := s.authzSvc.Authorize(c.Request.Context(), caller, authorization.ObjectTeacher, authorization.ActionTeacherList); err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.teacherSvc.List(c.Request.Context(), teacherdomain.ListTeacherRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTeacher(c *gin.Context) {
	caller, ok := identity.FromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, identity.ErrUnauthenticated)
		return
	}
	if err := s.authzSvc.Authorize(c.Request.Context(), caller, authorization.ObjectTeacher, authorization.ActionTeacherView); err != nil {
		AbortWithError(c, err)
		return
	}

	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, teacherdomain.ErrInvalidID)
		return
	}

	resp, err := s.teacherSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isTeacherValidationError(err error) bool {
	switch err {
	case teacherdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
