package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skolarhq/skolar/internal/identity"
)

const bearerPrefix = "Bearer "

// AuthRequired verifies the bearer token and stores the resolved caller in
// the request context for the domain services to consume.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(header, bearerPrefix) {
			AbortWithError(c, identity.ErrUnauthenticated)
			return
		}

		caller, err := s.identities.Resolve(c.Request.Context(), strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), caller))
		c.Next()
	}
}
