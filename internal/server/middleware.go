package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/trmhq/trm/internal/observability/context"
	"github.com/trmhq/trm/internal/orgcontext"
)

// OrgContext binds the tenant to the request. The X-Org-Id header wins;
// otherwise the configured default applies.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := s.cfg.DefaultOrgID
		if header := strings.TrimSpace(c.GetHeader("X-Org-Id")); header != "" {
			parsed, err := strconv.ParseInt(header, 10, 64)
			if err != nil || parsed <= 0 {
				AbortWithError(c, newValidationError("org_id", "invalid_organization", "invalid organization header"))
				return
			}
			orgID = parsed
		}
		if orgID <= 0 {
			AbortWithError(c, newValidationError("org_id", "invalid_organization", "organization not resolved"))
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = obscontext.WithOrgID(ctx, strconv.FormatInt(orgID, 10))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// EarningsRateLimit gates earnings writes per organization. Without redis
// the limiter is nil and everything passes.
func (s *Server) EarningsRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		orgID, _ := orgcontext.OrgIDFromContext(c.Request.Context())
		key := "ratelimit:earnings:" + orgID.String()
		result, err := s.limiter.Allow(c.Request.Context(), key, s.cfg.Network.ConversionRate, s.cfg.Network.ConversionBurst)
		if err != nil {
			// Redis trouble should not block earnings.
			c.Next()
			return
		}
		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimit(c.Request.Context(), result.Allowed)
		}
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
