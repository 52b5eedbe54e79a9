package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	referraldomain "github.com/trmhq/trm/internal/referral/domain"
)

func (s *Server) CreateReferral(c *gin.Context) {
	var req referraldomain.CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	referral, err := s.referralSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, referral)
}

func (s *Server) GetReferralByID(c *gin.Context) {
	referral, err := s.referralSvc.GetByID(c.Request.Context(), referraldomain.GetReferralRequest{
		ID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, referral)
}

func (s *Server) ListReferrals(c *gin.Context) {
	var query struct {
		PageToken  string `form:"page_token"`
		PageSize   int32  `form:"page_size"`
		ReferrerID string `form:"referrer_id"`
		Status     string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.referralSvc.List(c.Request.Context(), referraldomain.ListReferralRequest{
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
		ReferrerID: query.ReferrerID,
		Status:     query.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateReferralStatus(c *gin.Context) {
	var req referraldomain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")

	referral, err := s.referralSvc.UpdateStatus(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, referral)
}
