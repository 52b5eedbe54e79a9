package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	networkdomain "github.com/trmhq/trm/internal/network/domain"
)

type depthQuery struct {
	MinDepth int `form:"min_depth"`
	MaxDepth int `form:"max_depth"`
}

func (s *Server) GetDownline(c *gin.Context) {
	var query depthQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.networkSvc.GetDescendants(c.Request.Context(), networkdomain.ListEdgesRequest{
		UserID:   c.Param("id"),
		MinDepth: query.MinDepth,
		MaxDepth: query.MaxDepth,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetUpline(c *gin.Context) {
	var query depthQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.networkSvc.GetAncestors(c.Request.Context(), networkdomain.ListEdgesRequest{
		UserID:   c.Param("id"),
		MinDepth: query.MinDepth,
		MaxDepth: query.MaxDepth,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) CheckDownline(c *gin.Context) {
	inDownline, err := s.networkSvc.IsInDownline(c.Request.Context(), networkdomain.IsInDownlineRequest{
		AncestorID:   c.Param("id"),
		DescendantID: c.Param("descendantId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"in_downline": inDownline})
}

func (s *Server) GetNetworkStats(c *gin.Context) {
	resp, err := s.networkSvc.GetNetworkStats(c.Request.Context(), networkdomain.NetworkStatsRequest{
		UserID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetNetworkTree(c *gin.Context) {
	var query struct {
		MaxDepth int `form:"max_depth"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.networkSvc.GetNetworkTree(c.Request.Context(), networkdomain.NetworkTreeRequest{
		UserID:   c.Param("id"),
		MaxDepth: query.MaxDepth,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) RecordEarnings(c *gin.Context) {
	var req networkdomain.RecordEarningsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.networkSvc.RecordEarnings(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
