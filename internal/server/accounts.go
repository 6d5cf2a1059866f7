package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	balancedomain "github.com/smallbiznis/bookkeeper/internal/balance/domain"
)

type createGroupRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"omitempty,oneof=asset liability capital income expense"`
	ParentID string `json:"parent_id"`
}

func (s *Server) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.accountSvc.CreateGroup(c.Request.Context(), accountdomain.CreateGroupRequest{
		Name:     strings.TrimSpace(req.Name),
		Type:     accountdomain.GroupType(strings.TrimSpace(req.Type)),
		ParentID: strings.TrimSpace(req.ParentID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListGroups(c *gin.Context) {
	resp, err := s.accountSvc.ListGroups(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetGroup(c *gin.Context) {
	resp, err := s.accountSvc.GetGroup(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ChartOfAccounts(c *gin.Context) {
	resp, err := s.accountSvc.ChartOfAccounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateLedger(c *gin.Context) {
	var req accountdomain.CreateLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.accountSvc.CreateLedger(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLedgers(c *gin.Context) {
	var query struct {
		GroupID   string `form:"group_id"`
		GroupType string `form:"group_type"`
		IsActive  string `form:"is_active"`
		Search    string `form:"q"`
		SortBy    string `form:"sort_by"`
		OrderBy   string `form:"order_by" binding:"omitempty,oneof=asc desc ASC DESC"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	isActive, err := parseOptionalBool(query.IsActive)
	if err != nil {
		AbortWithError(c, newValidationError("is_active", "invalid_is_active", "is_active must be a boolean"))
		return
	}

	resp, err := s.accountSvc.ListLedgers(c.Request.Context(), accountdomain.ListLedgerRequest{
		GroupID:   strings.TrimSpace(query.GroupID),
		GroupType: strings.TrimSpace(query.GroupType),
		IsActive:  isActive,
		Search:    strings.TrimSpace(query.Search),
		SortBy:    strings.TrimSpace(query.SortBy),
		OrderBy:   strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLedger(c *gin.Context) {
	resp, err := s.accountSvc.GetLedger(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateLedger(c *gin.Context) {
	var req accountdomain.UpdateLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.accountSvc.UpdateLedger(c.Request.Context(), pathID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateLedger(c *gin.Context) {
	resp, err := s.accountSvc.ActivateLedger(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateLedger(c *gin.Context) {
	resp, err := s.accountSvc.DeactivateLedger(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteLedger(c *gin.Context) {
	if err := s.accountSvc.DeleteLedger(c.Request.Context(), pathID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetLedgerBalance(c *gin.Context) {
	var query struct {
		AsOf string `form:"as_of"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.balanceSvc.LedgerBalance(c.Request.Context(), balancedomain.LedgerBalanceRequest{
		LedgerID: pathID(c),
		AsOf:     strings.TrimSpace(query.AsOf),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
