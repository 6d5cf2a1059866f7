package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reportdomain "github.com/smallbiznis/bookkeeper/internal/report/domain"
)

func (s *Server) TrialBalance(c *gin.Context) {
	var query reportdomain.TrialBalanceRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.reportSvc.TrialBalance(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ProfitAndLoss(c *gin.Context) {
	var query reportdomain.ProfitAndLossRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.reportSvc.ProfitAndLoss(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BalanceSheet(c *gin.Context) {
	var query reportdomain.BalanceSheetRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.reportSvc.BalanceSheet(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) LedgerVouchers(c *gin.Context) {
	var query reportdomain.LedgerVouchersRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	if query.LedgerID == "" {
		AbortWithError(c, newValidationError("ledger_id", "required", "ledger_id is required"))
		return
	}

	resp, err := s.reportSvc.LedgerVouchers(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
