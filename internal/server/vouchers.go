package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	voucherdomain "github.com/smallbiznis/bookkeeper/internal/voucher/domain"
)

func (s *Server) PostVoucher(c *gin.Context) {
	var req voucherdomain.PostVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))

	resp, err := s.voucherSvc.PostVoucher(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListVouchers(c *gin.Context) {
	var query voucherdomain.ListVoucherRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.voucherSvc.ListVouchers(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Vouchers, "page_info": resp.PageInfo})
}

func (s *Server) GetVoucher(c *gin.Context) {
	resp, err := s.voucherSvc.GetVoucher(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReverseVoucher(c *gin.Context) {
	var req voucherdomain.ReverseVoucherRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindError(err))
			return
		}
	}

	resp, err := s.voucherSvc.ReverseVoucher(c.Request.Context(), pathID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
