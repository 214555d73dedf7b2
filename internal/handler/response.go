package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/logger"
	"github.com/blues/rosca/internal/logic"
	"github.com/gin-gonic/gin"
)

const maxPageSize = 100

var (
	badRequestErrors = []error{
		logic.ErrInvalidParam,
		logic.ErrEmptyInviteCode,
		logic.ErrInviteInactive,
		logic.ErrInviteExpired,
		logic.ErrInviteExhausted,
		logic.ErrTokenNotAccepted,
		logic.ErrInstallmentsNotAllowed,
		logic.ErrInvalidInstallments,
	}
	notFoundErrors = []error{
		logic.ErrGroupNotFound,
		logic.ErrInviteNotFound,
		logic.ErrProductNotFound,
		logic.ErrPlanNotFound,
		logic.ErrTxNotFound,
	}
	conflictErrors = []error{
		logic.ErrAlreadyContributed,
		logic.ErrNotRecipient,
		logic.ErrGroupNotJoinable,
		logic.ErrGroupNotActive,
		logic.ErrOutOfStock,
		logic.ErrNotPlanOwner,
		logic.ErrPlanClosed,
	}
	unavailableErrors = []error{
		logic.ErrNoSigner,
		logic.ErrMerchantUnavailable,
		chain.ErrContractMissing,
	}
	upstreamErrors = []error{
		chain.ErrCallFailed,
		chain.ErrSubmitFailed,
		chain.ErrTxReverted,
		chain.ErrReceiptTimeout,
		chain.ErrTupleShape,
	}
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// ErrorResponseWithData 带数据的错误响应，用于返回已广播交易的哈希
func ErrorResponseWithData(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    data,
	})
}

// StatusOf 业务错误对应的HTTP状态码
func StatusOf(err error) int {
	switch {
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case isAny(err, unavailableErrors):
		return http.StatusServiceUnavailable
	case isAny(err, upstreamErrors):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleError 记录并返回错误，交易已广播时附带哈希
func handleError(c *gin.Context, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else {
		logger.Warn("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
	}

	if hash, ok := chain.TxHashOf(err); ok {
		ErrorResponseWithData(c, status, err.Error(), gin.H{"tx_hash": hash.Hex()})
		return
	}
	ErrorResponse(c, status, err.Error())
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// parseID 解析路径参数 id
func parseID(c *gin.Context, message string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, message)
		return 0, false
	}
	return id, true
}

// parsePage 解析分页参数
func parsePage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
