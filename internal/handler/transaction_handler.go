package handler

import (
	"net/http"

	"github.com/blues/rosca/internal/logic"
	"github.com/blues/rosca/internal/model"
	"github.com/gin-gonic/gin"
)

// TransactionHandler 交易记录处理器
type TransactionHandler struct {
	txRecordLogic *logic.TxRecordLogic
}

// NewTransactionHandler 创建交易记录处理器
func NewTransactionHandler(txRecordLogic *logic.TxRecordLogic) *TransactionHandler {
	return &TransactionHandler{
		txRecordLogic: txRecordLogic,
	}
}

// ListTransactions 获取交易记录列表
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	page, pageSize := parsePage(c)

	status := c.Query("status")
	switch model.TxStatus(status) {
	case "", model.TxStatusPending, model.TxStatusSuccess, model.TxStatusFailed:
	default:
		ErrorResponse(c, http.StatusBadRequest, "无效的交易状态")
		return
	}

	filter := logic.TxFilter{
		Action:  c.Query("action"),
		Subject: c.Query("subject"),
		Status:  status,
	}
	records, total, err := h.txRecordLogic.List(filter, page, pageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取交易记录成功", ListResponse{
		Items:      ToTxRecordResponseList(records),
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetTransaction 按哈希获取交易记录
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	record, err := h.txRecordLogic.GetByHash(c.Param("hash"))
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取交易记录成功", ToTxRecordResponse(record))
}
