package handler

import (
	"net/http"

	"github.com/blues/rosca/internal/logic"
	"github.com/gin-gonic/gin"
)

// WalletHandler 钱包处理器
type WalletHandler struct {
	walletLogic *logic.WalletLogic
}

// NewWalletHandler 创建钱包处理器
func NewWalletHandler(walletLogic *logic.WalletLogic) *WalletHandler {
	return &WalletHandler{
		walletLogic: walletLogic,
	}
}

// GetWallet 获取签名账户信息
func (h *WalletHandler) GetWallet(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "获取钱包信息成功", h.walletLogic.Info(c.Request.Context()))
}
