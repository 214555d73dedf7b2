package handler

import (
	"net/http"

	"github.com/blues/rosca/internal/logic"
	"github.com/gin-gonic/gin"
)

// MerchantHandler 商户处理器
type MerchantHandler struct {
	purchaseLogic *logic.PurchaseLogic
}

// NewMerchantHandler 创建商户处理器
func NewMerchantHandler(purchaseLogic *logic.PurchaseLogic) *MerchantHandler {
	return &MerchantHandler{
		purchaseLogic: purchaseLogic,
	}
}

// ListProducts 获取商品列表
func (h *MerchantHandler) ListProducts(c *gin.Context) {
	products, err := h.purchaseLogic.ListProducts(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取商品列表成功", products)
}

// GetProduct 获取商品详情
func (h *MerchantHandler) GetProduct(c *gin.Context) {
	productId, ok := parseID(c, "无效的商品ID")
	if !ok {
		return
	}

	product, err := h.purchaseLogic.GetProduct(c.Request.Context(), productId)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取商品详情成功", product)
}

// Purchase 购买商品，installments 大于1时分期
func (h *MerchantHandler) Purchase(c *gin.Context) {
	productId, ok := parseID(c, "无效的商品ID")
	if !ok {
		return
	}

	var req PurchaseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
			return
		}
	}

	result, err := h.purchaseLogic.Purchase(c.Request.Context(), productId, req.Token, req.Installments)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "购买成功", result)
}

// ListMyPlans 获取当前账户的分期计划
func (h *MerchantHandler) ListMyPlans(c *gin.Context) {
	plans, err := h.purchaseLogic.ListMyPlans(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取分期计划成功", plans)
}

// PayInstallment 支付一期分期款
func (h *MerchantHandler) PayInstallment(c *gin.Context) {
	planId, ok := parseID(c, "无效的分期计划ID")
	if !ok {
		return
	}

	result, err := h.purchaseLogic.PayInstallment(c.Request.Context(), planId)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "支付分期成功", result)
}
