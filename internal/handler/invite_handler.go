package handler

import (
	"net/http"
	"time"

	"github.com/blues/rosca/internal/logic"
	"github.com/gin-gonic/gin"
)

// InviteHandler 邀请码处理器
type InviteHandler struct {
	inviteLogic *logic.InviteLogic
}

// NewInviteHandler 创建邀请码处理器
func NewInviteHandler(inviteLogic *logic.InviteLogic) *InviteHandler {
	return &InviteHandler{
		inviteLogic: inviteLogic,
	}
}

// GenerateInvite 为群组生成邀请码
func (h *InviteHandler) GenerateInvite(c *gin.Context) {
	groupId, ok := parseID(c, "无效的群组ID")
	if !ok {
		return
	}

	var req GenerateInviteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
			return
		}
	}

	validFor := time.Duration(req.ValidForHours) * time.Hour
	result, err := h.inviteLogic.Generate(c.Request.Context(), groupId, req.MaxUses, validFor)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "生成邀请码成功", result)
}

// GetInvite 查询邀请码
func (h *InviteHandler) GetInvite(c *gin.Context) {
	invite, err := h.inviteLogic.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取邀请码成功", invite)
}

// RedeemInvite 使用邀请码加入群组
func (h *InviteHandler) RedeemInvite(c *gin.Context) {
	result, err := h.inviteLogic.Redeem(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "加入群组成功", result)
}

// DeactivateInvite 作废邀请码
func (h *InviteHandler) DeactivateInvite(c *gin.Context) {
	result, err := h.inviteLogic.Deactivate(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "作废邀请码成功", result)
}
