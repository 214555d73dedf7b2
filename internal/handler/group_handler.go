package handler

import (
	"net/http"

	"github.com/blues/rosca/internal/logic"
	"github.com/gin-gonic/gin"
)

// GroupHandler 储蓄群组处理器
type GroupHandler struct {
	groupLogic *logic.GroupLogic
	eventLogic *logic.EventLogic
}

// NewGroupHandler 创建群组处理器
func NewGroupHandler(groupLogic *logic.GroupLogic, eventLogic *logic.EventLogic) *GroupHandler {
	return &GroupHandler{
		groupLogic: groupLogic,
		eventLogic: eventLogic,
	}
}

// CreateGroup 创建群组
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.groupLogic.CreateGroup(c.Request.Context(), logic.CreateGroupInput{
		Name:               req.Name,
		Description:        req.Description,
		Token:              req.Token,
		ContributionAmount: req.ContributionAmount,
		IntervalDays:       req.IntervalDays,
		MaxMembers:         req.MaxMembers,
		IsPrivate:          req.IsPrivate,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "创建群组成功", result)
}

// GetGroup 获取群组详情
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupId, ok := parseID(c, "无效的群组ID")
	if !ok {
		return
	}

	group, err := h.groupLogic.GetGroup(c.Request.Context(), groupId)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取群组详情成功", group)
}

// ListMyGroups 获取当前账户的群组
func (h *GroupHandler) ListMyGroups(c *gin.Context) {
	groups, err := h.groupLogic.ListMyGroups(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取我的群组成功", groups)
}

// GetStats 获取平台统计
func (h *GroupHandler) GetStats(c *gin.Context) {
	stats, err := h.groupLogic.GetStats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取统计信息成功", stats)
}

// JoinGroup 加入公开群组
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	groupId, ok := parseID(c, "无效的群组ID")
	if !ok {
		return
	}

	result, err := h.groupLogic.JoinGroup(c.Request.Context(), groupId)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "加入群组成功", result)
}

// Contribute 缴纳本轮款项
func (h *GroupHandler) Contribute(c *gin.Context) {
	groupId, ok := parseID(c, "无效的群组ID")
	if !ok {
		return
	}

	result, err := h.groupLogic.Contribute(c.Request.Context(), groupId)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "缴款成功", result)
}

// ClaimPayout 领取本轮资金
func (h *GroupHandler) ClaimPayout(c *gin.Context) {
	groupId, ok := parseID(c, "无效的群组ID")
	if !ok {
		return
	}

	result, err := h.groupLogic.ClaimPayout(c.Request.Context(), groupId)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "领取成功", result)
}

// GetContributionStatus 获取本轮缴款状态
func (h *GroupHandler) GetContributionStatus(c *gin.Context) {
	groupId, ok := parseID(c, "无效的群组ID")
	if !ok {
		return
	}

	status, err := h.groupLogic.ContributionStatus(c.Request.Context(), groupId)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取缴款状态成功", status)
}

// GetGroupEvents 获取群组链上事件
func (h *GroupHandler) GetGroupEvents(c *gin.Context) {
	groupId, ok := parseID(c, "无效的群组ID")
	if !ok {
		return
	}
	page, pageSize := parsePage(c)

	events, total, err := h.eventLogic.ListGroupEvents(int64(groupId), c.Query("event_type"), page, pageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取群组事件成功", ListResponse{
		Items:      ToEventResponseList(events),
		Pagination: newPagination(page, pageSize, total),
	})
}
