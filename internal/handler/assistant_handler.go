package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/blues/rosca/internal/chat"
	"github.com/blues/rosca/internal/logger"
	"github.com/gin-gonic/gin"
)

// Completer 对话补全，由 *chat.Client 实现
type Completer interface {
	Complete(ctx context.Context, messages []chat.Message) (string, error)
	Model() string
}

// AssistantHandler 助手处理器
type AssistantHandler struct {
	completer Completer
}

// NewAssistantHandler 创建助手处理器
func NewAssistantHandler(completer Completer) *AssistantHandler {
	return &AssistantHandler{
		completer: completer,
	}
}

// Chat 转发对话并返回回复
func (h *AssistantHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	reply, err := h.completer.Complete(c.Request.Context(), req.Messages)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyConversation) {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}

		var chatErr *chat.Error
		if errors.As(err, &chatErr) {
			logger.Warn("Assistant chat failed: %v", chatErr)
			ErrorResponse(c, chatStatus(chatErr), chatErr.Message)
			return
		}

		logger.Error("Assistant chat failed: %v", err)
		ErrorResponse(c, http.StatusBadGateway, chat.MsgGeneric)
		return
	}

	SuccessResponse(c, http.StatusOK, "对话成功", ChatResponse{
		Reply: reply,
		Model: h.completer.Model(),
	})
}

// chatStatus 用户提示对应的HTTP状态码
func chatStatus(e *chat.Error) int {
	switch e.Message {
	case chat.MsgInvalidAPIKey:
		return http.StatusUnauthorized
	case chat.MsgRateLimited:
		return http.StatusTooManyRequests
	case chat.MsgUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
