package handler

import (
	"encoding/json"

	"github.com/blues/rosca/internal/chat"
	"github.com/blues/rosca/internal/model"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	return Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
}

// ListResponse 分页列表响应
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// CreateGroupRequest 创建群组请求，金额为可读格式
type CreateGroupRequest struct {
	Name               string `json:"name" binding:"required"`
	Description        string `json:"description"`
	Token              string `json:"token" binding:"required"`
	ContributionAmount string `json:"contribution_amount" binding:"required"`
	IntervalDays       uint64 `json:"interval_days" binding:"required,min=1"`
	MaxMembers         uint64 `json:"max_members" binding:"required,min=2"`
	IsPrivate          bool   `json:"is_private"`
}

// GenerateInviteRequest 生成邀请码请求
type GenerateInviteRequest struct {
	MaxUses       uint64 `json:"max_uses"`        // 0 表示不限
	ValidForHours uint64 `json:"valid_for_hours"` // 0 表示不过期
}

// PurchaseRequest 购买请求
type PurchaseRequest struct {
	Token        string `json:"token"`
	Installments uint64 `json:"installments"`
}

// ChatRequest 对话请求
type ChatRequest struct {
	Messages []chat.Message `json:"messages" binding:"required,min=1,dive"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

// TxRecordResponse 交易记录响应
type TxRecordResponse struct {
	Id        int64  `json:"id"`
	Action    string `json:"action"`
	Subject   string `json:"subject"`
	Account   string `json:"account"`
	TxHash    string `json:"tx_hash"`
	BlockNum  int64  `json:"block_num"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	RequestId string `json:"request_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// ToTxRecordResponse 转换交易记录
func ToTxRecordResponse(r *model.TxRecordModel) TxRecordResponse {
	return TxRecordResponse{
		Id:        r.Id,
		Action:    r.Action,
		Subject:   r.Subject,
		Account:   r.Account,
		TxHash:    r.TxHash,
		BlockNum:  r.BlockNum,
		Status:    string(r.Status),
		Error:     r.Error,
		RequestId: r.RequestId,
		CreatedAt: r.CreatedAt.Unix(),
		UpdatedAt: r.UpdatedAt.Unix(),
	}
}

// ToTxRecordResponseList 转换交易记录列表
func ToTxRecordResponseList(records []model.TxRecordModel) []TxRecordResponse {
	result := make([]TxRecordResponse, 0, len(records))
	for i := range records {
		result = append(result, ToTxRecordResponse(&records[i]))
	}
	return result
}

// EventResponse 链上事件响应
type EventResponse struct {
	Id              int64           `json:"id"`
	EventType       string          `json:"event_type"`
	GroupId         int64           `json:"group_id"`
	ContractAddress string          `json:"contract_address"`
	TxHash          string          `json:"tx_hash"`
	LogIndex        int64           `json:"log_index"`
	BlockNum        int64           `json:"block_num"`
	Data            json.RawMessage `json:"data"`
	CreatedAt       int64           `json:"created_at"`
}

// ToEventResponseList 转换事件列表
func ToEventResponseList(events []model.EventModel) []EventResponse {
	result := make([]EventResponse, 0, len(events))
	for _, e := range events {
		data := json.RawMessage(e.Data)
		if !json.Valid(data) {
			data = json.RawMessage("null")
		}
		result = append(result, EventResponse{
			Id:              e.Id,
			EventType:       e.EventType,
			GroupId:         e.GroupId,
			ContractAddress: e.ContractAddress,
			TxHash:          e.TxHash,
			LogIndex:        e.LogIndex,
			BlockNum:        e.BlockNum,
			Data:            data,
			CreatedAt:       e.CreatedAt.Unix(),
		})
	}
	return result
}
