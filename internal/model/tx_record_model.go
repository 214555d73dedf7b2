package model

import (
	"time"
)

// TxRecordModel 已提交交易记录
type TxRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Action    string   `json:"action" gorm:"not null;index"`
	Subject   string   `json:"subject" gorm:"index"` // 群组ID、邀请码、商品ID或分期计划ID
	Account   string   `json:"account" gorm:"not null"`
	TxHash    string   `json:"tx_hash" gorm:"not null;uniqueIndex"`
	BlockNum  int64    `json:"block_num"`
	Status    TxStatus `json:"status" gorm:"not null;index;default:'pending'"`
	Error     string   `json:"error,omitempty" gorm:"type:text"`
	RequestId string   `json:"request_id,omitempty"`
}

// TxStatus 交易状态
type TxStatus string

const (
	TxStatusPending TxStatus = "pending" // 等待回执超时，待对账
	TxStatusSuccess TxStatus = "success" // 已确认
	TxStatusFailed  TxStatus = "failed"  // 已回滚
)

// TableName 自定义表名
func (TxRecordModel) TableName() string {
	return "tx_record"
}
