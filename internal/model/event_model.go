package model

import (
	"time"
)

// EventModel 链上事件记录
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContractAddress string `json:"contract_address" gorm:"not null"`
	ContractName    string `json:"contract_name" gorm:"not null"`
	EventType       string `json:"event_type" gorm:"not null;index"`
	GroupId         int64  `json:"group_id" gorm:"index"`
	TxHash          string `json:"tx_hash" gorm:"not null;uniqueIndex:idx_event_tx_log"`
	BlockNum        int64  `json:"block_num" gorm:"not null"`
	LogIndex        int64  `json:"log_index" gorm:"uniqueIndex:idx_event_tx_log"`
	Data            string `json:"data" gorm:"type:text"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}

// SyncCursorModel 事件同步进度
type SyncCursorModel struct {
	Name      string    `json:"name" gorm:"primaryKey"`
	BlockNum  int64     `json:"block_num"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 自定义表名
func (SyncCursorModel) TableName() string {
	return "sync_cursor"
}

// AllModels 需要迁移的表
func AllModels() []interface{} {
	return []interface{}{
		&TxRecordModel{},
		&EventModel{},
		&SyncCursorModel{},
	}
}
