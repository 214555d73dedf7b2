package logic

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/blues/rosca/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 解析结果中的元数据字段，不写入 data
var eventMetaKeys = map[string]bool{
	"eventType":   true,
	"contract":    true,
	"txHash":      true,
	"blockNumber": true,
	"logIndex":    true,
}

// EventLogic 事件业务逻辑
type EventLogic struct {
	db *gorm.DB
}

// NewEventLogic 创建事件业务逻辑
func NewEventLogic(db *gorm.DB) *EventLogic {
	return &EventLogic{db: db}
}

// SaveEvent 保存解析后的事件，已存在时忽略。返回是否新写入
func (e *EventLogic) SaveEvent(contractAddress common.Address, event map[string]interface{}) (bool, error) {
	eventType, _ := event["eventType"].(string)
	contractName, _ := event["contract"].(string)
	txHash, _ := event["txHash"].(string)
	blockNum, _ := event["blockNumber"].(uint64)
	logIndex, _ := event["logIndex"].(uint)

	if eventType == "" || txHash == "" {
		return false, fmt.Errorf("%w: event without type or tx hash", ErrInvalidParam)
	}

	data, err := json.Marshal(eventArgs(event))
	if err != nil {
		return false, fmt.Errorf("marshal %s event data: %w", eventType, err)
	}

	record := &model.EventModel{
		ContractAddress: contractAddress.Hex(),
		ContractName:    contractName,
		EventType:       eventType,
		TxHash:          txHash,
		BlockNum:        int64(blockNum),
		LogIndex:        int64(logIndex),
		Data:            string(data),
	}
	if id, ok := event["groupId"].(*big.Int); ok && id.IsInt64() {
		record.GroupId = id.Int64()
	}

	result := e.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return false, fmt.Errorf("save %s event %s#%d: %w", eventType, txHash, logIndex, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListGroupEvents 获取群组事件列表
func (e *EventLogic) ListGroupEvents(groupId int64, eventType string, page, pageSize int) ([]model.EventModel, int64, error) {
	var events []model.EventModel
	var total int64

	query := e.db.Model(&model.EventModel{}).Where("group_id = ?", groupId)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("block_num DESC, log_index DESC").Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}

// LastSyncedBlock 获取同步进度，没有记录时 ok 为 false
func (e *EventLogic) LastSyncedBlock(name string) (int64, bool, error) {
	var cursor model.SyncCursorModel
	if err := e.db.Where("name = ?", name).First(&cursor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load sync cursor %s: %w", name, err)
	}
	return cursor.BlockNum, true, nil
}

// SetSyncedBlock 更新同步进度
func (e *EventLogic) SetSyncedBlock(name string, blockNum int64) error {
	cursor := &model.SyncCursorModel{Name: name, BlockNum: blockNum}
	if err := e.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"block_num", "updated_at"}),
	}).Create(cursor).Error; err != nil {
		return fmt.Errorf("save sync cursor %s: %w", name, err)
	}
	return nil
}

// eventArgs 事件参数转为可读的JSON值
func eventArgs(event map[string]interface{}) map[string]interface{} {
	args := make(map[string]interface{}, len(event))
	for k, v := range event {
		if eventMetaKeys[k] {
			continue
		}
		switch val := v.(type) {
		case *big.Int:
			args[k] = val.String()
		case common.Address:
			args[k] = val.Hex()
		case common.Hash:
			args[k] = val.Hex()
		case [32]byte:
			args[k] = hexutil.Encode(val[:])
		case []byte:
			args[k] = hexutil.Encode(val)
		default:
			args[k] = v
		}
	}
	return args
}
