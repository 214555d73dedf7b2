package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/logger"
	"github.com/blues/rosca/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"
)

// 交易动作
const (
	ActionCreateGroup          = "create_group"
	ActionJoinGroup            = "join_group"
	ActionRedeemInvite         = "redeem_invite"
	ActionGenerateInvite       = "generate_invite"
	ActionDeactivateInvite     = "deactivate_invite"
	ActionApprove              = "approve"
	ActionContribute           = "contribute"
	ActionClaimPayout          = "claim_payout"
	ActionPurchase             = "purchase"
	ActionPurchaseInstallments = "purchase_installments"
	ActionPayInstallment       = "pay_installment"
)

// TxResult 写操作结果
type TxResult struct {
	Action        string `json:"action"`
	TxHash        string `json:"tx_hash"`
	BlockNum      uint64 `json:"block_num"`
	ApproveTxHash string `json:"approve_tx_hash,omitempty"`
	GroupId       uint64 `json:"group_id,omitempty"`
	PlanId        uint64 `json:"plan_id,omitempty"`
	Code          string `json:"code,omitempty"`
}

func newTxResult(action string, receipt *types.Receipt) *TxResult {
	r := &TxResult{Action: action}
	if receipt != nil {
		r.TxHash = receipt.TxHash.Hex()
		r.BlockNum = uint64(blockOf(receipt))
	}
	return r
}

func blockOf(receipt *types.Receipt) int64 {
	if receipt == nil || receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Int64()
}

// TxFilter 交易记录查询条件
type TxFilter struct {
	Action  string
	Subject string
	Status  string
}

// TxRecordLogic 交易记录业务逻辑
type TxRecordLogic struct {
	db      *gorm.DB
	account common.Address
}

// NewTxRecordLogic 创建交易记录业务逻辑
func NewTxRecordLogic(db *gorm.DB, account common.Address) *TxRecordLogic {
	return &TxRecordLogic{db: db, account: account}
}

// Track 记录一次写操作的结果，未广播的交易不记录
func (l *TxRecordLogic) Track(ctx context.Context, action, subject string, receipt *types.Receipt, sendErr error) *model.TxRecordModel {
	record := &model.TxRecordModel{
		Action:    action,
		Subject:   subject,
		Account:   l.account.Hex(),
		RequestId: RequestID(ctx),
	}

	switch {
	case sendErr == nil && receipt != nil:
		record.TxHash = receipt.TxHash.Hex()
		record.BlockNum = blockOf(receipt)
		record.Status = model.TxStatusSuccess
	case sendErr != nil:
		var txErr *chain.TxError
		if !errors.As(sendErr, &txErr) {
			return nil
		}
		record.TxHash = txErr.Hash.Hex()
		record.Error = sendErr.Error()
		record.Status = model.TxStatusPending
		if errors.Is(sendErr, chain.ErrTxReverted) {
			record.Status = model.TxStatusFailed
		}
		record.BlockNum = blockOf(txErr.Receipt)
	default:
		return nil
	}

	if err := l.db.Create(record).Error; err != nil {
		logger.Error("Failed to save %s tx record %s: %v", action, record.TxHash, err)
		return nil
	}
	return record
}

// List 获取交易记录列表
func (l *TxRecordLogic) List(filter TxFilter, page, pageSize int) ([]model.TxRecordModel, int64, error) {
	var records []model.TxRecordModel
	var total int64

	query := l.db.Model(&model.TxRecordModel{})
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tx records: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("id DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list tx records: %w", err)
	}
	return records, total, nil
}

// GetByHash 根据交易哈希获取记录
func (l *TxRecordLogic) GetByHash(txHash string) (*model.TxRecordModel, error) {
	var record model.TxRecordModel
	if err := l.db.Where("tx_hash = ?", common.HexToHash(txHash).Hex()).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txHash)
		}
		return nil, fmt.Errorf("get tx record: %w", err)
	}
	return &record, nil
}

// ListPending 获取早于指定时间仍未确认的交易
func (l *TxRecordLogic) ListPending(before time.Time, limit int) ([]model.TxRecordModel, error) {
	var records []model.TxRecordModel
	if err := l.db.Where("status = ? AND created_at < ?", model.TxStatusPending, before).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list pending tx records: %w", err)
	}
	return records, nil
}

// Resolve 根据回执更新待确认交易
func (l *TxRecordLogic) Resolve(txHash string, receipt *types.Receipt) error {
	status := model.TxStatusSuccess
	errMsg := ""
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = model.TxStatusFailed
		errMsg = chain.ErrTxReverted.Error()
	}

	updates := map[string]interface{}{
		"status":    status,
		"block_num": blockOf(receipt),
		"error":     errMsg,
	}
	if err := l.db.Model(&model.TxRecordModel{}).
		Where("tx_hash = ? AND status = ?", txHash, model.TxStatusPending).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("resolve tx record %s: %w", txHash, err)
	}
	return nil
}
