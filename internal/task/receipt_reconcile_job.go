package task

import (
	"context"
	"errors"
	"time"

	"github.com/blues/rosca/internal/logger"
	"github.com/blues/rosca/internal/logic"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-co-op/gocron/v2"
)

const reconcileBatch = 100

// ReceiptReader 查询交易回执，chain.Manager 满足此接口
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ReceiptReconcileJob 补查等待回执超时的交易
type ReceiptReconcileJob struct {
	reader   ReceiptReader
	records  *logic.TxRecordLogic
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewReceiptReconcileJob 创建回执对账任务
func NewReceiptReconcileJob(reader ReceiptReader, records *logic.TxRecordLogic, interval, receiptTimeout time.Duration) *ReceiptReconcileJob {
	return &ReceiptReconcileJob{
		reader:   reader,
		records:  records,
		interval: interval,
		timeout:  receiptTimeout,
		now:      time.Now,
	}
}

// GetName 获取任务名称
func (j *ReceiptReconcileJob) GetName() string {
	return "receipt_reconcile"
}

// GetSchedule 获取调度配置
func (j *ReceiptReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *ReceiptReconcileJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval*10)
	defer cancel()

	if _, err := j.Run(ctx); err != nil {
		logger.Error("Receipt reconcile failed: %v", err)
	}
}

// Run 处理一批待确认交易，返回已确认的数量
func (j *ReceiptReconcileJob) Run(ctx context.Context) (int, error) {
	pending, err := j.records.ListPending(j.now().Add(-j.timeout), reconcileBatch)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	resolved := 0
	for _, record := range pending {
		receipt, err := j.reader.TransactionReceipt(ctx, common.HexToHash(record.TxHash))
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				logger.Debug("Tx %s (%s) still pending", record.TxHash, record.Action)
			} else {
				logger.Warn("Failed to fetch receipt of %s: %v", record.TxHash, err)
			}
			continue
		}

		if err := j.records.Resolve(record.TxHash, receipt); err != nil {
			logger.Error("Failed to resolve tx %s: %v", record.TxHash, err)
			continue
		}
		resolved++
		logger.Info("Reconciled %s tx %s (receipt status %d)", record.Action, record.TxHash, receipt.Status)
	}
	return resolved, nil
}
