package task

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/rosca/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

const (
	eventCursor      = "event_sync"
	defaultBatchSize = 500
	defaultWorkers   = 4
	unknownEvent     = "Unknown"
)

// LogReader 读取链上日志，chain.Backend 满足此接口
type LogReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// EventSource 需要同步事件的合约，*chain.Contract 满足此接口
type EventSource interface {
	GetName() string
	Address() common.Address
	GetBlockNum() int64
	ParseEvent(log types.Log) (map[string]interface{}, error)
}

// EventStore 事件存储，*logic.EventLogic 满足此接口
type EventStore interface {
	SaveEvent(contractAddress common.Address, event map[string]interface{}) (bool, error)
	LastSyncedBlock(name string) (int64, bool, error)
	SetSyncedBlock(name string, blockNum int64) error
}

// EventSyncJob 同步合约事件到数据库
type EventSyncJob struct {
	reader    LogReader
	sources   []EventSource
	store     EventStore
	interval  time.Duration
	batchSize int64
	workers   int
}

// NewEventSyncJob 创建事件同步任务
func NewEventSyncJob(reader LogReader, sources []EventSource, store EventStore, interval time.Duration, batchSize int64, workers int) *EventSyncJob {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &EventSyncJob{
		reader:    reader,
		sources:   sources,
		store:     store,
		interval:  interval,
		batchSize: batchSize,
		workers:   workers,
	}
}

// GetName 获取任务名称
func (j *EventSyncJob) GetName() string {
	return "event_sync"
}

// GetSchedule 获取调度配置
func (j *EventSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *EventSyncJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval*10)
	defer cancel()

	if err := j.Run(ctx); err != nil {
		logger.Error("Event sync failed: %v", err)
	}
}

// Run 从上次同步位置处理到最新区块
func (j *EventSyncJob) Run(ctx context.Context) error {
	if len(j.sources) == 0 {
		return nil
	}

	head, err := j.reader.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get block number: %w", err)
	}

	from, err := j.startBlock(int64(head))
	if err != nil {
		return err
	}

	for ; from <= int64(head); from += j.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		to := from + j.batchSize - 1
		if to > int64(head) {
			to = int64(head)
		}
		if err := j.syncRange(ctx, from, to); err != nil {
			return fmt.Errorf("sync blocks %d-%d: %w", from, to, err)
		}
		if err := j.store.SetSyncedBlock(eventCursor, to); err != nil {
			return fmt.Errorf("save sync cursor: %w", err)
		}
	}
	return nil
}

// startBlock 已有同步记录时从下一个区块开始，否则从最早的合约部署区块开始
func (j *EventSyncJob) startBlock(head int64) (int64, error) {
	last, ok, err := j.store.LastSyncedBlock(eventCursor)
	if err != nil {
		return 0, fmt.Errorf("load sync cursor: %w", err)
	}
	if ok {
		return last + 1, nil
	}

	start := j.sources[0].GetBlockNum()
	for _, s := range j.sources[1:] {
		if s.GetBlockNum() < start {
			start = s.GetBlockNum()
		}
	}
	if start <= 0 {
		logger.Warn("No deploy block configured, syncing events from head %d", head)
		return head, nil
	}
	return start, nil
}

// syncRange 读取区块范围内的日志，按合约分组并发处理
func (j *EventSyncJob) syncRange(ctx context.Context, from, to int64) error {
	bySource := make(map[common.Address]EventSource, len(j.sources))
	addresses := make([]common.Address, 0, len(j.sources))
	for _, s := range j.sources {
		if to < s.GetBlockNum() {
			continue
		}
		bySource[s.Address()] = s
		addresses = append(addresses, s.Address())
	}
	if len(addresses) == 0 {
		return nil
	}

	logs, err := j.reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(from),
		ToBlock:   big.NewInt(to),
		Addresses: addresses,
	})
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		logger.Debug("No logs found for blocks %d-%d", from, to)
		return nil
	}

	logsByContract := groupLogsByContract(logs)
	size := j.workers
	if len(logsByContract) < size {
		size = len(logsByContract)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Release()

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
		saved  atomic.Int64
	)
	for address, contractLogs := range logsByContract {
		source := bySource[address]
		if source == nil {
			logger.Warn("Unknown contract address: %s", address.Hex())
			continue
		}

		contractLogs := contractLogs
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			n, errs := j.processLogs(source, contractLogs)
			saved.Add(n)
			failed.Add(errs)
		}); err != nil {
			wg.Done()
			return fmt.Errorf("submit %s logs: %w", source.GetName(), err)
		}
	}
	wg.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d events failed to save", n)
	}
	logger.Info("Synced %d new events from blocks %d-%d", saved.Load(), from, to)
	return nil
}

// processLogs 解析并保存同一合约的日志，返回新写入数和失败数
func (j *EventSyncJob) processLogs(source EventSource, logs []types.Log) (int64, int64) {
	var saved, failed int64
	for _, log := range logs {
		if log.Removed {
			continue
		}

		event, err := source.ParseEvent(log)
		if err != nil {
			logger.Error("Error parsing event for contract %s: %v", source.GetName(), err)
			failed++
			continue
		}
		if event["eventType"] == unknownEvent {
			continue
		}

		inserted, err := j.store.SaveEvent(source.Address(), event)
		if err != nil {
			logger.Error("Failed to save %v event of %s: %v", event["eventType"], source.GetName(), err)
			failed++
			continue
		}
		if inserted {
			saved++
			logger.Debug("Saved %v event of %s at block %d", event["eventType"], source.GetName(), log.BlockNumber)
		}
	}
	return saved, failed
}

// groupLogsByContract 按合约地址分组日志
func groupLogsByContract(logs []types.Log) map[common.Address][]types.Log {
	logsByContract := make(map[common.Address][]types.Log)
	for _, log := range logs {
		logsByContract[log.Address] = append(logsByContract[log.Address], log)
	}
	return logsByContract
}
