// Package chaintest 提供 chain.Invoker 的内存实现，用于测试
package chaintest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SentTx 一次 Send 调用的记录
type SentTx struct {
	Contract common.Address
	Method   string
	Args     []interface{}
}

// Journal 多个 Invoker 共享的发送记录，用于断言跨合约的调用顺序
type Journal struct {
	mu   sync.Mutex
	sent []SentTx
}

func (j *Journal) add(tx SentTx) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sent = append(j.sent, tx)
}

// Sent 已发送交易的副本
func (j *Journal) Sent() []SentTx {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]SentTx, len(j.sent))
	copy(out, j.sent)
	return out
}

// Methods 已发送交易的方法名序列
func (j *Journal) Methods() []string {
	sent := j.Sent()
	out := make([]string, len(sent))
	for i, tx := range sent {
		out[i] = tx.Method
	}
	return out
}

// Invoker 可编程的合约替身
type Invoker struct {
	Addr    common.Address
	Journal *Journal

	mu     sync.Mutex
	calls  map[string]func(args []interface{}) ([]interface{}, error)
	sends  map[string]func(args []interface{}) (*types.Receipt, error)
	events map[common.Hash]map[string]interface{}
	block  uint64
}

// NewInvoker 创建替身
func NewInvoker(addr common.Address, journal *Journal) *Invoker {
	if journal == nil {
		journal = &Journal{}
	}
	return &Invoker{
		Addr:    addr,
		Journal: journal,
		calls:   make(map[string]func(args []interface{}) ([]interface{}, error)),
		sends:   make(map[string]func(args []interface{}) (*types.Receipt, error)),
		events:  make(map[common.Hash]map[string]interface{}),
	}
}

// OnCall 设置只读方法的返回
func (f *Invoker) OnCall(method string, fn func(args []interface{}) ([]interface{}, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method] = fn
}

// Returns 只读方法返回固定值
func (f *Invoker) Returns(method string, values ...interface{}) {
	f.OnCall(method, func([]interface{}) ([]interface{}, error) { return values, nil })
}

// OnSend 设置交易方法的行为，未设置时返回成功回执
func (f *Invoker) OnSend(method string, fn func(args []interface{}) (*types.Receipt, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends[method] = fn
}

// FailSend 交易方法固定失败
func (f *Invoker) FailSend(method string, err error) {
	f.OnSend(method, func([]interface{}) (*types.Receipt, error) { return nil, err })
}

// Receipt 生成成功回执，可附带一个本合约事件
func (f *Invoker) Receipt(event map[string]interface{}) *types.Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.block++
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.BytesToHash(binary.BigEndian.AppendUint64(f.Addr.Bytes(), f.block)),
		BlockNumber: new(big.Int).SetUint64(f.block),
	}
	if event != nil {
		topic := common.BigToHash(big.NewInt(int64(len(f.events) + 1)))
		f.events[topic] = event
		receipt.Logs = []*types.Log{{Address: f.Addr, Topics: []common.Hash{topic}, TxHash: receipt.TxHash}}
	}
	return receipt
}

func (f *Invoker) Address() common.Address {
	return f.Addr
}

func (f *Invoker) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	f.mu.Lock()
	fn, ok := f.calls[method]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("chaintest: unexpected call %s", method)
	}
	return fn(args)
}

func (f *Invoker) Send(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	f.Journal.add(SentTx{Contract: f.Addr, Method: method, Args: args})

	f.mu.Lock()
	fn, ok := f.sends[method]
	f.mu.Unlock()
	if !ok {
		return f.Receipt(nil), nil
	}
	return fn(args)
}

func (f *Invoker) ParseEvent(log types.Log) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("chaintest: log without topics")
	}
	event, ok := f.events[log.Topics[0]]
	if !ok {
		return map[string]interface{}{"eventType": "Unknown"}, nil
	}
	return event, nil
}
