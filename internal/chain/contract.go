package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/blues/rosca/internal/config"
	"github.com/blues/rosca/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend 合约调用所需的链客户端能力，*ethclient.Client 满足此接口
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Invoker 合约方法调用
type Invoker interface {
	Address() common.Address
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	Send(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error)
	ParseEvent(log types.Log) (map[string]interface{}, error)
}

// FindEvent 在回执中查找本合约发出的指定事件
func FindEvent(inv Invoker, receipt *types.Receipt, eventType string) (map[string]interface{}, bool) {
	if receipt == nil {
		return nil, false
	}
	for _, log := range receipt.Logs {
		if log == nil || log.Address != inv.Address() {
			continue
		}
		event, err := inv.ParseEvent(*log)
		if err != nil {
			continue
		}
		if event["eventType"] == eventType {
			return event, true
		}
	}
	return nil, false
}

// Contract 统一合约包装器
type Contract struct {
	backend        Backend
	bound          *bind.BoundContract
	signer         *Signer
	address        common.Address
	abi            abi.ABI
	name           string
	blockNum       int64 // 合约部署的区块号
	receiptTimeout time.Duration
}

// LoadABI 加载ABI文件，支持纯ABI数组或带 abi 字段的编译输出
func LoadABI(path string) (abi.ABI, error) {
	abiData, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to load ABI from %s: %w", path, err)
	}
	return ParseABI(abiData)
}

// ParseABI 解析ABI内容
func ParseABI(abiData []byte) (abi.ABI, error) {
	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}

	// 首先尝试解析为完整编译输出
	if err := json.Unmarshal(abiData, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		parsed, err := abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(abiData))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// NewContract 创建合约实例
func NewContract(backend Backend, signer *Signer, name string, parsedABI abi.ABI, cfg config.ContractConfig, receiptTimeout time.Duration) *Contract {
	address := common.HexToAddress(cfg.Address)
	return &Contract{
		backend:        backend,
		bound:          bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		signer:         signer,
		address:        address,
		abi:            parsedABI,
		name:           name,
		blockNum:       cfg.BlockNum,
		receiptTimeout: receiptTimeout,
	}
}

// Address 获取合约地址
func (c *Contract) Address() common.Address {
	return c.address
}

// GetName 获取合约名称
func (c *Contract) GetName() string {
	return c.name
}

// GetBlockNum 获取合约部署区块号
func (c *Contract) GetBlockNum() int64 {
	return c.blockNum
}

// Call 调用只读方法，返回按位置排列的输出
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	opts := &bind.CallOpts{Context: ctx}
	if c.signer != nil {
		opts.From = c.signer.Address()
	}

	var out []interface{}
	if err := c.bound.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrCallFailed, c.name, method, err)
	}
	return out, nil
}

// Send 发送交易并等待回执
func (c *Contract) Send(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}

	tx, err := c.signer.Submit(ctx, c.backend, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.bound.Transact(opts, method, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrSubmitFailed, c.name, method, err)
	}
	logger.Info("Submitted %s.%s tx %s", c.name, method, tx.Hash().Hex())

	waitCtx := ctx
	if c.receiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.receiptTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrReceiptTimeout, err)
		}
		return nil, &TxError{Hash: tx.Hash(), Method: method, Err: err}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Warn("Tx %s (%s.%s) reverted in block %d", tx.Hash().Hex(), c.name, method, receipt.BlockNumber.Uint64())
		return nil, &TxError{Hash: tx.Hash(), Method: method, Receipt: receipt, Err: ErrTxReverted}
	}

	logger.Info("Tx %s (%s.%s) confirmed in block %d", tx.Hash().Hex(), c.name, method, receipt.BlockNumber.Uint64())
	return receipt, nil
}

// ParseEvent 解析事件日志
func (c *Contract) ParseEvent(log types.Log) (map[string]interface{}, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log %s#%d has no topics", log.TxHash.Hex(), log.Index)
	}

	event, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		// 未知事件
		logger.Warn("Unknown event signature: %s in contract %s", log.Topics[0].Hex(), c.name)
		return map[string]interface{}{
			"eventType":   "Unknown",
			"signature":   log.Topics[0].Hex(),
			"contract":    c.name,
			"txHash":      log.TxHash.Hex(),
			"blockNumber": log.BlockNumber,
			"logIndex":    log.Index,
		}, nil
	}

	result := make(map[string]interface{})

	// 解析索引参数
	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(result, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to parse topics of %s: %w", event.Name, err)
		}
	}

	// 解析非索引参数
	if len(log.Data) > 0 {
		if err := c.abi.UnpackIntoMap(result, event.Name, log.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack data of %s: %w", event.Name, err)
		}
	}

	result["eventType"] = event.Name
	result["contract"] = c.name
	result["txHash"] = log.TxHash.Hex()
	result["blockNumber"] = log.BlockNumber
	result["logIndex"] = log.Index

	return result, nil
}
