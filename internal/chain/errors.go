package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrTxReverted      = errors.New("transaction reverted")
	ErrReceiptTimeout  = errors.New("timed out waiting for transaction receipt")
	ErrContractMissing = errors.New("contract not registered")
	ErrCallFailed      = errors.New("contract call failed")
	ErrSubmitFailed    = errors.New("transaction submission failed")
)

// TxError 交易已广播但未成功确认
type TxError struct {
	Hash    common.Hash
	Method  string
	Receipt *types.Receipt
	Err     error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx %s (%s): %v", e.Hash.Hex(), e.Method, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// TxHashOf 从错误中提取交易哈希
func TxHashOf(err error) (common.Hash, bool) {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.Hash, true
	}
	return common.Hash{}, false
}
