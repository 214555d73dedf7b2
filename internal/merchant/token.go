package merchant

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blues/rosca/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Token ERC20 代币绑定
type Token struct {
	inv chain.Invoker
}

func NewToken(inv chain.Invoker) *Token {
	return &Token{inv: inv}
}

func (t *Token) Address() common.Address {
	return t.inv.Address()
}

// Decimals 代币精度
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.inv.Call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, err := chain.Tuple(out).Uint8(0)
	if err != nil {
		return 0, fmt.Errorf("decode decimals: %w", err)
	}
	return d, nil
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.inv.Call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	s, err := chain.Tuple(out).String(0)
	if err != nil {
		return "", fmt.Errorf("decode symbol: %w", err)
	}
	return s, nil
}

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := t.inv.Call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	n, err := chain.Tuple(out).BigInt(0)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	return n, nil
}

// Approve 授权 spender 使用 amount，等待交易上链
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	return t.inv.Send(ctx, "approve", spender, amount)
}
