package logic

import (
	"context"
	"math/big"

	"github.com/blues/rosca/internal/amount"
	"github.com/blues/rosca/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

// ChainStatus 节点状态查询，由 chain.Manager 实现
type ChainStatus interface {
	IsConnected(ctx context.Context) bool
	FetchBalance(ctx context.Context, account common.Address) (*big.Int, error)
	HasSigner() bool
}

// WalletView 签名账户信息
type WalletView struct {
	Address       string `json:"address"`
	ShortAddress  string `json:"short_address"`
	Connected     bool   `json:"connected"`
	CanSign       bool   `json:"can_sign"`
	NativeBalance string `json:"native_balance"`
	Token         string `json:"token,omitempty"`
	TokenSymbol   string `json:"token_symbol,omitempty"`
	TokenBalance  string `json:"token_balance,omitempty"`
}

// WalletLogic 钱包业务逻辑
type WalletLogic struct {
	contracts *Contracts
	status    ChainStatus
}

// NewWalletLogic 创建钱包业务逻辑
func NewWalletLogic(contracts *Contracts, status ChainStatus) *WalletLogic {
	return &WalletLogic{contracts: contracts, status: status}
}

// Info 获取账户地址、连接状态与余额，余额查询失败时留空
func (l *WalletLogic) Info(ctx context.Context) *WalletView {
	account := l.contracts.Account
	v := &WalletView{
		Address:      account.Hex(),
		ShortAddress: amount.ShortAddress(account.Hex()),
		Connected:    l.status.IsConnected(ctx),
		CanSign:      l.status.HasSigner(),
	}
	if !v.Connected {
		return v
	}

	if bal, err := l.status.FetchBalance(ctx, account); err == nil {
		v.NativeBalance = amount.FormatTokenAmount(bal, defaultDecimals)
	} else {
		logger.Warn("Failed to fetch native balance of %s: %v", account.Hex(), err)
	}

	token := l.contracts.Token
	if token == nil {
		return v
	}
	v.Token = token.Address().Hex()
	if symbol, err := token.Symbol(ctx); err == nil {
		v.TokenSymbol = symbol
	}
	if bal, err := token.BalanceOf(ctx, account); err == nil {
		v.TokenBalance = amount.FormatTokenAmount(bal, l.contracts.Decimals(ctx, token.Address()))
	} else {
		logger.Warn("Failed to fetch token balance of %s: %v", account.Hex(), err)
	}
	return v
}
