package logic

import (
	"context"
	"fmt"
	"sync"

	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/config"
	"github.com/blues/rosca/internal/logger"
	"github.com/blues/rosca/internal/merchant"
	"github.com/blues/rosca/internal/rosca"
	"github.com/ethereum/go-ethereum/common"
)

const defaultDecimals uint8 = 18

// Contracts 业务使用的合约绑定
type Contracts struct {
	Account  common.Address
	Savings  *rosca.Savings
	Merchant *merchant.MerchantCore // 未启用商户合约时为 nil
	Token    *merchant.Token        // 默认代币，可为 nil

	tokenAt  func(addr common.Address) (chain.Invoker, error)
	decimals sync.Map // common.Address -> uint8
}

// NewContracts 从链管理器构建合约绑定
func NewContracts(m *chain.Manager) (*Contracts, error) {
	savings, err := m.GetContract(config.ContractSavings)
	if err != nil {
		return nil, err
	}

	c := &Contracts{
		Account: m.Account(),
		Savings: rosca.NewSavings(savings),
	}
	if core, err := m.GetContract(config.ContractMerchant); err == nil {
		c.Merchant = merchant.NewMerchantCore(core)
	} else {
		logger.Warn("Merchant contract disabled: %v", err)
	}
	if token, err := m.GetContract(config.ContractToken); err == nil {
		c.Token = merchant.NewToken(token)
		c.tokenAt = func(addr common.Address) (chain.Invoker, error) {
			return m.At(config.ContractToken, addr)
		}
	} else {
		logger.Warn("Token contract disabled, ERC20 approvals are unavailable: %v", err)
	}
	return c, nil
}

// TokenAt 绑定指定地址的ERC20代币
func (c *Contracts) TokenAt(addr common.Address) (*merchant.Token, error) {
	if c.Token != nil && c.Token.Address() == addr {
		return c.Token, nil
	}
	if c.tokenAt == nil {
		return nil, fmt.Errorf("%w: %s", chain.ErrContractMissing, config.ContractToken)
	}
	inv, err := c.tokenAt(addr)
	if err != nil {
		return nil, err
	}
	return merchant.NewToken(inv), nil
}

// Decimals 代币精度，查询失败时按18位处理
func (c *Contracts) Decimals(ctx context.Context, addr common.Address) uint8 {
	if v, ok := c.decimals.Load(addr); ok {
		return v.(uint8)
	}

	token, err := c.TokenAt(addr)
	if err != nil {
		logger.Warn("No token binding for %s, assuming %d decimals: %v", addr.Hex(), defaultDecimals, err)
		return defaultDecimals
	}
	d, err := token.Decimals(ctx)
	if err != nil {
		logger.Warn("Failed to read decimals of %s, assuming %d: %v", addr.Hex(), defaultDecimals, err)
		return defaultDecimals
	}
	c.decimals.Store(addr, d)
	return d
}

func (c *Contracts) merchantCore() (*merchant.MerchantCore, error) {
	if c.Merchant == nil {
		return nil, ErrMerchantUnavailable
	}
	return c.Merchant, nil
}
