package merchant

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrPlanNotFound    = errors.New("installment plan not found")
)

// Product 商品
type Product struct {
	ID                 uint64
	Merchant           common.Address
	Name               string
	Description        string
	Price              *big.Int
	AcceptedTokens     []common.Address
	Stock              uint64
	IsActive           bool
	AllowsInstallments bool
	MaxInstallments    uint64
}

// Accepts 是否接受该代币支付
func (p *Product) Accepts(token common.Address) bool {
	for _, t := range p.AcceptedTokens {
		if t == token {
			return true
		}
	}
	return false
}

// InStock 上架且有库存
func (p *Product) InStock() bool {
	return p.IsActive && p.Stock > 0
}

// InstallmentPlan 分期计划
type InstallmentPlan struct {
	ID                uint64
	Buyer             common.Address
	ProductID         uint64
	Token             common.Address
	TotalAmount       *big.Int
	AmountPaid        *big.Int
	InstallmentAmount *big.Int
	TotalInstallments uint64
	PaidInstallments  uint64
	NextDueDate       time.Time
	IsActive          bool
}

// Remaining 剩余未付金额
func (p *InstallmentPlan) Remaining() *big.Int {
	if p.TotalAmount == nil {
		return new(big.Int)
	}
	paid := p.AmountPaid
	if paid == nil {
		paid = new(big.Int)
	}
	rest := new(big.Int).Sub(p.TotalAmount, paid)
	if rest.Sign() < 0 {
		return new(big.Int)
	}
	return rest
}

// IsSettled 已全部付清
func (p *InstallmentPlan) IsSettled() bool {
	return p.TotalInstallments > 0 && p.PaidInstallments >= p.TotalInstallments
}
