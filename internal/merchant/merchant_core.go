package merchant

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/blues/rosca/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	methodProduct              = "getProduct"
	methodProductCount         = "productCount"
	methodInstallmentPlan      = "getInstallmentPlan"
	methodUserPlans            = "getUserPlans"
	methodPurchase             = "purchaseProduct"
	methodPurchaseInstallments = "purchaseProductWithInstallments"
	methodPayInstallment       = "makeInstallmentPayment"

	EventProductPurchased = "ProductPurchased"
	EventPlanCreated      = "InstallmentPlanCreated"
	EventInstallmentPaid  = "InstallmentPaid"
)

// MerchantCore 商户合约绑定
type MerchantCore struct {
	inv chain.Invoker
}

func NewMerchantCore(inv chain.Invoker) *MerchantCore {
	return &MerchantCore{inv: inv}
}

// Address 合约地址，购买前授权的 spender
func (m *MerchantCore) Address() common.Address {
	return m.inv.Address()
}

// Product 获取商品
func (m *MerchantCore) Product(ctx context.Context, id uint64) (*Product, error) {
	out, err := m.inv.Call(ctx, methodProduct, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}

	r := chain.NewTupleReader(out)
	p := &Product{
		ID:                 r.Uint64(),
		Merchant:           r.Address(),
		Name:               r.Str(),
		Description:        r.Str(),
		Price:              r.BigInt(),
		AcceptedTokens:     r.Addresses(),
		Stock:              r.Uint64(),
		IsActive:           r.Bool(),
		AllowsInstallments: r.Bool(),
		MaxInstallments:    r.Uint64(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s(%d): %w", methodProduct, id, err)
	}
	if p.Merchant == (common.Address{}) {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if p.ID == 0 {
		p.ID = id
	}
	return p, nil
}

// ProductCount 商品总数，商品ID从1开始连续编号
func (m *MerchantCore) ProductCount(ctx context.Context) (uint64, error) {
	out, err := m.inv.Call(ctx, methodProductCount)
	if err != nil {
		return 0, err
	}
	n, err := chain.Tuple(out).Uint64(0)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", methodProductCount, err)
	}
	return n, nil
}

// InstallmentPlan 获取分期计划
func (m *MerchantCore) InstallmentPlan(ctx context.Context, planID uint64) (*InstallmentPlan, error) {
	out, err := m.inv.Call(ctx, methodInstallmentPlan, new(big.Int).SetUint64(planID))
	if err != nil {
		return nil, err
	}

	r := chain.NewTupleReader(out)
	plan := &InstallmentPlan{
		ID:                planID,
		Buyer:             r.Address(),
		ProductID:         r.Uint64(),
		Token:             r.Address(),
		TotalAmount:       r.BigInt(),
		AmountPaid:        r.BigInt(),
		InstallmentAmount: r.BigInt(),
		TotalInstallments: r.Uint64(),
		PaidInstallments:  r.Uint64(),
	}
	if due := r.Uint64(); due > 0 {
		plan.NextDueDate = time.Unix(int64(due), 0).UTC()
	}
	plan.IsActive = r.Bool()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s(%d): %w", methodInstallmentPlan, planID, err)
	}
	if plan.Buyer == (common.Address{}) {
		return nil, fmt.Errorf("%w: %d", ErrPlanNotFound, planID)
	}
	return plan, nil
}

// UserPlans 用户的分期计划ID
func (m *MerchantCore) UserPlans(ctx context.Context, user common.Address) ([]uint64, error) {
	out, err := m.inv.Call(ctx, methodUserPlans, user)
	if err != nil {
		return nil, err
	}
	ids, err := chain.Tuple(out).BigInts(0)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", methodUserPlans, err)
	}
	plans := make([]uint64, 0, len(ids))
	for _, id := range ids {
		plans = append(plans, id.Uint64())
	}
	return plans, nil
}

// PurchaseProduct 全款购买
func (m *MerchantCore) PurchaseProduct(ctx context.Context, productID uint64, token common.Address) (*types.Receipt, error) {
	return m.inv.Send(ctx, methodPurchase, new(big.Int).SetUint64(productID), token)
}

// PurchaseProductWithInstallments 分期购买，返回新建的计划ID（事件缺失时为0）
func (m *MerchantCore) PurchaseProductWithInstallments(ctx context.Context, productID uint64, token common.Address, installments uint64) (uint64, *types.Receipt, error) {
	receipt, err := m.inv.Send(ctx, methodPurchaseInstallments,
		new(big.Int).SetUint64(productID),
		token,
		new(big.Int).SetUint64(installments),
	)
	if err != nil {
		return 0, nil, err
	}

	var planID uint64
	if event, ok := chain.FindEvent(m.inv, receipt, EventPlanCreated); ok {
		if id, ok := event["planId"].(*big.Int); ok {
			planID = id.Uint64()
		}
	}
	return planID, receipt, nil
}

// MakeInstallmentPayment 支付一期
func (m *MerchantCore) MakeInstallmentPayment(ctx context.Context, planID uint64) (*types.Receipt, error) {
	return m.inv.Send(ctx, methodPayInstallment, new(big.Int).SetUint64(planID))
}
