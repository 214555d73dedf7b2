package logic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blues/rosca/internal/amount"
	"github.com/blues/rosca/internal/logger"
	"github.com/blues/rosca/internal/merchant"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// ProductView 商品展示信息
type ProductView struct {
	Id                 uint64   `json:"id"`
	Merchant           string   `json:"merchant"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Price              string   `json:"price"`
	PriceDisplay       string   `json:"price_display"`
	AcceptedTokens     []string `json:"accepted_tokens"`
	Stock              uint64   `json:"stock"`
	IsActive           bool     `json:"is_active"`
	InStock            bool     `json:"in_stock"`
	AllowsInstallments bool     `json:"allows_installments"`
	MaxInstallments    uint64   `json:"max_installments"`
}

// PlanView 分期计划展示信息
type PlanView struct {
	Id                uint64     `json:"id"`
	ProductId         uint64     `json:"product_id"`
	Token             string     `json:"token"`
	TotalAmount       string     `json:"total_amount"`
	AmountPaid        string     `json:"amount_paid"`
	Remaining         string     `json:"remaining"`
	InstallmentAmount string     `json:"installment_amount"`
	TotalInstallments uint64     `json:"total_installments"`
	PaidInstallments  uint64     `json:"paid_installments"`
	NextDueDate       *time.Time `json:"next_due_date,omitempty"`
	TimeRemaining     string     `json:"time_remaining,omitempty"`
	IsActive          bool       `json:"is_active"`
}

// PurchaseLogic 商户购买业务逻辑
type PurchaseLogic struct {
	contracts *Contracts
	records   *TxRecordLogic
	guard     inflight
	now       func() time.Time
}

// NewPurchaseLogic 创建购买业务逻辑
func NewPurchaseLogic(contracts *Contracts, records *TxRecordLogic) *PurchaseLogic {
	return &PurchaseLogic{contracts: contracts, records: records, now: time.Now}
}

// GetProduct 获取商品详情
func (l *PurchaseLogic) GetProduct(ctx context.Context, productId uint64) (*ProductView, error) {
	core, err := l.contracts.merchantCore()
	if err != nil {
		return nil, err
	}
	p, err := core.Product(ctx, productId)
	if err != nil {
		return nil, err
	}
	return l.productView(ctx, p), nil
}

// ListProducts 获取全部商品
func (l *PurchaseLogic) ListProducts(ctx context.Context) ([]*ProductView, error) {
	core, err := l.contracts.merchantCore()
	if err != nil {
		return nil, err
	}
	count, err := core.ProductCount(ctx)
	if err != nil {
		return nil, err
	}

	products := make([]*merchant.Product, count)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(fetchConcurrency)
	for i := uint64(0); i < count; i++ {
		i := i
		eg.Go(func() error {
			p, err := core.Product(egCtx, i+1)
			if errors.Is(err, merchant.ErrProductNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			products[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	views := make([]*ProductView, 0, len(products))
	for _, p := range products {
		if p != nil {
			views = append(views, l.productView(ctx, p))
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Id < views[j].Id })
	return views, nil
}

// Purchase 购买商品，installments 大于1时走分期。先授权全价再调用购买
func (l *PurchaseLogic) Purchase(ctx context.Context, productId uint64, tokenHex string, installments uint64) (*TxResult, error) {
	core, err := l.contracts.merchantCore()
	if err != nil {
		return nil, err
	}
	tokenHex = strings.TrimSpace(tokenHex)
	if tokenHex != "" && !common.IsHexAddress(tokenHex) {
		return nil, fmt.Errorf("%w: token %q is not an address", ErrInvalidParam, tokenHex)
	}

	key := fmt.Sprintf("%d:%s:%d", productId, strings.ToLower(tokenHex), installments)
	return l.guard.do(ctx, ActionPurchase, key, func(ctx context.Context) (*TxResult, error) {
		p, err := core.Product(ctx, productId)
		if err != nil {
			return nil, err
		}
		if !p.InStock() {
			return nil, fmt.Errorf("%w: product %d", ErrOutOfStock, productId)
		}

		var token common.Address
		switch {
		case tokenHex != "":
			token = common.HexToAddress(tokenHex)
		case len(p.AcceptedTokens) > 0:
			token = p.AcceptedTokens[0]
		default:
			return nil, fmt.Errorf("%w: product %d lists no payment token", ErrTokenNotAccepted, productId)
		}
		if !p.Accepts(token) {
			return nil, fmt.Errorf("%w: %s", ErrTokenNotAccepted, token.Hex())
		}

		withPlan := installments > 1
		if withPlan {
			if !p.AllowsInstallments {
				return nil, fmt.Errorf("%w: product %d", ErrInstallmentsNotAllowed, productId)
			}
			if installments > p.MaxInstallments {
				return nil, fmt.Errorf("%w: %d > %d", ErrInvalidInstallments, installments, p.MaxInstallments)
			}
		}

		subject := strconv.FormatUint(productId, 10)
		approveReceipt, err := approve(ctx, l.contracts, l.records, token, core.Address(), p.Price, subject)
		if err != nil {
			return nil, err
		}

		var result *TxResult
		if withPlan {
			planId, receipt, err := core.PurchaseProductWithInstallments(ctx, productId, token, installments)
			l.records.Track(ctx, ActionPurchaseInstallments, subject, receipt, err)
			if err != nil {
				return nil, fmt.Errorf("purchase product %d in %d installments: %w", productId, installments, err)
			}
			result = newTxResult(ActionPurchaseInstallments, receipt)
			result.PlanId = planId
		} else {
			receipt, err := core.PurchaseProduct(ctx, productId, token)
			l.records.Track(ctx, ActionPurchase, subject, receipt, err)
			if err != nil {
				return nil, fmt.Errorf("purchase product %d: %w", productId, err)
			}
			result = newTxResult(ActionPurchase, receipt)
		}

		logger.Info("Purchased product %d with %s (installments=%d) in tx %s", productId, token.Hex(), installments, result.TxHash)
		result.ApproveTxHash = approveReceipt.TxHash.Hex()
		return result, nil
	})
}

// PayInstallment 授权一期金额后支付
func (l *PurchaseLogic) PayInstallment(ctx context.Context, planId uint64) (*TxResult, error) {
	core, err := l.contracts.merchantCore()
	if err != nil {
		return nil, err
	}

	key := strconv.FormatUint(planId, 10)
	return l.guard.do(ctx, ActionPayInstallment, key, func(ctx context.Context) (*TxResult, error) {
		plan, err := core.InstallmentPlan(ctx, planId)
		if err != nil {
			return nil, err
		}
		if plan.Buyer != l.contracts.Account {
			return nil, fmt.Errorf("%w: plan %d", ErrNotPlanOwner, planId)
		}
		if !plan.IsActive || plan.IsSettled() {
			return nil, fmt.Errorf("%w: plan %d", ErrPlanClosed, planId)
		}

		approveReceipt, err := approve(ctx, l.contracts, l.records, plan.Token, core.Address(), plan.InstallmentAmount, key)
		if err != nil {
			return nil, err
		}

		receipt, err := core.MakeInstallmentPayment(ctx, planId)
		l.records.Track(ctx, ActionPayInstallment, key, receipt, err)
		if err != nil {
			return nil, fmt.Errorf("pay installment of plan %d: %w", planId, err)
		}

		result := newTxResult(ActionPayInstallment, receipt)
		result.ApproveTxHash = approveReceipt.TxHash.Hex()
		result.PlanId = planId
		return result, nil
	})
}

// ListMyPlans 获取当前账户的分期计划
func (l *PurchaseLogic) ListMyPlans(ctx context.Context) ([]*PlanView, error) {
	core, err := l.contracts.merchantCore()
	if err != nil {
		return nil, err
	}
	ids, err := core.UserPlans(ctx, l.contracts.Account)
	if err != nil {
		return nil, err
	}

	views := make([]*PlanView, 0, len(ids))
	for _, id := range ids {
		plan, err := core.InstallmentPlan(ctx, id)
		if errors.Is(err, merchant.ErrPlanNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		views = append(views, l.planView(ctx, plan))
	}
	return views, nil
}

func (l *PurchaseLogic) productView(ctx context.Context, p *merchant.Product) *ProductView {
	decimals := defaultDecimals
	if len(p.AcceptedTokens) > 0 {
		decimals = l.contracts.Decimals(ctx, p.AcceptedTokens[0])
	}

	tokens := make([]string, 0, len(p.AcceptedTokens))
	for _, t := range p.AcceptedTokens {
		tokens = append(tokens, t.Hex())
	}
	return &ProductView{
		Id:                 p.ID,
		Merchant:           p.Merchant.Hex(),
		Name:               p.Name,
		Description:        p.Description,
		Price:              bigString(p.Price),
		PriceDisplay:       amount.FormatTokenAmount(p.Price, decimals),
		AcceptedTokens:     tokens,
		Stock:              p.Stock,
		IsActive:           p.IsActive,
		InStock:            p.InStock(),
		AllowsInstallments: p.AllowsInstallments,
		MaxInstallments:    p.MaxInstallments,
	}
}

func (l *PurchaseLogic) planView(ctx context.Context, plan *merchant.InstallmentPlan) *PlanView {
	decimals := l.contracts.Decimals(ctx, plan.Token)
	v := &PlanView{
		Id:                plan.ID,
		ProductId:         plan.ProductID,
		Token:             plan.Token.Hex(),
		TotalAmount:       amount.FormatTokenAmount(plan.TotalAmount, decimals),
		AmountPaid:        amount.FormatTokenAmount(plan.AmountPaid, decimals),
		Remaining:         amount.FormatTokenAmount(plan.Remaining(), decimals),
		InstallmentAmount: amount.FormatTokenAmount(plan.InstallmentAmount, decimals),
		TotalInstallments: plan.TotalInstallments,
		PaidInstallments:  plan.PaidInstallments,
		IsActive:          plan.IsActive,
	}
	if !plan.NextDueDate.IsZero() {
		due := plan.NextDueDate
		v.NextDueDate = &due
		v.TimeRemaining = amount.FormatTimeRemaining(due, l.now())
	}
	return v
}
