package logic

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blues/rosca/internal/amount"
	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/logger"
)

// InviteView 邀请码展示信息
type InviteView struct {
	Code          string     `json:"code"`
	GroupId       uint64     `json:"group_id"`
	MaxUses       uint64     `json:"max_uses"`
	CurrentUses   uint64     `json:"current_uses"`
	RemainingUses int64      `json:"remaining_uses"` // -1 表示不限
	ExpiryTime    *time.Time `json:"expiry_time,omitempty"`
	TimeRemaining string     `json:"time_remaining,omitempty"`
	IsActive      bool       `json:"is_active"`
	Valid         bool       `json:"valid"`
	Reason        string     `json:"reason,omitempty"`
}

// InviteLogic 邀请码业务逻辑
type InviteLogic struct {
	contracts *Contracts
	records   *TxRecordLogic
	guard     inflight
	now       func() time.Time
}

// NewInviteLogic 创建邀请码业务逻辑
func NewInviteLogic(contracts *Contracts, records *TxRecordLogic) *InviteLogic {
	return &InviteLogic{contracts: contracts, records: records, now: time.Now}
}

// Lookup 查询邀请码及其当前是否可用
func (l *InviteLogic) Lookup(ctx context.Context, code string) (*InviteView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyInviteCode
	}

	invite, err := l.contracts.Savings.InviteCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := l.now()
	v := &InviteView{
		Code:          invite.Code,
		GroupId:       invite.GroupID,
		MaxUses:       invite.MaxUses,
		CurrentUses:   invite.CurrentUses,
		RemainingUses: invite.RemainingUses(),
		IsActive:      invite.IsActive,
		Valid:         true,
	}
	if invite.ExpiryTime > 0 {
		expiry := time.Unix(invite.ExpiryTime, 0).UTC()
		v.ExpiryTime = &expiry
		v.TimeRemaining = amount.FormatTimeRemaining(expiry, now)
	}
	if err := invite.Validate(now); err != nil {
		v.Valid = false
		v.Reason = err.Error()
	}
	return v, nil
}

// Generate 为群组生成邀请码，maxUses 为0表示不限次数，validFor 为0表示不过期
func (l *InviteLogic) Generate(ctx context.Context, groupId, maxUses uint64, validFor time.Duration) (*TxResult, error) {
	if validFor < 0 {
		return nil, fmt.Errorf("%w: negative validity", ErrInvalidParam)
	}
	if _, err := l.contracts.Savings.GroupSummary(ctx, groupId); err != nil {
		return nil, err
	}

	var expiry time.Time
	if validFor > 0 {
		expiry = l.now().Add(validFor)
	}

	key := strconv.FormatUint(groupId, 10)
	code, receipt, err := l.contracts.Savings.GenerateInviteCode(ctx, groupId, maxUses, expiry)
	if err != nil && receipt != nil {
		// 交易已确认，但回执中读不到邀请码
		l.records.Track(ctx, ActionGenerateInvite, key, receipt, nil)
		err = &chain.TxError{Hash: receipt.TxHash, Method: "generateInviteCode", Receipt: receipt, Err: err}
		return nil, fmt.Errorf("generate invite code for group %d: %w", groupId, err)
	}
	l.records.Track(ctx, ActionGenerateInvite, key, receipt, err)
	if err != nil {
		return nil, fmt.Errorf("generate invite code for group %d: %w", groupId, err)
	}

	logger.Info("Generated invite code %s for group %d", code, groupId)
	result := newTxResult(ActionGenerateInvite, receipt)
	result.GroupId = groupId
	result.Code = code
	return result, nil
}

// Deactivate 作废邀请码
func (l *InviteLogic) Deactivate(ctx context.Context, code string) (*TxResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyInviteCode
	}

	return l.guard.do(ctx, ActionDeactivateInvite, code, func(ctx context.Context) (*TxResult, error) {
		invite, err := l.contracts.Savings.InviteCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if !invite.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrInviteInactive, code)
		}

		receipt, err := l.contracts.Savings.DeactivateInviteCode(ctx, code)
		l.records.Track(ctx, ActionDeactivateInvite, code, receipt, err)
		if err != nil {
			return nil, fmt.Errorf("deactivate invite code %s: %w", code, err)
		}

		result := newTxResult(ActionDeactivateInvite, receipt)
		result.GroupId = invite.GroupID
		result.Code = code
		return result, nil
	})
}

// Redeem 校验邀请码后加入群组
func (l *InviteLogic) Redeem(ctx context.Context, code string) (*TxResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyInviteCode
	}

	return l.guard.do(ctx, ActionRedeemInvite, code, func(ctx context.Context) (*TxResult, error) {
		invite, err := l.contracts.Savings.InviteCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := invite.Validate(l.now()); err != nil {
			return nil, fmt.Errorf("invite code %s: %w", code, err)
		}

		receipt, err := l.contracts.Savings.JoinGroupWithCode(ctx, code)
		l.records.Track(ctx, ActionRedeemInvite, code, receipt, err)
		if err != nil {
			return nil, fmt.Errorf("join group %d with code %s: %w", invite.GroupID, code, err)
		}

		logger.Info("Joined group %d with invite code %s", invite.GroupID, code)
		result := newTxResult(ActionRedeemInvite, receipt)
		result.GroupId = invite.GroupID
		result.Code = code
		return result, nil
	})
}
