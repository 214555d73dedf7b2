package rosca

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/blues/rosca/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// 储蓄合约方法名
const (
	methodGroupSummary       = "getGroupSummary"
	methodContributionStatus = "getContributionStatus"
	methodInviteCodeInfo     = "getInviteCodeInfo"
	methodUserGroups         = "getUserGroups"
	methodGroupCount         = "groupCount"
	methodCreateGroup        = "createGroup"
	methodContribute         = "contribute"
	methodClaimPayout        = "claimPayout"
	methodJoinGroup          = "joinGroup"
	methodJoinGroupWithCode  = "joinGroupWithCode"
	methodGenerateInviteCode = "generateInviteCode"
	methodDeactivateInvite   = "deactivateInviteCode"

	EventGroupCreated      = "GroupCreated"
	EventInviteCodeCreated = "InviteCodeGenerated"
	EventContributionMade  = "ContributionMade"
	EventPayoutClaimed     = "PayoutClaimed"
	EventMemberJoined      = "MemberJoined"
)

// Savings 储蓄合约绑定
type Savings struct {
	inv chain.Invoker
}

// NewSavings 创建储蓄合约绑定
func NewSavings(inv chain.Invoker) *Savings {
	return &Savings{inv: inv}
}

// Address 合约地址，授权代币时作为 spender
func (s *Savings) Address() common.Address {
	return s.inv.Address()
}

// GroupSummary 获取群组概要
func (s *Savings) GroupSummary(ctx context.Context, groupID uint64) (*GroupSummary, error) {
	out, err := s.inv.Call(ctx, methodGroupSummary, new(big.Int).SetUint64(groupID))
	if err != nil {
		return nil, err
	}

	r := chain.NewTupleReader(out)
	g := &GroupSummary{
		ID:                   groupID,
		Name:                 r.Str(),
		Description:          r.Str(),
		Creator:              r.Address(),
		Token:                r.Address(),
		ContributionAmount:   r.BigInt(),
		CurrentMembers:       r.Uint64(),
		MaxMembers:           r.Uint64(),
		CurrentRound:         r.Uint64(),
		TotalRounds:          r.Uint64(),
		IsActive:             r.Bool(),
		IsCompleted:          r.Bool(),
		CanJoin:              r.Bool(),
		NextDeadline:         unixTime(r.Uint64()),
		CurrentRecipient:     r.Address(),
		CurrentRecipientName: r.Str(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s(%d): %w", methodGroupSummary, groupID, err)
	}

	// 不存在的群组返回零值
	if g.Creator == (common.Address{}) {
		return nil, fmt.Errorf("%w: %d", ErrGroupNotFound, groupID)
	}
	return g, nil
}

// ContributionStatus 获取成员本轮缴款状态
func (s *Savings) ContributionStatus(ctx context.Context, groupID uint64, member common.Address) (*ContributionStatus, error) {
	out, err := s.inv.Call(ctx, methodContributionStatus, new(big.Int).SetUint64(groupID), member)
	if err != nil {
		return nil, err
	}

	r := chain.NewTupleReader(out)
	status := &ContributionStatus{
		HasContributed: r.Bool(),
		IsLate:         r.Bool(),
		Amount:         r.BigInt(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s(%d): %w", methodContributionStatus, groupID, err)
	}
	return status, nil
}

// InviteCode 查询邀请码
func (s *Savings) InviteCode(ctx context.Context, code string) (*InviteCode, error) {
	out, err := s.inv.Call(ctx, methodInviteCodeInfo, code)
	if err != nil {
		return nil, err
	}

	r := chain.NewTupleReader(out)
	invite := &InviteCode{
		Code:        r.Str(),
		GroupID:     r.Uint64(),
		MaxUses:     r.Uint64(),
		CurrentUses: r.Uint64(),
		ExpiryTime:  int64(r.Uint64()),
		IsActive:    r.Bool(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s(%q): %w", methodInviteCodeInfo, code, err)
	}

	if invite.GroupID == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInviteNotFound, code)
	}
	if invite.Code == "" {
		invite.Code = code
	}
	return invite, nil
}

// UserGroups 获取用户参与的群组ID
func (s *Savings) UserGroups(ctx context.Context, user common.Address) ([]uint64, error) {
	out, err := s.inv.Call(ctx, methodUserGroups, user)
	if err != nil {
		return nil, err
	}

	ids, err := chain.Tuple(out).BigInts(0)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", methodUserGroups, err)
	}

	groups := make([]uint64, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, id.Uint64())
	}
	return groups, nil
}

// GroupCount 群组总数
func (s *Savings) GroupCount(ctx context.Context) (uint64, error) {
	out, err := s.inv.Call(ctx, methodGroupCount)
	if err != nil {
		return 0, err
	}
	n, err := chain.Tuple(out).Uint64(0)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", methodGroupCount, err)
	}
	return n, nil
}

// CreateGroup 创建群组，返回新群组ID（从事件中读取，读不到时为0）
func (s *Savings) CreateGroup(ctx context.Context, p CreateGroupParams) (uint64, *types.Receipt, error) {
	receipt, err := s.inv.Send(ctx, methodCreateGroup,
		p.Name,
		p.Description,
		p.Token,
		p.ContributionAmount,
		big.NewInt(int64(p.ContributionInterval/time.Second)),
		new(big.Int).SetUint64(p.MaxMembers),
		p.IsPrivate,
	)
	if err != nil {
		return 0, nil, err
	}

	var groupID uint64
	if event, ok := chain.FindEvent(s.inv, receipt, EventGroupCreated); ok {
		if id, ok := event["groupId"].(*big.Int); ok {
			groupID = id.Uint64()
		}
	}
	return groupID, receipt, nil
}

// Contribute 缴纳本轮款项
func (s *Savings) Contribute(ctx context.Context, groupID uint64) (*types.Receipt, error) {
	return s.inv.Send(ctx, methodContribute, new(big.Int).SetUint64(groupID))
}

// ClaimPayout 领取本轮资金
func (s *Savings) ClaimPayout(ctx context.Context, groupID uint64) (*types.Receipt, error) {
	return s.inv.Send(ctx, methodClaimPayout, new(big.Int).SetUint64(groupID))
}

// JoinGroup 加入公开群组
func (s *Savings) JoinGroup(ctx context.Context, groupID uint64) (*types.Receipt, error) {
	return s.inv.Send(ctx, methodJoinGroup, new(big.Int).SetUint64(groupID))
}

// JoinGroupWithCode 使用邀请码加入
func (s *Savings) JoinGroupWithCode(ctx context.Context, code string) (*types.Receipt, error) {
	return s.inv.Send(ctx, methodJoinGroupWithCode, code)
}

// GenerateInviteCode 生成邀请码，返回合约生成的邀请码
func (s *Savings) GenerateInviteCode(ctx context.Context, groupID, maxUses uint64, expiry time.Time) (string, *types.Receipt, error) {
	var expiryUnix int64
	if !expiry.IsZero() {
		expiryUnix = expiry.Unix()
	}

	receipt, err := s.inv.Send(ctx, methodGenerateInviteCode,
		new(big.Int).SetUint64(groupID),
		new(big.Int).SetUint64(maxUses),
		big.NewInt(expiryUnix),
	)
	if err != nil {
		return "", nil, err
	}

	event, ok := chain.FindEvent(s.inv, receipt, EventInviteCodeCreated)
	if !ok {
		return "", receipt, fmt.Errorf("%s event missing from receipt %s", EventInviteCodeCreated, receipt.TxHash.Hex())
	}
	code, _ := event["code"].(string)
	if strings.TrimSpace(code) == "" {
		return "", receipt, fmt.Errorf("%s event carries no code", EventInviteCodeCreated)
	}
	return code, receipt, nil
}

// DeactivateInviteCode 作废邀请码
func (s *Savings) DeactivateInviteCode(ctx context.Context, code string) (*types.Receipt, error) {
	return s.inv.Send(ctx, methodDeactivateInvite, code)
}

func unixTime(sec uint64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}
