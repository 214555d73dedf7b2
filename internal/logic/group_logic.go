package logic

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blues/rosca/internal/amount"
	"github.com/blues/rosca/internal/logger"
	"github.com/blues/rosca/internal/rosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// 并发查询群组概要的上限
const fetchConcurrency = 8

// GroupView 群组展示信息
type GroupView struct {
	Id                   uint64     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	Creator              string     `json:"creator"`
	Token                string     `json:"token"`
	ContributionAmount   string     `json:"contribution_amount"`
	ContributionDisplay  string     `json:"contribution_display"`
	CurrentMembers       uint64     `json:"current_members"`
	MaxMembers           uint64     `json:"max_members"`
	CurrentRound         uint64     `json:"current_round"`
	TotalRounds          uint64     `json:"total_rounds"`
	IsActive             bool       `json:"is_active"`
	IsCompleted          bool       `json:"is_completed"`
	CanJoin              bool       `json:"can_join"`
	Status               string     `json:"status"`
	NextDeadline         *time.Time `json:"next_deadline,omitempty"`
	TimeRemaining        string     `json:"time_remaining,omitempty"`
	CurrentRecipient     string     `json:"current_recipient"`
	CurrentRecipientName string     `json:"current_recipient_name"`
	IsRecipient          bool       `json:"is_recipient"`
}

// ContributionView 本轮缴款状态
type ContributionView struct {
	GroupId        uint64 `json:"group_id"`
	HasContributed bool   `json:"has_contributed"`
	IsLate         bool   `json:"is_late"`
	Amount         string `json:"amount"`
	AmountDisplay  string `json:"amount_display"`
	Status         string `json:"status"`
}

// GroupStats 平台统计
type GroupStats struct {
	TotalGroups     uint64 `json:"total_groups"`
	ActiveGroups    uint64 `json:"active_groups"`
	CompletedGroups uint64 `json:"completed_groups"`
	OpenGroups      uint64 `json:"open_groups"`
	MyGroups        uint64 `json:"my_groups"`
}

// CreateGroupInput 创建群组参数，金额为可读格式
type CreateGroupInput struct {
	Name               string
	Description        string
	Token              string
	ContributionAmount string
	IntervalDays       uint64
	MaxMembers         uint64
	IsPrivate          bool
}

// GroupLogic 储蓄群组业务逻辑
type GroupLogic struct {
	contracts *Contracts
	records   *TxRecordLogic
	guard     inflight
	now       func() time.Time
}

// NewGroupLogic 创建群组业务逻辑
func NewGroupLogic(contracts *Contracts, records *TxRecordLogic) *GroupLogic {
	return &GroupLogic{contracts: contracts, records: records, now: time.Now}
}

// GetGroup 获取群组详情
func (l *GroupLogic) GetGroup(ctx context.Context, groupId uint64) (*GroupView, error) {
	g, err := l.contracts.Savings.GroupSummary(ctx, groupId)
	if err != nil {
		return nil, err
	}
	return l.view(ctx, g), nil
}

// ListMyGroups 获取当前账户参与的群组
func (l *GroupLogic) ListMyGroups(ctx context.Context) ([]*GroupView, error) {
	ids, err := l.contracts.Savings.UserGroups(ctx, l.contracts.Account)
	if err != nil {
		return nil, err
	}

	groups, err := l.fetchGroups(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, l.view(ctx, g))
	}
	return views, nil
}

// GetStats 获取平台统计
func (l *GroupLogic) GetStats(ctx context.Context) (*GroupStats, error) {
	count, err := l.contracts.Savings.GroupCount(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, count)
	for id := uint64(1); id <= count; id++ {
		ids = append(ids, id)
	}
	groups, err := l.fetchGroups(ctx, ids)
	if err != nil {
		return nil, err
	}

	stats := &GroupStats{TotalGroups: count}
	for _, g := range groups {
		switch g.StatusLabel() {
		case rosca.StatusCompleted:
			stats.CompletedGroups++
		case rosca.StatusActive:
			stats.ActiveGroups++
		case rosca.StatusOpen:
			stats.OpenGroups++
		}
	}

	mine, err := l.contracts.Savings.UserGroups(ctx, l.contracts.Account)
	if err != nil {
		return nil, err
	}
	stats.MyGroups = uint64(len(mine))
	return stats, nil
}

// ContributionStatus 获取当前账户本轮缴款状态
func (l *GroupLogic) ContributionStatus(ctx context.Context, groupId uint64) (*ContributionView, error) {
	g, err := l.contracts.Savings.GroupSummary(ctx, groupId)
	if err != nil {
		return nil, err
	}
	status, err := l.contracts.Savings.ContributionStatus(ctx, groupId, l.contracts.Account)
	if err != nil {
		return nil, err
	}

	due := status.Amount
	if due == nil || due.Sign() == 0 {
		due = g.ContributionAmount
	}
	decimals := l.contracts.Decimals(ctx, g.Token)
	return &ContributionView{
		GroupId:        groupId,
		HasContributed: status.HasContributed,
		IsLate:         status.IsLate,
		Amount:         bigString(due),
		AmountDisplay:  amount.FormatTokenAmount(due, decimals),
		Status:         status.Label(),
	}, nil
}

// CreateGroup 创建群组
func (l *GroupLogic) CreateGroup(ctx context.Context, in CreateGroupInput) (*TxResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidParam)
	}
	if !common.IsHexAddress(in.Token) {
		return nil, fmt.Errorf("%w: token %q is not an address", ErrInvalidParam, in.Token)
	}
	if in.MaxMembers < 2 {
		return nil, fmt.Errorf("%w: a group needs at least 2 members", ErrInvalidParam)
	}
	if in.IntervalDays == 0 {
		return nil, fmt.Errorf("%w: contribution interval is required", ErrInvalidParam)
	}

	token := common.HexToAddress(in.Token)
	value, err := amount.ParseTokenAmount(in.ContributionAmount, l.contracts.Decimals(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	if value.Sign() == 0 {
		return nil, fmt.Errorf("%w: contribution amount must be positive", ErrInvalidParam)
	}

	params := rosca.CreateGroupParams{
		Name:                 name,
		Description:          strings.TrimSpace(in.Description),
		Token:                token,
		ContributionAmount:   value,
		ContributionInterval: time.Duration(in.IntervalDays) * 24 * time.Hour,
		MaxMembers:           in.MaxMembers,
		IsPrivate:            in.IsPrivate,
	}

	return l.guard.do(ctx, ActionCreateGroup, name, func(ctx context.Context) (*TxResult, error) {
		groupId, receipt, err := l.contracts.Savings.CreateGroup(ctx, params)
		l.records.Track(ctx, ActionCreateGroup, name, receipt, err)
		if err != nil {
			return nil, fmt.Errorf("create group: %w", err)
		}

		logger.Info("Created group %d (%s) in tx %s", groupId, name, receipt.TxHash.Hex())
		result := newTxResult(ActionCreateGroup, receipt)
		result.GroupId = groupId
		return result, nil
	})
}

// JoinGroup 加入公开群组
func (l *GroupLogic) JoinGroup(ctx context.Context, groupId uint64) (*TxResult, error) {
	key := strconv.FormatUint(groupId, 10)
	return l.guard.do(ctx, ActionJoinGroup, key, func(ctx context.Context) (*TxResult, error) {
		g, err := l.contracts.Savings.GroupSummary(ctx, groupId)
		if err != nil {
			return nil, err
		}
		if !g.CanJoin || g.IsFull() {
			return nil, fmt.Errorf("%w: group %d", ErrGroupNotJoinable, groupId)
		}

		receipt, err := l.contracts.Savings.JoinGroup(ctx, groupId)
		l.records.Track(ctx, ActionJoinGroup, key, receipt, err)
		if err != nil {
			return nil, fmt.Errorf("join group %d: %w", groupId, err)
		}

		result := newTxResult(ActionJoinGroup, receipt)
		result.GroupId = groupId
		return result, nil
	})
}

// Contribute 授权代币后缴纳本轮款项
func (l *GroupLogic) Contribute(ctx context.Context, groupId uint64) (*TxResult, error) {
	key := strconv.FormatUint(groupId, 10)
	return l.guard.do(ctx, ActionContribute, key, func(ctx context.Context) (*TxResult, error) {
		g, err := l.contracts.Savings.GroupSummary(ctx, groupId)
		if err != nil {
			return nil, err
		}
		if !g.IsActive || g.IsCompleted {
			return nil, fmt.Errorf("%w: group %d", ErrGroupNotActive, groupId)
		}

		status, err := l.contracts.Savings.ContributionStatus(ctx, groupId, l.contracts.Account)
		if err != nil {
			return nil, err
		}
		if status.HasContributed {
			return nil, fmt.Errorf("%w: group %d round %d", ErrAlreadyContributed, groupId, g.CurrentRound)
		}

		approveReceipt, err := approve(ctx, l.contracts, l.records, g.Token, l.contracts.Savings.Address(), g.ContributionAmount, key)
		if err != nil {
			return nil, err
		}

		receipt, err := l.contracts.Savings.Contribute(ctx, groupId)
		l.records.Track(ctx, ActionContribute, key, receipt, err)
		if err != nil {
			return nil, fmt.Errorf("contribute to group %d: %w", groupId, err)
		}

		result := newTxResult(ActionContribute, receipt)
		result.ApproveTxHash = approveReceipt.TxHash.Hex()
		result.GroupId = groupId
		return result, nil
	})
}

// ClaimPayout 领取本轮资金，仅当前领取人可调用
func (l *GroupLogic) ClaimPayout(ctx context.Context, groupId uint64) (*TxResult, error) {
	key := strconv.FormatUint(groupId, 10)
	return l.guard.do(ctx, ActionClaimPayout, key, func(ctx context.Context) (*TxResult, error) {
		g, err := l.contracts.Savings.GroupSummary(ctx, groupId)
		if err != nil {
			return nil, err
		}
		if g.CurrentRecipient != l.contracts.Account {
			return nil, fmt.Errorf("%w: recipient of group %d is %s", ErrNotRecipient, groupId, g.CurrentRecipient.Hex())
		}

		receipt, err := l.contracts.Savings.ClaimPayout(ctx, groupId)
		l.records.Track(ctx, ActionClaimPayout, key, receipt, err)
		if err != nil {
			return nil, fmt.Errorf("claim payout of group %d: %w", groupId, err)
		}

		result := newTxResult(ActionClaimPayout, receipt)
		result.GroupId = groupId
		return result, nil
	})
}

// fetchGroups 并发获取群组概要，跳过不存在的群组，按ID排序
func (l *GroupLogic) fetchGroups(ctx context.Context, ids []uint64) ([]*rosca.GroupSummary, error) {
	results := make([]*rosca.GroupSummary, len(ids))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(fetchConcurrency)
	for i, id := range ids {
		i, id := i, id
		eg.Go(func() error {
			g, err := l.contracts.Savings.GroupSummary(egCtx, id)
			if errors.Is(err, rosca.ErrGroupNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	groups := make([]*rosca.GroupSummary, 0, len(results))
	for _, g := range results {
		if g != nil {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (l *GroupLogic) view(ctx context.Context, g *rosca.GroupSummary) *GroupView {
	decimals := l.contracts.Decimals(ctx, g.Token)
	v := &GroupView{
		Id:                   g.ID,
		Name:                 g.Name,
		Description:          g.Description,
		Creator:              g.Creator.Hex(),
		Token:                g.Token.Hex(),
		ContributionAmount:   bigString(g.ContributionAmount),
		ContributionDisplay:  amount.FormatTokenAmount(g.ContributionAmount, decimals),
		CurrentMembers:       g.CurrentMembers,
		MaxMembers:           g.MaxMembers,
		CurrentRound:         g.CurrentRound,
		TotalRounds:          g.TotalRounds,
		IsActive:             g.IsActive,
		IsCompleted:          g.IsCompleted,
		CanJoin:              g.CanJoin,
		Status:               g.StatusLabel(),
		CurrentRecipient:     g.CurrentRecipient.Hex(),
		CurrentRecipientName: g.CurrentRecipientName,
		IsRecipient:          g.CurrentRecipient == l.contracts.Account,
	}
	if !g.NextDeadline.IsZero() {
		deadline := g.NextDeadline
		v.NextDeadline = &deadline
		v.TimeRemaining = amount.FormatTimeRemaining(deadline, l.now())
	}
	return v
}

// approve 授权 spender 使用代币并记录交易，失败时中止后续调用
func approve(ctx context.Context, c *Contracts, records *TxRecordLogic, tokenAddr, spender common.Address, value *big.Int, subject string) (*types.Receipt, error) {
	token, err := c.TokenAt(tokenAddr)
	if err != nil {
		return nil, fmt.Errorf("bind token %s: %w", tokenAddr.Hex(), err)
	}

	receipt, err := token.Approve(ctx, spender, value)
	records.Track(ctx, ActionApprove, subject, receipt, err)
	if err != nil {
		return nil, fmt.Errorf("approve %s to %s: %w", bigString(value), spender.Hex(), err)
	}
	return receipt, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
