package rosca

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInviteNotFound  = errors.New("invite code not found")
	ErrInviteInactive  = errors.New("invite code is no longer active")
	ErrInviteExpired   = errors.New("invite code has expired")
	ErrInviteExhausted = errors.New("invite code has reached its usage limit")
	ErrGroupNotFound   = errors.New("group not found")
)

// 群组状态标签
const (
	StatusCompleted = "Completed"
	StatusActive    = "Active"
	StatusOpen      = "Open"
	StatusPending   = "Pending"
)

// 本轮缴款状态标签
const (
	ContributionPaid = "Paid"
	ContributionLate = "Late"
	ContributionDue  = "Due"
)

// GroupSummary 合约 getGroupSummary 的投影
type GroupSummary struct {
	ID                   uint64
	Name                 string
	Description          string
	Creator              common.Address
	Token                common.Address
	ContributionAmount   *big.Int
	CurrentMembers       uint64
	MaxMembers           uint64
	CurrentRound         uint64
	TotalRounds          uint64
	IsActive             bool
	IsCompleted          bool
	CanJoin              bool
	NextDeadline         time.Time
	CurrentRecipient     common.Address
	CurrentRecipientName string
}

// IsFull 成员已满
func (g *GroupSummary) IsFull() bool {
	return g.MaxMembers > 0 && g.CurrentMembers >= g.MaxMembers
}

// StatusLabel 根据标志位推导状态
func (g *GroupSummary) StatusLabel() string {
	switch {
	case g.IsCompleted:
		return StatusCompleted
	case g.IsActive:
		return StatusActive
	case g.CanJoin && !g.IsFull():
		return StatusOpen
	default:
		return StatusPending
	}
}

// ContributionStatus 合约 getContributionStatus 的投影
type ContributionStatus struct {
	HasContributed bool
	IsLate         bool
	Amount         *big.Int
}

// Label 缴款状态标签
func (c *ContributionStatus) Label() string {
	switch {
	case c.HasContributed:
		return ContributionPaid
	case c.IsLate:
		return ContributionLate
	default:
		return ContributionDue
	}
}

// InviteCode 邀请码
type InviteCode struct {
	Code        string
	GroupID     uint64
	MaxUses     uint64
	CurrentUses uint64
	ExpiryTime  int64 // unix秒，0表示不过期
	IsActive    bool
}

// Validate 校验邀请码是否可用
func (c *InviteCode) Validate(now time.Time) error {
	if !c.IsActive {
		return ErrInviteInactive
	}
	if c.ExpiryTime > 0 && now.Unix() > c.ExpiryTime {
		return ErrInviteExpired
	}
	if c.MaxUses > 0 && c.CurrentUses >= c.MaxUses {
		return ErrInviteExhausted
	}
	return nil
}

// RemainingUses 剩余次数，-1 表示不限
func (c *InviteCode) RemainingUses() int64 {
	if c.MaxUses == 0 {
		return -1
	}
	if c.CurrentUses >= c.MaxUses {
		return 0
	}
	return int64(c.MaxUses - c.CurrentUses)
}

// CreateGroupParams 创建群组参数
type CreateGroupParams struct {
	Name                 string
	Description          string
	Token                common.Address
	ContributionAmount   *big.Int
	ContributionInterval time.Duration
	MaxMembers           uint64
	IsPrivate            bool
}
