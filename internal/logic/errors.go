package logic

import (
	"errors"

	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/merchant"
	"github.com/blues/rosca/internal/rosca"
)

// 参数错误
var (
	ErrInvalidParam           = errors.New("invalid parameter")
	ErrEmptyInviteCode        = errors.New("invite code is required")
	ErrInviteInactive         = rosca.ErrInviteInactive
	ErrInviteExpired          = rosca.ErrInviteExpired
	ErrInviteExhausted        = rosca.ErrInviteExhausted
	ErrTokenNotAccepted       = errors.New("token is not accepted for this product")
	ErrInstallmentsNotAllowed = errors.New("product does not allow installment payments")
	ErrInvalidInstallments    = errors.New("installment count exceeds the product limit")
)

// 资源不存在
var (
	ErrGroupNotFound   = rosca.ErrGroupNotFound
	ErrInviteNotFound  = rosca.ErrInviteNotFound
	ErrProductNotFound = merchant.ErrProductNotFound
	ErrPlanNotFound    = merchant.ErrPlanNotFound
	ErrTxNotFound      = errors.New("transaction record not found")
)

// 状态冲突
var (
	ErrAlreadyContributed = errors.New("already contributed this round")
	ErrNotRecipient       = errors.New("account is not the current payout recipient")
	ErrGroupNotJoinable   = errors.New("group is not open for joining")
	ErrGroupNotActive     = errors.New("group is not active")
	ErrOutOfStock         = errors.New("product is out of stock")
	ErrNotPlanOwner       = errors.New("installment plan belongs to another account")
	ErrPlanClosed         = errors.New("installment plan is not active")
)

// 服务不可用
var (
	ErrNoSigner            = chain.ErrNoSigner
	ErrMerchantUnavailable = errors.New("merchant contract is not configured")
)
