// Package amount 代币金额与时间的展示格式化
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid token amount")
	ErrNegativeAmount = errors.New("token amount must not be negative")
	ErrTooPrecise     = errors.New("token amount has more decimals than the token supports")
)

// FormatTokenAmount 按精度换算并保留两位小数，0或nil返回"0"
func FormatTokenAmount(v *big.Int, decimals uint8) string {
	if v == nil || v.Sign() == 0 {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).StringFixed(2)
}

// ParseTokenAmount 将可读金额转换为最小单位
func ParseTokenAmount(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, ErrTooPrecise
	}
	return shifted.BigInt(), nil
}

// FormatTimeRemaining 截止时间剩余展示
func FormatTimeRemaining(deadline, now time.Time) string {
	if !deadline.After(now) {
		return "Expired"
	}

	left := deadline.Sub(now)
	days := int(left / (24 * time.Hour))
	hours := int(left%(24*time.Hour)) / int(time.Hour)
	minutes := int(left%time.Hour) / int(time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// ShortAddress 0x1234...abcd
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
