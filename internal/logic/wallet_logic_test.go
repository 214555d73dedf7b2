package logic

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

type fakeChainStatus struct {
	connected bool
	signer    bool
	balance   *big.Int
	err       error
}

func (f fakeChainStatus) IsConnected(context.Context) bool { return f.connected }
func (f fakeChainStatus) HasSigner() bool                  { return f.signer }

func (f fakeChainStatus) FetchBalance(context.Context, common.Address) (*big.Int, error) {
	return f.balance, f.err
}

func TestWalletLogic_Info(t *testing.T) {
	f := newFixture(t)
	f.token.Returns("symbol", "USDC")
	f.token.Returns("balanceOf", usdc(42))

	balance, _ := new(big.Int).SetString("1500000000000000000", 10)
	v := NewWalletLogic(f.contracts, fakeChainStatus{connected: true, signer: true, balance: balance}).Info(context.Background())

	assert.Equal(t, account.Hex(), v.Address)
	assert.True(t, v.Connected)
	assert.True(t, v.CanSign)
	assert.Equal(t, "1.50", v.NativeBalance)
	assert.Equal(t, "USDC", v.TokenSymbol)
	assert.Equal(t, "42.00", v.TokenBalance)
}

func TestWalletLogic_InfoDisconnected(t *testing.T) {
	f := newFixture(t)
	v := NewWalletLogic(f.contracts, fakeChainStatus{err: errors.New("down")}).Info(context.Background())

	assert.False(t, v.Connected)
	assert.False(t, v.CanSign)
	assert.Empty(t, v.NativeBalance)
	assert.Empty(t, v.TokenBalance)
}
