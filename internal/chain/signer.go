package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoSigner = errors.New("no signer configured")

// NonceSource 查询账户待处理 nonce
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Signer 交易签名账户
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int

	mu     sync.Mutex
	nonce  uint64
	synced bool // 为 false 时下一笔交易前从链上重新读取 nonce
}

// NewSigner 从十六进制私钥创建签名账户
func NewSigner(hexKey string, chainID int64) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}, nil
}

// Address 签名账户地址
func (s *Signer) Address() common.Address {
	return s.address
}

// TransactOpts 获取交易授权
func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Submit 串行分配 nonce 并提交交易，提交失败后重新同步 nonce
func (s *Signer) Submit(ctx context.Context, src NonceSource, submit func(opts *bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.synced {
		nonce, err := src.PendingNonceAt(ctx, s.address)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pending nonce: %w", err)
		}
		s.nonce = nonce
		s.synced = true
	}

	opts, err := s.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.Nonce = new(big.Int).SetUint64(s.nonce)

	tx, err := submit(opts)
	if err != nil {
		s.synced = false
		return nil, err
	}
	s.nonce++
	return tx, nil
}
