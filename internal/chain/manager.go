package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/blues/rosca/internal/config"
	"github.com/blues/rosca/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Manager 单链管理器
type Manager struct {
	mu        sync.RWMutex
	contracts map[string]*Contract // 合约映射: "contractName" -> Contract
	backend   Backend
	signer    *Signer
	config    config.ChainConfig
	closeFn   func()
}

// NewManager 连接RPC并初始化所有启用的合约
func NewManager(cfg config.ChainConfig) (*Manager, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	logger.Info("Creating %s client connection (RPC: %s)", cfg.ChainType, cfg.RpcUrl)
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.ChainType, err)
	}

	// 测试连接
	if _, err := client.BlockNumber(context.TODO()); err != nil {
		client.Close()
		return nil, fmt.Errorf("client connection test failed (%s): %w", cfg.ChainType, err)
	}

	manager, err := NewManagerWithBackend(cfg, client, LoadABI)
	if err != nil {
		client.Close()
		return nil, err
	}
	manager.closeFn = client.Close
	return manager, nil
}

// NewManagerWithBackend 使用已有的链客户端创建管理器
func NewManagerWithBackend(cfg config.ChainConfig, backend Backend, loadABI func(path string) (abi.ABI, error)) (*Manager, error) {
	manager := &Manager{
		contracts: make(map[string]*Contract),
		backend:   backend,
		config:    cfg,
	}

	if cfg.PrivateKey != "" {
		signer, err := NewSigner(cfg.PrivateKey, cfg.ChainId)
		if err != nil {
			return nil, err
		}
		manager.signer = signer
		logger.Info("Using signer account %s", signer.Address().Hex())
	} else {
		logger.Warn("No private key configured, write operations are disabled")
	}

	// 初始化所有启用的合约
	for contractName, contractCfg := range cfg.Contracts {
		if !contractCfg.Enabled {
			logger.Info("Skipping disabled contract: %s", contractName)
			continue
		}

		parsedABI, err := loadABI(contractCfg.ABIPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create contract %s: %w", contractName, err)
		}

		manager.contracts[contractName] = NewContract(backend, manager.signer, contractName, parsedABI, contractCfg, cfg.ReceiptWait())
		logger.Info("Initialized contract: %s (address: %s)", contractName, contractCfg.Address)
	}

	logger.Info("Successfully initialized %d contracts", len(manager.contracts))
	return manager, nil
}

// Backend 获取链客户端
func (m *Manager) Backend() Backend {
	return m.backend
}

// Account 当前签名账户，未配置私钥时返回零地址
func (m *Manager) Account() common.Address {
	if m.signer == nil {
		return common.Address{}
	}
	return m.signer.Address()
}

// HasSigner 是否可以发送交易
func (m *Manager) HasSigner() bool {
	return m.signer != nil
}

// GetContract 获取指定合约
func (m *Manager) GetContract(contractName string) (*Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contract, exists := m.contracts[contractName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrContractMissing, contractName)
	}
	return contract, nil
}

// At 以已配置合约的ABI绑定另一个地址，用于群组或商品使用的任意ERC20代币
func (m *Manager) At(contractName string, address common.Address) (*Contract, error) {
	base, err := m.GetContract(contractName)
	if err != nil {
		return nil, err
	}
	if address == base.address {
		return base, nil
	}

	cfg := config.ContractConfig{Address: address.Hex(), Enabled: true}
	return NewContract(m.backend, m.signer, contractName, base.abi, cfg, m.config.ReceiptWait()), nil
}

// GetContracts 获取所有合约，按名称排序
func (m *Manager) GetContracts() []*Contract {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contracts := make([]*Contract, 0, len(m.contracts))
	for _, contract := range m.contracts {
		contracts = append(contracts, contract)
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].name < contracts[j].name })
	return contracts
}

// IsConnected 节点是否可用
func (m *Manager) IsConnected(ctx context.Context) bool {
	_, err := m.backend.BlockNumber(ctx)
	return err == nil
}

// LatestBlock 获取当前最新区块号
func (m *Manager) LatestBlock(ctx context.Context) (int64, error) {
	n, err := m.backend.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// FetchBalance 获取原生币余额
func (m *Manager) FetchBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return m.backend.BalanceAt(ctx, account, nil)
}

// TransactionReceipt 获取交易回执
func (m *Manager) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return m.backend.TransactionReceipt(ctx, hash)
}

// GetHealthStatus 获取健康状态
func (m *Manager) GetHealthStatus(ctx context.Context) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := "connected"
	head, err := m.LatestBlock(ctx)
	if err != nil {
		status = "disconnected"
	}

	contracts := make(map[string]interface{}, len(m.contracts))
	for name, contract := range m.contracts {
		contracts[name] = map[string]interface{}{
			"address":   contract.Address().Hex(),
			"block_num": contract.GetBlockNum(),
		}
	}

	return map[string]interface{}{
		"chain_type":    m.config.ChainType,
		"chain_id":      m.config.ChainId,
		"client_status": status,
		"account":       m.Account().Hex(),
		"can_sign":      m.HasSigner(),
		"latest_block":  head,
		"contracts":     contracts,
	}
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closeFn != nil {
		m.closeFn()
	}
	logger.Info("Chain manager closed")
	return nil
}
