package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: "9090"
chain:
  chain_type: celo
  chain_id: 44787
  rpc_url: http://localhost:8545
  receipt_timeout: 30
  contracts:
    savings:
      address: "0x00000000000000000000000000000000000000aa"
      abi_path: abi/savings.json
      enabled: true
      block_num: 100
    token:
      address: "0x00000000000000000000000000000000000000bb"
      abi_path: abi/erc20.json
      enabled: true
chat:
  model: test-model
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom(t *testing.T) {
	cfg, err := LoadFrom(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "celo", cfg.Chain.ChainType)
	assert.Equal(t, int64(44787), cfg.Chain.ChainId)
	assert.Equal(t, 30*time.Second, cfg.Chain.ReceiptWait())
	assert.Equal(t, int64(100), cfg.Chain.Contracts[ContractSavings].BlockNum)
	assert.True(t, cfg.Chain.Contracts[ContractToken].Enabled)

	// 默认值
	assert.Equal(t, "test-model", cfg.Chat.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Chat.BaseURL)
	assert.Equal(t, int64(2000), cfg.Task.BatchSize)
	assert.Equal(t, "info", cfg.Log.GetLevel())
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	t.Setenv("CHAT_API_KEY", "sk-from-env")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadFrom(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Chat.APIKey)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Chain: ChainConfig{
				ChainType: "ethereum",
				Contracts: map[string]ContractConfig{
					ContractSavings: {Address: "0x1", Enabled: true},
				},
			},
			Task: TaskConfig{BatchSize: 100},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unsupported chain", mutate: func(c *Config) { c.Chain.ChainType = "solana" }, wantErr: true},
		{name: "no savings contract", mutate: func(c *Config) { delete(c.Chain.Contracts, ContractSavings) }, wantErr: true},
		{name: "savings disabled", mutate: func(c *Config) {
			c.Chain.Contracts[ContractSavings] = ContractConfig{Address: "0x1"}
		}, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.Task.BatchSize = 0 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
