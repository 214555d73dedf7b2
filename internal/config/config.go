package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blues/rosca/internal/logger"
	"github.com/spf13/viper"
)

// 合约名称，对应 chain.contracts 下的键
const (
	ContractSavings  = "savings"
	ContractToken    = "token"
	ContractMerchant = "merchant"
)

// SupportedChainTypes 支持的链类型
var SupportedChainTypes = []string{"ethereum", "polygon", "bsc", "arbitrum", "optimism", "celo", "local"}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Task     TaskConfig     `mapstructure:"task"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN 生成 postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// ChainConfig 单链配置
type ChainConfig struct {
	ChainType      string                    `mapstructure:"chain_type"`      // 链类型 (ethereum, celo, etc.)
	ChainId        int64                     `mapstructure:"chain_id"`        // 链ID
	RpcUrl         string                    `mapstructure:"rpc_url"`         // RPC节点URL
	PrivateKey     string                    `mapstructure:"private_key"`     // 签名私钥
	ReceiptTimeout int                       `mapstructure:"receipt_timeout"` // 等待回执超时（秒）
	Contracts      map[string]ContractConfig `mapstructure:"contracts"`       // 该链上的合约配置
}

// ReceiptWait 等待交易回执的超时时间
func (c ChainConfig) ReceiptWait() time.Duration {
	return time.Duration(c.ReceiptTimeout) * time.Second
}

// ContractConfig 单个合约配置
type ContractConfig struct {
	Address  string `mapstructure:"address"`   // 合约地址
	ABIPath  string `mapstructure:"abi_path"`  // ABI文件路径
	Enabled  bool   `mapstructure:"enabled"`   // 是否启用此合约
	BlockNum int64  `mapstructure:"block_num"` // 合约部署区块号
}

type TaskConfig struct {
	Interval  int   `mapstructure:"interval"`   // 秒
	BatchSize int64 `mapstructure:"batch_size"` // 每次同步的区块数
	Workers   int   `mapstructure:"workers"`    // 日志处理协程数
}

// ChatConfig AI助手配置
type ChatConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	Timeout      int    `mapstructure:"timeout"` // 秒
	SystemPrompt string `mapstructure:"system_prompt"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// Load 加载配置，失败直接退出
func Load() *Config {
	cfg, err := LoadFrom("")
	if err != nil {
		logger.Fatal("Unable to load config: %v", err)
	}
	return cfg
}

// LoadFrom 从指定文件加载配置，path为空时按默认路径查找
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/rosca")
	}

	setDefaults(v)

	// 环境变量覆盖，例如 CHAIN_PRIVATE_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		logger.Warn("Could not read config file, using defaults: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "rosca")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("chain.chain_type", "ethereum")
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.receipt_timeout", 120)
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.batch_size", 2000)
	v.SetDefault("task.workers", 4)
	v.SetDefault("chat.base_url", "https://api.openai.com/v1")
	v.SetDefault("chat.api_key", "")
	v.SetDefault("chat.model", "gpt-4o-mini")
	v.SetDefault("chat.timeout", 60)
	v.SetDefault("chat.system_prompt", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Validate 校验配置
func (c *Config) Validate() error {
	supported := false
	for _, t := range SupportedChainTypes {
		if c.Chain.ChainType == t {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported chain type %q, supported types: %s",
			c.Chain.ChainType, strings.Join(SupportedChainTypes, ", "))
	}

	savings, ok := c.Chain.Contracts[ContractSavings]
	if !ok || !savings.Enabled {
		return fmt.Errorf("contract %q must be configured and enabled", ContractSavings)
	}

	if c.Task.BatchSize <= 0 {
		return fmt.Errorf("task.batch_size must be positive, got %d", c.Task.BatchSize)
	}

	return nil
}
