package config

import (
	"time"

	"github.com/gmsol-labs/gmx-solana/pkg/engine"
	"github.com/gmsol-labs/gmx-solana/pkg/logger"
	"github.com/gmsol-labs/gmx-solana/pkg/txpack"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// EngineConfig 表示提交引擎的重试与确认配置（时间单位：毫秒）。
type EngineConfig struct {
	MaxAttempts      int    `yaml:"max_attempts"`       // 单笔交易的发送尝试上限（含过期重建）
	InitialBackoffMs int    `yaml:"initial_backoff_ms"` // 瞬时错误的初始退避
	PollIntervalMs   int    `yaml:"poll_interval_ms"`   // 确认轮询间隔
	ConfirmTimeoutMs int    `yaml:"confirm_timeout_ms"` // 单笔交易确认等待上限
	Commitment       string `yaml:"commitment"`         // 目标确认级别：processed / confirmed / finalized
}

func (c *EngineConfig) ToPolicy() engine.Policy {
	return engine.Policy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: time.Duration(c.InitialBackoffMs) * time.Millisecond,
		PollInterval:   time.Duration(c.PollIntervalMs) * time.Millisecond,
		ConfirmTimeout: time.Duration(c.ConfirmTimeoutMs) * time.Millisecond,
		Commitment:     engine.Commitment(c.Commitment),
	}
}

// PackConfig 表示打包限制配置。零值字段使用协议默认值。
type PackConfig struct {
	MaxTransactionSize   int    `yaml:"max_transaction_size"`    // 交易最大字节数，上限 1232
	MaxComputeUnits      uint32 `yaml:"max_compute_units"`       // 单笔交易 CU 上限，上限 1400000
	MaxInstructionsPerTx int    `yaml:"max_instructions_per_tx"` // 单笔交易最大指令条数
	ComputeUnitPrice     uint64 `yaml:"compute_unit_price"`      // 优先费（micro-lamports per CU）
	ForceOneTransaction  bool   `yaml:"force_one_transaction"`   // 打包结果超过一笔交易时直接报错
}

func (c *PackConfig) ToBundleOptions() txpack.BundleOptions {
	return txpack.BundleOptions{
		Limits: txpack.Limits{
			MaxTransactionSize:   c.MaxTransactionSize,
			MaxComputeUnits:      c.MaxComputeUnits,
			MaxInstructionsPerTx: c.MaxInstructionsPerTx,
		},
		ForceOneTransaction: c.ForceOneTransaction,
		ComputeUnitPrice:    c.ComputeUnitPrice,
	}
}

// KafkaReporterConfig 表示交易终态上报的 Kafka 配置。
type KafkaReporterConfig struct {
	Enabled   bool   `yaml:"enabled"`    // 是否启用上报
	Brokers   string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔
	Topic     string `yaml:"topic"`      // 终态事件 topic
	TimeoutMs int    `yaml:"timeout_ms"` // 单条消息发送并等待 ack 的超时（毫秒）
}

// RedisJournalConfig 表示提交流水的 Redis 配置。
type RedisJournalConfig struct {
	Enabled bool   `yaml:"enabled"` // 是否启用流水记录
	Addr    string `yaml:"addr"`    // Redis 地址
	TTLHour int    `yaml:"ttl_h"`   // 流水保留时长（小时），默认 168
}

// WalletConfig 表示本地钱包配置。
type WalletConfig struct {
	FeePayerKey string `yaml:"fee_payer_key"` // base58 编码的 64 字节私钥
}

// BundlerConfig 是提交服务的主配置结构体。
type BundlerConfig struct {
	LogConf     LogConfig           `yaml:"logger"`  // 日志配置
	RpcEndpoint string              `yaml:"rpc"`     // Solana RPC 地址
	EngineConf  EngineConfig        `yaml:"engine"`  // 引擎重试/确认配置
	PackConf    PackConfig          `yaml:"pack"`    // 打包限制配置
	KafkaConf   KafkaReporterConfig `yaml:"kafka"`   // 终态上报配置
	JournalConf RedisJournalConfig  `yaml:"journal"` // 提交流水配置
	WalletConf  WalletConfig        `yaml:"wallet"`  // 钱包配置
}
