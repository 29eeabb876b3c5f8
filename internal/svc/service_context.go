package svc

import (
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"

	"github.com/gmsol-labs/gmx-solana/internal/config"
	"github.com/gmsol-labs/gmx-solana/internal/journal"
	"github.com/gmsol-labs/gmx-solana/internal/mq"
	"github.com/gmsol-labs/gmx-solana/pkg/engine"
	"github.com/gmsol-labs/gmx-solana/pkg/logger"
	"github.com/gmsol-labs/gmx-solana/pkg/signers"
)

// ServiceContext 持有提交服务的全部资源。
type ServiceContext struct {
	Config   config.BundlerConfig
	Engine   *engine.Engine
	Registry *signers.Registry
	FeePayer *signers.Local

	producer *kafka.Producer // 可为 nil（未启用上报）
	rdb      *redis.Client   // 可为 nil（未启用流水）
}

// NewServiceContext 按配置初始化 RPC 客户端、签名注册表与可选的 Kafka/Redis 依赖。
func NewServiceContext(c config.BundlerConfig) (*ServiceContext, error) {
	feePayer, err := signers.LocalFromBase58(c.WalletConf.FeePayerKey)
	if err != nil {
		logger.Errorf("fee payer 私钥解析失败: %v", err)
		return nil, err
	}

	sc := &ServiceContext{
		Config:   c,
		Registry: signers.NewRegistry(feePayer),
		FeePayer: feePayer,
	}

	var opts []engine.Option

	// Kafka 终态上报（可选）
	if c.KafkaConf.Enabled {
		producer, err := mq.NewKafkaProducer(c.KafkaConf.Brokers)
		if err != nil {
			logger.Errorf("Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		sc.producer = producer
		reporter := mq.NewKafkaReporter(producer, c.KafkaConf.Topic,
			time.Duration(c.KafkaConf.TimeoutMs)*time.Millisecond)
		opts = append(opts, engine.WithReporter(reporter))
	}

	// Redis 提交流水（可选）
	if c.JournalConf.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: c.JournalConf.Addr})
		sc.rdb = rdb
		j := journal.NewRedisJournal(rdb, time.Duration(c.JournalConf.TTLHour)*time.Hour)
		opts = append(opts, engine.WithJournal(j))
	}

	sc.Engine = engine.New(engine.NewRPCClient(c.RpcEndpoint), opts...)
	return sc, nil
}

// Close 释放外部连接。
func (sc *ServiceContext) Close() {
	if sc.producer != nil {
		sc.producer.Close()
	}
	if sc.rdb != nil {
		_ = sc.rdb.Close()
	}
}
