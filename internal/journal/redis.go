// Package journal 把提交进度落到 Redis：每笔交易广播后先记 submitted，
// 终态落定后覆盖为终态。进程在 bundle 中途崩溃时，残留的 submitted
// 记录告诉运维哪些签名需要到链上核实——广播出去的交易无法本地回滚。
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gmsol-labs/gmx-solana/pkg/engine"
)

// Redis key 布局：journal:bundle:<bundleID>:tx:<seq> -> hash{sig, status, updated_at}
const keyPrefix = "journal:bundle"

// 流水默认保留 7 天
const defaultTTL = 7 * 24 * time.Hour

// RedisJournal 是 engine.Journal 的 Redis 实现。
type RedisJournal struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisJournal 创建流水记录器。ttl 为 0 时使用默认保留时长。
func NewRedisJournal(rdb *redis.Client, ttl time.Duration) *RedisJournal {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisJournal{rdb: rdb, ttl: ttl}
}

func txKey(bundleID string, seq int) string {
	return fmt.Sprintf("%s:%s:tx:%d", keyPrefix, bundleID, seq)
}

// RecordSubmitted 在交易广播后立即记录签名与 submitted 状态。
func (j *RedisJournal) RecordSubmitted(ctx context.Context, bundleID string, seq int, signature string) error {
	key := txKey(bundleID, seq)
	pipe := j.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"sig", signature,
		"status", "submitted",
		"updated_at", time.Now().Unix(),
	)
	pipe.Expire(ctx, key, j.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record submitted: %w", err)
	}
	return nil
}

// RecordOutcome 用终态覆盖 submitted 记录。
func (j *RedisJournal) RecordOutcome(ctx context.Context, bundleID string, outcome engine.Outcome) error {
	key := txKey(bundleID, outcome.Seq)
	pipe := j.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"sig", outcome.Signature,
		"status", outcome.Status.String(),
		"updated_at", time.Now().Unix(),
	)
	pipe.Expire(ctx, key, j.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record outcome: %w", err)
	}
	return nil
}

// TxRecord 表示流水中一笔交易的记录。
type TxRecord struct {
	Seq       int
	Signature string
	Status    string
}

// LoadBundle 读回某个 bundle 的全部流水记录，按 seq 升序。
// 供崩溃后的对账工具使用。
func (j *RedisJournal) LoadBundle(ctx context.Context, bundleID string) ([]TxRecord, error) {
	var records []TxRecord
	for seq := 0; ; seq++ {
		vals, err := j.rdb.HGetAll(ctx, txKey(bundleID, seq)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis load bundle %s: %w", bundleID, err)
		}
		if len(vals) == 0 {
			break
		}
		records = append(records, TxRecord{
			Seq:       seq,
			Signature: vals["sig"],
			Status:    vals["status"],
		})
	}
	return records, nil
}
