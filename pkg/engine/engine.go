package engine

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/gmsol-labs/gmx-solana/pkg/logger"
	"github.com/gmsol-labs/gmx-solana/pkg/signers"
	"github.com/gmsol-labs/gmx-solana/pkg/txpack"
)

// Policy 控制单次 Submit 的重试与确认行为。
type Policy struct {
	Label          string        // bundle 标识，空则自动生成（用于 journal / 上报）
	MaxAttempts    int           // 每笔交易的签名+发送尝试上限（含过期重建），默认 5
	InitialBackoff time.Duration // 瞬时错误重试的初始退避，默认 200ms
	PollInterval   time.Duration // 确认轮询间隔，默认 500ms
	ConfirmTimeout time.Duration // 单笔交易的确认等待上限，默认 30s
	Commitment     Commitment    // 目标确认级别，默认 confirmed
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 200 * time.Millisecond
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 500 * time.Millisecond
	}
	if p.ConfirmTimeout <= 0 {
		p.ConfirmTimeout = 30 * time.Second
	}
	if p.Commitment == "" {
		p.Commitment = CommitmentConfirmed
	}
	return p
}

// Engine 按顺序执行 bundle 内的交易。自身无共享可变状态，
// 多个 goroutine 可各自 Submit 独立的 bundle 并共享同一 Client。
type Engine struct {
	client   Client
	journal  Journal
	reporter Reporter
}

// Option 配置 Engine 的可选依赖。
type Option func(*Engine)

// WithJournal 挂接提交进度记录。
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithReporter 挂接终态上报。
func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// New 创建引擎。
func New(client Client, opts ...Option) *Engine {
	e := &Engine{client: client}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit 按 builder 输出顺序执行 bundle：逐笔解析签名者、finalize、签名、
// 发送并等待终态，前一笔未到终态绝不开始下一笔。任何非 Confirmed 终态都会
// 停止后续交易，报告中已确认前缀如实保留，未执行的交易标记为 unexecuted。
func (e *Engine) Submit(ctx context.Context, bundle *txpack.Bundle, reg *signers.Registry, policy Policy) (*BundleReport, error) {
	policy = policy.normalize()

	bundleID := policy.Label
	if bundleID == "" {
		bundleID = newBundleID()
	}

	report := &BundleReport{
		BundleID:     bundleID,
		Outcomes:     make([]Outcome, bundle.Len()),
		FirstFailure: -1,
	}
	for i := range report.Outcomes {
		report.Outcomes[i] = Outcome{Seq: i, Status: StatusUnexecuted}
	}

	for i, draft := range bundle.Drafts {
		outcome := e.executeOne(ctx, bundleID, draft, reg, policy)
		report.Outcomes[i] = outcome
		e.record(ctx, bundleID, outcome)

		if outcome.Status != StatusConfirmed {
			report.FirstFailure = i
			logger.Warnf("[engine] bundle=%s tx=%d terminated: status=%s err=%v", bundleID, i, outcome.Status, outcome.Err)
			return report, fmt.Errorf("transaction %d: %w", i, outcome.Err)
		}
		logger.Infof("[engine] bundle=%s tx=%d confirmed: sig=%s attempts=%d", bundleID, i, outcome.Signature, outcome.Attempts)
	}
	return report, nil
}

// executeOne 驱动单笔交易走完 Pending → Signing → Submitted → 终态 的状态机。
func (e *Engine) executeOne(ctx context.Context, bundleID string, draft *txpack.Draft, reg *signers.Registry, policy Policy) Outcome {
	outcome := Outcome{Seq: draft.Seq}

	// 预检：必需签名者必须全部可解析，缺一个都不进入签名阶段。
	if _, err := reg.Resolve(draft.RequiredSigners()); err != nil {
		outcome.Status = StatusMissingSigner
		outcome.Err = err
		return outcome
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 1; ; attempt++ {
		outcome.Attempts = attempt
		status, sig, logs, err := e.attemptOnce(ctx, bundleID, draft, reg, policy)
		outcome.Status = status
		outcome.Signature = sig
		outcome.Err = err
		outcome.Logs = logs

		if !status.retryable() {
			return outcome
		}
		if attempt >= policy.MaxAttempts {
			return outcome
		}
		if ctx.Err() != nil {
			outcome.Err = fmt.Errorf("%v: %w", err, ctx.Err())
			return outcome
		}

		wait := bo.NextBackOff()
		logger.Warnf("[engine] bundle=%s tx=%d attempt %d failed (%s), retrying in %v: %v",
			bundleID, draft.Seq, attempt, status, wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			outcome.Err = fmt.Errorf("%v: %w", err, ctx.Err())
			return outcome
		}
	}
}

// attemptOnce 执行一次完整尝试：取 blockhash → finalize → 签名 → 发送 → 等确认。
// blockhash 每次尝试重新获取，过期重试天然拿到新 hash 并触发重签。
func (e *Engine) attemptOnce(ctx context.Context, bundleID string, draft *txpack.Draft, reg *signers.Registry, policy Policy) (Status, string, []string, error) {
	blockhash, err := e.client.LatestBlockhash(ctx)
	if err != nil {
		return StatusNetworkError, "", nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	msg := draft.Message(blockhash)
	tx, sig, err := e.signMessage(ctx, msg, reg)
	if err != nil {
		if _, ok := err.(*signers.MissingSignerError); ok {
			return StatusMissingSigner, "", nil, err
		}
		return StatusSigningFailed, "", nil, err
	}

	sentSig, err := e.client.SendTransaction(ctx, tx)
	if err != nil {
		if isExpiredSendErr(err) {
			return StatusExpired, "", nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		e.dumpTransaction(bundleID, draft.Seq, msg)
		return StatusNetworkError, "", nil, fmt.Errorf("send transaction: %w", err)
	}
	if sentSig == "" {
		sentSig = sig
	}
	if e.journal != nil {
		if jerr := e.journal.RecordSubmitted(ctx, bundleID, draft.Seq, sentSig); jerr != nil {
			logger.Warnf("[engine] bundle=%s tx=%d journal submit record failed: %v", bundleID, draft.Seq, jerr)
		}
	}

	return e.awaitConfirmation(ctx, tx, sentSig, policy)
}

// signMessage 序列化 message 并按 header 顺序逐个调用签名能力。
func (e *Engine) signMessage(ctx context.Context, msg types.Message, reg *signers.Registry) (types.Transaction, string, error) {
	raw, err := msg.Serialize()
	if err != nil {
		return types.Transaction{}, "", &signers.SigningError{Err: fmt.Errorf("serialize message: %w", err)}
	}

	// 签名顺序必须与 message 账户表前 NumRequireSignatures 项一致
	keys := msg.Accounts[:int(msg.Header.NumRequireSignatures)]
	resolved, err := reg.Resolve(keys)
	if err != nil {
		return types.Transaction{}, "", err
	}

	sigs := make([]types.Signature, 0, len(resolved))
	for _, s := range resolved {
		sig, serr := s.Sign(ctx, raw)
		if serr != nil {
			if _, ok := serr.(*signers.SigningError); ok {
				return types.Transaction{}, "", serr
			}
			return types.Transaction{}, "", &signers.SigningError{Pubkey: s.Pubkey(), Err: serr}
		}
		sigs = append(sigs, sig)
	}

	tx := types.Transaction{Signatures: sigs, Message: msg}
	return tx, signers.FormatSignature(sigs[0]), nil
}

// awaitConfirmation 以固定间隔轮询签名状态，直到确认、链上失败或超时。
// 超时前始终未观察到签名按过期处理（交给上层换 blockhash 重试）；
// 已观察到但迟迟未达目标级别则作为网络侧终态失败上报。
func (e *Engine) awaitConfirmation(ctx context.Context, tx types.Transaction, sig string, policy Policy) (Status, string, []string, error) {
	deadline := time.Now().Add(policy.ConfirmTimeout)
	seen := false

	for {
		statuses, err := e.client.SignatureStatuses(ctx, []string{sig})
		if err != nil {
			logger.Debugf("[engine] signature status query failed: %v", err)
		} else if len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			seen = true
			if st.Err != nil {
				logs := e.harvestLogs(ctx, tx)
				ocErr := &OnChainError{TxErr: st.Err, Logs: logs}
				return StatusOnChainFailure, sig, logs, ocErr
			}
			if st.Commitment.reached(policy.Commitment) {
				return StatusConfirmed, sig, nil, nil
			}
		}

		if time.Now().After(deadline) {
			if !seen {
				return StatusExpired, sig, nil, fmt.Errorf("%w: signature %s not observed within %v", ErrExpired, sig, policy.ConfirmTimeout)
			}
			return StatusNetworkError, sig, nil, fmt.Errorf("confirmation timed out after %v: signature %s", policy.ConfirmTimeout, sig)
		}

		select {
		case <-time.After(policy.PollInterval):
		case <-ctx.Done():
			return StatusNetworkError, sig, nil, fmt.Errorf("confirmation aborted: %w", ctx.Err())
		}
	}
}

// harvestLogs 通过模拟重放拿程序日志。链上失败是确定性的，模拟会复现同样的错误。
func (e *Engine) harvestLogs(ctx context.Context, tx types.Transaction) []string {
	sim, err := e.client.SimulateTransaction(ctx, tx)
	if err != nil {
		logger.Debugf("[engine] simulate for logs failed: %v", err)
		return nil
	}
	return sim.Logs
}

// EstimateCompute 以 simulate 结果返回该交易的实际 CU 消耗，
// 调用方可据此收紧 compute budget 声明。模拟使用网络上限作为 limit，避免被截断。
func (e *Engine) EstimateCompute(ctx context.Context, draft *txpack.Draft, reg *signers.Registry) (uint32, error) {
	blockhash, err := e.client.LatestBlockhash(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest blockhash: %w", err)
	}

	msg := draft.MessageWithUnits(blockhash, txpack.MaxComputeUnits)
	tx, _, err := e.signMessage(ctx, msg, reg)
	if err != nil {
		return 0, err
	}

	sim, err := e.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("simulate transaction: %w", err)
	}
	if sim.Err != nil {
		return 0, &OnChainError{TxErr: sim.Err, Logs: sim.Logs}
	}
	if sim.UnitsConsumed > uint64(txpack.MaxComputeUnits) {
		return txpack.MaxComputeUnits, nil
	}
	return uint32(sim.UnitsConsumed), nil
}

// record 把终态写入 journal 并上报，失败只告警不影响主流程。
func (e *Engine) record(ctx context.Context, bundleID string, outcome Outcome) {
	if e.journal != nil {
		if err := e.journal.RecordOutcome(ctx, bundleID, outcome); err != nil {
			logger.Warnf("[engine] bundle=%s tx=%d journal outcome record failed: %v", bundleID, outcome.Seq, err)
		}
	}
	if e.reporter != nil {
		if err := e.reporter.ReportOutcome(ctx, bundleID, outcome); err != nil {
			logger.Warnf("[engine] bundle=%s tx=%d outcome report failed: %v", bundleID, outcome.Seq, err)
		}
	}
}

// dumpTransaction 在发送失败时把 message 以 base64 落到 debug 日志，便于离线检查。
func (e *Engine) dumpTransaction(bundleID string, seq int, msg types.Message) {
	raw, err := msg.Serialize()
	if err != nil {
		return
	}
	logger.Debugf("[engine] bundle=%s tx=%d message dump: %s", bundleID, seq, base64.StdEncoding.EncodeToString(raw))
}

func newBundleID() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%x", buf)
}
