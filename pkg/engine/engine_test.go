package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsol-labs/gmx-solana/pkg/signers"
	"github.com/gmsol-labs/gmx-solana/pkg/txpack"
)

// testBlockhash 生成合法的 32 字节 base58 blockhash
func testBlockhash(n byte) string {
	var b [32]byte
	b[0] = n
	return base58.Encode(b[:])
}

// fakeClient 是脚本化的 RPC 替身。Submit 单 goroutine 顺序调用，无需加锁。
type fakeClient struct {
	hashCalls int
	sendCalls int
	sent      []types.Transaction
	sentSigs  []string

	onSend   func(call int, tx types.Transaction) error // 返回非 nil 表示该次发送失败
	onStatus func(sig string) *SignatureStatus          // nil 表示网络尚未观察到该签名
	onSim    func(tx types.Transaction) (SimulationResult, error)
}

func (f *fakeClient) LatestBlockhash(ctx context.Context) (string, error) {
	f.hashCalls++
	return testBlockhash(byte(f.hashCalls)), nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx types.Transaction) (string, error) {
	call := f.sendCalls
	f.sendCalls++
	if f.onSend != nil {
		if err := f.onSend(call, tx); err != nil {
			return "", err
		}
	}
	sig := signers.FormatSignature(tx.Signatures[0])
	f.sent = append(f.sent, tx)
	f.sentSigs = append(f.sentSigs, sig)
	return sig, nil
}

func (f *fakeClient) SimulateTransaction(ctx context.Context, tx types.Transaction) (SimulationResult, error) {
	if f.onSim != nil {
		return f.onSim(tx)
	}
	return SimulationResult{}, nil
}

func (f *fakeClient) SignatureStatuses(ctx context.Context, sigs []string) ([]*SignatureStatus, error) {
	out := make([]*SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if f.onStatus != nil {
			out[i] = f.onStatus(sig)
			continue
		}
		for _, known := range f.sentSigs {
			if sig == known {
				out[i] = confirmedStatus()
				break
			}
		}
	}
	return out, nil
}

func confirmedStatus() *SignatureStatus {
	return &SignatureStatus{Commitment: CommitmentFinalized}
}

// testBundle 构造 n 笔交易的 bundle，每组独占一笔
func testBundle(t *testing.T, payer types.Account, n int) *txpack.Bundle {
	t.Helper()
	program := common.PublicKeyFromBytes(append(make([]byte, 31), 99))
	b := txpack.NewBundleBuilder(txpack.BundleOptions{})
	for i := 0; i < n; i++ {
		var acct [32]byte
		acct[0] = byte(10 + i)
		g := txpack.NewAtomicGroup(payer.PublicKey)
		ix := txpack.NewInstruction(program, []types.AccountMeta{
			{PubKey: common.PublicKeyFromBytes(acct[:]), IsSigner: false, IsWritable: true},
		}, []byte{byte(i)})
		require.NoError(t, g.Append(ix))
		require.NoError(t, b.PushWithOpts(g, true))
	}
	bundle := b.Build()
	require.Equal(t, n, bundle.Len())
	return bundle
}

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		PollInterval:   time.Millisecond,
		ConfirmTimeout: 100 * time.Millisecond,
		Commitment:     CommitmentConfirmed,
	}
}

func TestEngine_SubmitAllConfirmed(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	e := New(fc)

	report, err := e.Submit(context.Background(), testBundle(t, payer, 3), reg, fastPolicy())
	require.NoError(t, err)

	assert.True(t, report.Succeeded())
	assert.Equal(t, -1, report.FirstFailure)
	assert.Equal(t, 3, len(report.Outcomes))
	for i, o := range report.Outcomes {
		assert.Equal(t, i, o.Seq)
		assert.Equal(t, StatusConfirmed, o.Status)
		assert.Equal(t, 1, o.Attempts)
		assert.Equal(t, fc.sentSigs[i], o.Signature)
	}
	assert.Equal(t, fc.sentSigs, report.Signatures())
}

func TestEngine_StopsAtFirstOnChainFailure(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	fc.onStatus = func(sig string) *SignatureStatus {
		// 第二笔交易链上失败
		if len(fc.sentSigs) >= 2 && sig == fc.sentSigs[1] {
			return &SignatureStatus{Commitment: CommitmentFinalized, Err: "InstructionError"}
		}
		return confirmedStatus()
	}
	fc.onSim = func(tx types.Transaction) (SimulationResult, error) {
		return SimulationResult{Err: "InstructionError", Logs: []string{"Program log: insufficient funds"}}, nil
	}
	e := New(fc)

	report, err := e.Submit(context.Background(), testBundle(t, payer, 3), reg, fastPolicy())
	require.Error(t, err)

	var ocErr *OnChainError
	assert.ErrorAs(t, err, &ocErr)

	assert.False(t, report.Succeeded())
	assert.Equal(t, 1, report.FirstFailure)
	assert.Equal(t, StatusConfirmed, report.Outcomes[0].Status)
	assert.Equal(t, StatusOnChainFailure, report.Outcomes[1].Status)
	// 确定性失败不重试
	assert.Equal(t, 1, report.Outcomes[1].Attempts)
	assert.Equal(t, []string{"Program log: insufficient funds"}, report.Outcomes[1].Logs)
	// 第三笔根本没发出去
	assert.Equal(t, StatusUnexecuted, report.Outcomes[2].Status)
	assert.Equal(t, 2, fc.sendCalls)
	// 已确认前缀如实保留
	assert.Equal(t, fc.sentSigs[:1], report.Signatures())
}

func TestEngine_ExpiredBlockhashRebuildsAndRetries(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	fc.onSend = func(call int, tx types.Transaction) error {
		if call == 0 {
			return errors.New("rpc error: Blockhash not found")
		}
		return nil
	}
	e := New(fc)

	report, err := e.Submit(context.Background(), testBundle(t, payer, 1), reg, fastPolicy())
	require.NoError(t, err)

	assert.True(t, report.Succeeded())
	assert.Equal(t, StatusConfirmed, report.Outcomes[0].Status)
	assert.Equal(t, 2, report.Outcomes[0].Attempts)
	// 重试换了新 blockhash 并用它重签
	assert.Equal(t, 2, fc.hashCalls)
	require.Equal(t, 1, len(fc.sent))
	assert.Equal(t, testBlockhash(2), fc.sent[0].Message.RecentBlockHash)
}

func TestEngine_MissingSignerAbortsBeforeSend(t *testing.T) {
	payer := types.NewAccount()
	fc := &fakeClient{}
	e := New(fc)

	// 注册表里没有 payer 的签名能力
	report, err := e.Submit(context.Background(), testBundle(t, payer, 2), signers.NewRegistry(), fastPolicy())
	require.Error(t, err)

	var missErr *signers.MissingSignerError
	assert.ErrorAs(t, err, &missErr)
	assert.Equal(t, []common.PublicKey{payer.PublicKey}, missErr.Missing)

	assert.Equal(t, StatusMissingSigner, report.Outcomes[0].Status)
	assert.Equal(t, 0, report.Outcomes[0].Attempts)
	assert.Equal(t, StatusUnexecuted, report.Outcomes[1].Status)
	// 预检失败：一个字节都没上网
	assert.Equal(t, 0, fc.hashCalls)
	assert.Equal(t, 0, fc.sendCalls)
}

func TestEngine_SigningFailureAbortsBeforeSend(t *testing.T) {
	payer := types.NewAccount()
	rejecting := signers.NewFunc(payer.PublicKey, func(ctx context.Context, message []byte) ([]byte, error) {
		return nil, errors.New("device rejected")
	})
	reg := signers.NewRegistry(rejecting)
	fc := &fakeClient{}
	e := New(fc)

	report, err := e.Submit(context.Background(), testBundle(t, payer, 1), reg, fastPolicy())
	require.Error(t, err)

	var sigErr *signers.SigningError
	assert.ErrorAs(t, err, &sigErr)
	assert.Equal(t, StatusSigningFailed, report.Outcomes[0].Status)
	assert.Equal(t, 0, fc.sendCalls)
}

func TestEngine_NetworkErrorExhaustsAttempts(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	fc.onSend = func(call int, tx types.Transaction) error {
		return errors.New("connection refused")
	}
	e := New(fc)

	report, err := e.Submit(context.Background(), testBundle(t, payer, 1), reg, fastPolicy())
	require.Error(t, err)

	assert.Equal(t, StatusNetworkError, report.Outcomes[0].Status)
	assert.Equal(t, 3, report.Outcomes[0].Attempts)
	assert.Equal(t, 3, fc.sendCalls)
	assert.Equal(t, "", report.Outcomes[0].Signature)
}

func TestEngine_NeverObservedExpires(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	// 发送成功，但网络始终没观察到该签名
	fc.onStatus = func(sig string) *SignatureStatus { return nil }
	e := New(fc)

	policy := fastPolicy()
	policy.MaxAttempts = 2
	policy.ConfirmTimeout = 10 * time.Millisecond

	report, err := e.Submit(context.Background(), testBundle(t, payer, 1), reg, policy)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpired)

	assert.Equal(t, StatusExpired, report.Outcomes[0].Status)
	assert.Equal(t, 2, report.Outcomes[0].Attempts)
	// 每次尝试都重建并重发
	assert.Equal(t, 2, fc.sendCalls)
}

func TestEngine_ObservedButStalledIsTerminal(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	// 签名被观察到但一直停在 processed，不达目标级别
	fc.onStatus = func(sig string) *SignatureStatus {
		return &SignatureStatus{Commitment: CommitmentProcessed}
	}
	e := New(fc)

	policy := fastPolicy()
	policy.ConfirmTimeout = 10 * time.Millisecond

	report, err := e.Submit(context.Background(), testBundle(t, payer, 1), reg, policy)
	require.Error(t, err)
	assert.Equal(t, StatusNetworkError, report.Outcomes[0].Status)
}

type memJournal struct {
	submitted []string
	outcomes  []Outcome
}

func (m *memJournal) RecordSubmitted(ctx context.Context, bundleID string, seq int, sig string) error {
	m.submitted = append(m.submitted, fmt.Sprintf("%d:%s", seq, sig))
	return nil
}

func (m *memJournal) RecordOutcome(ctx context.Context, bundleID string, outcome Outcome) error {
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

type memReporter struct {
	outcomes []Outcome
}

func (m *memReporter) ReportOutcome(ctx context.Context, bundleID string, outcome Outcome) error {
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func TestEngine_JournalAndReporterHooks(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	journal := &memJournal{}
	reporter := &memReporter{}
	e := New(fc, WithJournal(journal), WithReporter(reporter))

	report, err := e.Submit(context.Background(), testBundle(t, payer, 2), reg, fastPolicy())
	require.NoError(t, err)
	require.True(t, report.Succeeded())

	// 广播后立即记录签名
	require.Equal(t, 2, len(journal.submitted))
	assert.Equal(t, fmt.Sprintf("0:%s", fc.sentSigs[0]), journal.submitted[0])
	assert.Equal(t, fmt.Sprintf("1:%s", fc.sentSigs[1]), journal.submitted[1])

	// 每笔终态都落 journal 并上报
	require.Equal(t, 2, len(journal.outcomes))
	require.Equal(t, 2, len(reporter.outcomes))
	assert.Equal(t, StatusConfirmed, journal.outcomes[1].Status)
	assert.Equal(t, StatusConfirmed, reporter.outcomes[1].Status)
}

func TestEngine_EstimateCompute(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	fc.onSim = func(tx types.Transaction) (SimulationResult, error) {
		return SimulationResult{UnitsConsumed: 123_456}, nil
	}
	e := New(fc)

	bundle := testBundle(t, payer, 1)
	units, err := e.EstimateCompute(context.Background(), bundle.Drafts[0], reg)
	require.NoError(t, err)
	assert.Equal(t, uint32(123_456), units)
}

func TestEngine_EstimateComputeSimFailure(t *testing.T) {
	payer := types.NewAccount()
	reg := signers.NewRegistry(signers.NewLocal(payer))
	fc := &fakeClient{}
	fc.onSim = func(tx types.Transaction) (SimulationResult, error) {
		return SimulationResult{Err: "InstructionError", Logs: []string{"Program log: boom"}}, nil
	}
	e := New(fc)

	bundle := testBundle(t, payer, 1)
	_, err := e.EstimateCompute(context.Background(), bundle.Drafts[0], reg)
	var ocErr *OnChainError
	require.ErrorAs(t, err, &ocErr)
	assert.Equal(t, []string{"Program log: boom"}, ocErr.Logs)
}

func TestCommitment_Reached(t *testing.T) {
	assert.True(t, CommitmentFinalized.reached(CommitmentConfirmed))
	assert.True(t, CommitmentConfirmed.reached(CommitmentConfirmed))
	assert.False(t, CommitmentProcessed.reached(CommitmentConfirmed))
}

func TestIsExpiredSendErr(t *testing.T) {
	assert.True(t, isExpiredSendErr(errors.New("rpc error: Blockhash not found")))
	assert.True(t, isExpiredSendErr(errors.New("BlockhashNotFound")))
	assert.False(t, isExpiredSendErr(errors.New("connection refused")))
	assert.False(t, isExpiredSendErr(nil))
}
