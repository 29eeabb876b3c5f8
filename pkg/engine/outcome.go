package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Status 表示单笔交易的终态分类。
type Status int

const (
	StatusUnexecuted     Status = iota // 引擎未执行到该笔交易（前序失败后整体停止）
	StatusConfirmed                    // 已达到目标确认级别
	StatusOnChainFailure               // 程序返回错误；确定性失败，引擎不重试
	StatusExpired                      // blockhash 过期且重试额度耗尽
	StatusNetworkError                 // RPC/网络错误且重试额度耗尽
	StatusSigningFailed                // 签名后端拒签/出错；发送前中止
	StatusMissingSigner                // 注册表缺少必需签名者；发送前中止
)

func (s Status) String() string {
	switch s {
	case StatusUnexecuted:
		return "unexecuted"
	case StatusConfirmed:
		return "confirmed"
	case StatusOnChainFailure:
		return "onchain_failure"
	case StatusExpired:
		return "expired"
	case StatusNetworkError:
		return "network_error"
	case StatusSigningFailed:
		return "signing_failed"
	case StatusMissingSigner:
		return "missing_signer"
	default:
		return "unknown"
	}
}

// retryable 报告该状态是否允许引擎在额度内重试。
func (s Status) retryable() bool {
	return s == StatusExpired || s == StatusNetworkError
}

// ErrExpired 表示交易因 blockhash 过期被网络拒绝或始终未被观察到。
var ErrExpired = errors.New("blockhash expired")

// OnChainError 表示链上程序的确定性拒绝，日志原样透传给调用方。
type OnChainError struct {
	TxErr any      // RPC 返回的原始错误对象
	Logs  []string // 程序日志（尽力获取，可能为空）
}

func (e *OnChainError) Error() string {
	return fmt.Sprintf("transaction failed on chain: %v", e.TxErr)
}

// isExpiredSendErr 识别发送阶段的 blockhash 过期错误。
// RPC 对过期 blockhash 的 preflight 拒绝固定携带 BlockhashNotFound。
func isExpiredSendErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "blockhash not found") || strings.Contains(msg, "blockhashnotfound")
}

// Outcome 是单笔交易的执行结果。
type Outcome struct {
	Seq       int      // 在 bundle 中的序号
	Status    Status   // 终态
	Signature string   // 交易签名（未发送则为空）
	Attempts  int      // 实际尝试次数（签名+发送记一次）
	Err       error    // 失败原因（Confirmed/Unexecuted 时为 nil）
	Logs      []string // 链上失败时的程序日志
}

// BundleReport 是整个 bundle 的有序结果：
// FirstFailure 之前（不含）的交易全部 Confirmed，之后的全部 Unexecuted。
// 链上无法回滚，已确认前缀的真实世界效果由调用方负责对账。
type BundleReport struct {
	BundleID     string
	Outcomes     []Outcome
	FirstFailure int // 第一笔非 Confirmed 交易的下标；全部成功时为 -1
}

// Succeeded 报告 bundle 是否全部确认。
func (r *BundleReport) Succeeded() bool { return r.FirstFailure < 0 }

// Signatures 返回已确认交易的签名，按执行顺序。
func (r *BundleReport) Signatures() []string {
	var sigs []string
	for _, o := range r.Outcomes {
		if o.Status == StatusConfirmed {
			sigs = append(sigs, o.Signature)
		}
	}
	return sigs
}
