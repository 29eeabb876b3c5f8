package engine

import "context"

// Journal 在交易广播前后记录进度，供进程崩溃后的对账使用。
// 交易一旦发出就无法撤回，journal 里残留的 submitted 记录
// 意味着结果需要到链上核实。
type Journal interface {
	// RecordSubmitted 在交易成功广播后立即记录签名。
	RecordSubmitted(ctx context.Context, bundleID string, seq int, signature string) error
	// RecordOutcome 记录交易终态。
	RecordOutcome(ctx context.Context, bundleID string, outcome Outcome) error
}

// Reporter 把交易终态发布给下游（如消息队列），尽力而为。
type Reporter interface {
	ReportOutcome(ctx context.Context, bundleID string, outcome Outcome) error
}
