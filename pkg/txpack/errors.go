package txpack

import "errors"

var (
	// ErrSizeExceeded 表示指令组（或其打包结果）即使独占一笔交易也无法满足尺寸/算力限制。
	// 构建期错误：返回该错误时尚未发生任何网络行为。
	ErrSizeExceeded = errors.New("transaction size exceeded")

	// ErrTooManyTransactions 表示设置了 ForceOneTransaction 但内容无法放进单笔交易。
	ErrTooManyTransactions = errors.New("cannot create more than one transaction")

	// ErrGroupSealed 表示指令组已交给 builder，不允许继续追加指令。
	ErrGroupSealed = errors.New("atomic group is sealed")
)
