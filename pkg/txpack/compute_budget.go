package txpack

import (
	"github.com/blocto/solana-go-sdk/program/compute_budget"
)

// budgetLimitWithMargin 在聚合 CU 估算上附加安全余量，并钳制到网络上限。
// 估算偏低会导致链上直接以 exceeded 失败，宁可多declare一些。
func budgetLimitWithMargin(units uint32) uint32 {
	withMargin := uint64(units) * (100 + computeMarginPercent) / 100
	if withMargin > uint64(MaxComputeUnits) {
		return MaxComputeUnits
	}
	return uint32(withMargin)
}

// budgetInstructionsFor 生成一笔交易前置的 compute budget 指令：
// SetComputeUnitLimit 必发；cuPrice > 0 时追加 SetComputeUnitPrice（优先费）。
func budgetInstructionsFor(units uint32, cuPrice uint64) []Instruction {
	limitIx := compute_budget.SetComputeUnitLimit(compute_budget.SetComputeUnitLimitParam{
		Units: budgetLimitWithMargin(units),
	})
	out := []Instruction{{
		ProgramID: limitIx.ProgramID,
		Accounts:  limitIx.Accounts,
		Data:      limitIx.Data,
	}}

	if cuPrice > 0 {
		priceIx := compute_budget.SetComputeUnitPrice(compute_budget.SetComputeUnitPriceParam{
			MicroLamports: cuPrice,
		})
		out = append(out, Instruction{
			ProgramID: priceIx.ProgramID,
			Accounts:  priceIx.Accounts,
			Data:      priceIx.Data,
		})
	}
	return out
}
