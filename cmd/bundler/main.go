package main

import (
	"context"
	"flag"
	"os"
	"runtime/debug"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/gmsol-labs/gmx-solana/internal/config"
	"github.com/gmsol-labs/gmx-solana/internal/svc"
	"github.com/gmsol-labs/gmx-solana/pkg/logger"
	"github.com/gmsol-labs/gmx-solana/pkg/txpack"
)

var (
	configFile = flag.String("f", "etc/bundler.yaml", "the config file")
	recipient  = flag.String("to", "", "recipient pubkey (base58)")
	lamports   = flag.Uint64("lamports", 0, "lamports per transfer")
	count      = flag.Int("count", 1, "number of transfers (one atomic group each)")
)

// 示例任务：把 N 笔 SOL 转账作为 N 个原子组交给 builder 打包提交。
// builder 会在限制允许时把多个组合并进同一笔交易，保持组间顺序。
func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	var c config.BundlerConfig
	conf.MustLoad(*configFile, &c)

	logger.Init(c.LogConf.ToLogOption())
	defer logger.Sync()

	if *recipient == "" || *lamports == 0 {
		logger.Errorf("usage: bundler -to <pubkey> -lamports <n> [-count <n>]")
		os.Exit(1)
	}

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		logx.Errorf("service context init failed: %v", err)
		os.Exit(1)
	}
	defer serviceContext.Close()

	to := common.PublicKeyFromString(*recipient)
	payer := serviceContext.FeePayer.Pubkey()

	builder := txpack.NewBundleBuilder(c.PackConf.ToBundleOptions())
	for i := 0; i < *count; i++ {
		transfer := system.Transfer(system.TransferParam{
			From:   payer,
			To:     to,
			Amount: *lamports,
		})
		group := txpack.NewAtomicGroup(payer)
		ix := txpack.NewInstruction(transfer.ProgramID, transfer.Accounts, transfer.Data).WithUnits(450)
		if err := group.Append(ix); err != nil {
			logger.Errorf("append transfer %d: %v", i, err)
			os.Exit(1)
		}
		if err := builder.Push(group); err != nil {
			logger.Errorf("push group %d: %v", i, err)
			os.Exit(1)
		}
	}
	bundle := builder.Build()
	logger.Infof("packed %d transfers into %d transactions, estimated fee %d lamports",
		*count, bundle.Len(), bundle.EstimateFee())

	report, err := serviceContext.Engine.Submit(context.Background(), bundle,
		serviceContext.Registry, c.EngineConf.ToPolicy())
	if err != nil {
		logger.Errorf("bundle %s failed at tx %d: %v", report.BundleID, report.FirstFailure, err)
		for _, o := range report.Outcomes {
			logger.Infof("  tx %d: %s sig=%s", o.Seq, o.Status, o.Signature)
		}
		os.Exit(1)
	}

	logger.Infof("bundle %s confirmed, signatures: %v", report.BundleID, report.Signatures())
}
