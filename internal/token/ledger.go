package token

import (
	"context"
	"math/big"
)

// Ledger 代币账本协作接口：核心引擎只依赖这三个窄操作
// 任何非成功返回都会使外层操作整体中止
type Ledger interface {
	// TransferFrom 凭授权从 from 转入 to
	TransferFrom(ctx context.Context, from, to string, amount *big.Int) error
	// Transfer 从托管账户转出到 to
	Transfer(ctx context.Context, to string, amount *big.Int) error
	// BalanceOf 查询余额
	BalanceOf(ctx context.Context, holder string) (*big.Int, error)
}
