package token

import (
	"context"
	"math/big"

	"github.com/blues/pss/internal/ethereum"
)

// ERC20 基于链上ERC20合约的账本实现
type ERC20 struct {
	client *ethereum.Client
	token  string
}

// NewERC20 创建ERC20账本
func NewERC20(client *ethereum.Client, tokenAddress string) *ERC20 {
	return &ERC20{
		client: client,
		token:  tokenAddress,
	}
}

// TransferFrom 凭授权从付款方转入
func (e *ERC20) TransferFrom(ctx context.Context, from, to string, amount *big.Int) error {
	return e.client.Erc20TransferFrom(ctx, e.token, from, to, amount)
}

// Transfer 从托管账户转出
func (e *ERC20) Transfer(ctx context.Context, to string, amount *big.Int) error {
	return e.client.Erc20Transfer(ctx, e.token, to, amount)
}

// BalanceOf 查询余额
func (e *ERC20) BalanceOf(ctx context.Context, holder string) (*big.Int, error) {
	return e.client.Erc20BalanceOf(ctx, e.token, holder)
}
