package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/blues/pss/internal/config"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client 以太坊客户端：托管账户签名交易、ERC20 读写、区块高度查询
type Client struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	from       common.Address
	chainId    *big.Int
	erc20ABI   abi.ABI
}

// ERC20合约ABI定义（只包含用到的方法）
const erc20ABIJSON = `[
	{
		"constant": false,
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	}
]`

func Init(cfg config.ChainConfig) (*Client, error) {
	// 连接以太坊客户端
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum client: %w", err)
	}

	// 解析私钥
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	from := crypto.PubkeyToAddress(privateKey.PublicKey)

	// 解析ABI
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	return &Client{
		client:     client,
		privateKey: privateKey,
		from:       from,
		chainId:    big.NewInt(cfg.ChainId),
		erc20ABI:   parsedABI,
	}, nil
}

// From 托管账户地址
func (c *Client) From() string {
	return c.from.Hex()
}

// BlockNumber 获取最新区块号
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// Erc20BalanceOf 查询ERC20余额
func (c *Client) Erc20BalanceOf(ctx context.Context, token, holder string) (*big.Int, error) {
	data, err := c.erc20ABI.Pack("balanceOf", common.HexToAddress(holder))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	tokenAddr := common.HexToAddress(token)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	values, err := c.erc20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type")
	}

	return balance, nil
}

// Erc20Transfer 从托管账户转出ERC20
func (c *Client) Erc20Transfer(ctx context.Context, token, to string, amount *big.Int) error {
	data, err := c.erc20ABI.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return fmt.Errorf("failed to pack transfer: %w", err)
	}
	return c.sendAndWait(ctx, token, data)
}

// Erc20TransferFrom 凭授权从付款方转入ERC20
func (c *Client) Erc20TransferFrom(ctx context.Context, token, from, to string, amount *big.Int) error {
	data, err := c.erc20ABI.Pack("transferFrom", common.HexToAddress(from), common.HexToAddress(to), amount)
	if err != nil {
		return fmt.Errorf("failed to pack transferFrom: %w", err)
	}
	return c.sendAndWait(ctx, token, data)
}

// sendAndWait 构造、签名并发送交易，等待上链并检查回执状态
func (c *Client) sendAndWait(ctx context.Context, token string, data []byte) error {
	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to suggest gas price: %w", err)
	}

	tokenAddr := common.HexToAddress(token)
	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &tokenAddr,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, tokenAddr, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainId), c.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := c.waitMined(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("failed waiting for transaction %s: %w", signedTx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", signedTx.Hash().Hex())
	}

	return nil
}

// waitMined 轮询回执直到交易上链或上下文取消
func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	for {
		receipt, err := c.client.TransactionReceipt(ctx, tx.Hash())
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
