package chain

// balance.go - bidding-pool balance reader.
//
// Bids are backed by ether deposited in the marketplace's bidding pool
// contract on Blast, so the spendable balance is that contract's ERC20
// balanceOf(wallet), not the wallet's native balance.

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	DefaultRPCURL      = "https://rpc.blast.io/"
	DefaultPoolAddress = "0xB772d5C5F4A2Eef67dfbc89AA658D2711341b8E5"

	etherDecimals = 18
)

var poolABI abi.ABI

func init() {
	var err error
	poolABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "owner", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("pool abi parse: " + err.Error())
	}
}

// PoolBalance implements ports.BalanceSource against the bidding pool contract.
type PoolBalance struct {
	caller ethereum.ContractCaller
	pool   common.Address
	close  func()
}

// DialPoolBalance connects to rpcURL. Empty arguments fall back to the Blast
// mainnet defaults.
func DialPoolBalance(rpcURL, poolAddress string) (*PoolBalance, error) {
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc %s: %w", rpcURL, err)
	}
	pb := NewPoolBalance(client, poolAddress)
	pb.close = client.Close
	return pb, nil
}

// NewPoolBalance wraps an existing contract caller.
func NewPoolBalance(caller ethereum.ContractCaller, poolAddress string) *PoolBalance {
	if poolAddress == "" {
		poolAddress = DefaultPoolAddress
	}
	return &PoolBalance{caller: caller, pool: common.HexToAddress(poolAddress)}
}

// BalanceOf returns the pool balance of address in ether.
func (p *PoolBalance) BalanceOf(ctx context.Context, address string) (float64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("chain.BalanceOf: invalid address %q", address)
	}

	callData, err := poolABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("chain.BalanceOf: pack: %w", err)
	}

	result, err := p.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &p.pool,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("chain.BalanceOf %s: call: %w", address, err)
	}

	vals, err := poolABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("chain.BalanceOf %s: unpack: %w", address, err)
	}
	wei, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("chain.BalanceOf %s: unexpected result type %T", address, vals[0])
	}
	return WeiToEther(wei), nil
}

// Close releases the RPC connection when the balance source owns it.
func (p *PoolBalance) Close() {
	if p.close != nil {
		p.close()
	}
}

// WeiToEther converts a wei amount to ether.
func WeiToEther(wei *big.Int) float64 {
	f, _ := decimal.NewFromBigInt(wei, -etherDecimals).Float64()
	return f
}
