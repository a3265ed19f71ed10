/*

Treasury balance reader. The live implementation speaks ERC-20 over JSON-RPC;
symbol/decimals are immutable on chain, so they are cached after the first
encounter and never re-fetched.

*/

package treasury

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	sdkmath "cosmossdk.io/math"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Reader supplies, per token, the treasury's current balance and, on first
// encounter, the token's symbol and decimals.
type Reader interface {
	// Balance returns the holder's balance of the token in native smallest units.
	Balance(ctx context.Context, token, holder common.Address) (sdkmath.Int, error)

	// Metadata returns the token's symbol and decimals.
	Metadata(ctx context.Context, token common.Address) (string, uint8, error)

	// NativeBalance returns the holder's native coin balance in wei.
	NativeBalance(ctx context.Context, holder common.Address) (sdkmath.Int, error)
}

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var ErrNegativeBalance = errors.New("balance query returned a negative value")

type tokenMetadata struct {
	symbol   string
	decimals uint8
}

// ChainReader implements Reader against an EVM node.
type ChainReader struct {
	client *ethclient.Client
	erc20  abi.ABI

	mu   sync.Mutex
	meta map[common.Address]tokenMetadata
}

// NewChainReader builds a ChainReader over an established client connection.
func NewChainReader(client *ethclient.Client) (*ChainReader, error) {
	if client == nil {
		return nil, errors.New("eth client cannot be nil")
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}
	return &ChainReader{
		client: client,
		erc20:  parsed,
		meta:   make(map[common.Address]tokenMetadata),
	}, nil
}

// Balance queries balanceOf(holder) on the token contract.
func (r *ChainReader) Balance(ctx context.Context, token, holder common.Address) (sdkmath.Int, error) {
	out, err := r.call(ctx, token, "balanceOf", holder)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("balanceOf call failed for %s: %w", token.Hex(), err)
	}

	balance, ok := out[0].(*big.Int)
	if !ok || balance == nil {
		return sdkmath.ZeroInt(), fmt.Errorf("balanceOf returned unexpected type for %s", token.Hex())
	}
	if balance.Sign() < 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrNegativeBalance, token.Hex())
	}

	return sdkmath.NewIntFromBigInt(balance), nil
}

// Metadata queries symbol() and decimals(), serving repeats from the local cache.
func (r *ChainReader) Metadata(ctx context.Context, token common.Address) (string, uint8, error) {
	r.mu.Lock()
	if cached, ok := r.meta[token]; ok {
		r.mu.Unlock()
		return cached.symbol, cached.decimals, nil
	}
	r.mu.Unlock()

	symOut, err := r.call(ctx, token, "symbol")
	if err != nil {
		return "", 0, fmt.Errorf("symbol call failed for %s: %w", token.Hex(), err)
	}
	symbol, ok := symOut[0].(string)
	if !ok || strings.TrimSpace(symbol) == "" {
		return "", 0, fmt.Errorf("token %s returned an empty symbol", token.Hex())
	}

	decOut, err := r.call(ctx, token, "decimals")
	if err != nil {
		return "", 0, fmt.Errorf("decimals call failed for %s: %w", token.Hex(), err)
	}
	decimals, ok := decOut[0].(uint8)
	if !ok {
		return "", 0, fmt.Errorf("token %s returned unexpected decimals type", token.Hex())
	}

	r.mu.Lock()
	r.meta[token] = tokenMetadata{symbol: symbol, decimals: decimals}
	r.mu.Unlock()

	return symbol, decimals, nil
}

// NativeBalance queries the holder's native coin balance at the latest block.
func (r *ChainReader) NativeBalance(ctx context.Context, holder common.Address) (sdkmath.Int, error) {
	balance, err := r.client.BalanceAt(ctx, holder, nil)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("native balance query failed for %s: %w", holder.Hex(), err)
	}
	return sdkmath.NewIntFromBigInt(balance), nil
}

func (r *ChainReader) call(ctx context.Context, token common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := r.erc20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &token, Data: input}
	output, err := r.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("empty return data from %s", method)
	}

	out, err := r.erc20.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no values unpacked from %s", method)
	}
	return out, nil
}
