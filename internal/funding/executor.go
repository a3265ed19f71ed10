/*
Package funding submits on-chain transfers that deliver an allocation to a
buyer wallet.

The executor calls fundBundle on the vending contract, which moves every
line of an allocation in one transaction. ERC-20 lines pass the token
address; the native line passes the zero address and the contract pays it
out of its ETH balance. The operator key signs with the EIP-155 signer for
the configured chain.
*/
package funding

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/0xedev/vendyz-backend/internal/logger"
	"github.com/0xedev/vendyz-backend/internal/types"
)

var (
	// ErrNoLines is returned when asked to fund an allocation with no lines.
	ErrNoLines = errors.New("funding: allocation has no lines")
	// ErrNilAmount is returned when a line carries a nil native amount.
	ErrNilAmount = errors.New("funding: allocation line has nil amount")
)

const fundBundleABI = `[{"inputs":[{"internalType":"address","name":"recipient","type":"address"},{"internalType":"address[]","name":"tokens","type":"address[]"},{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"name":"fundBundle","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// gasMargin pads the node's gas estimate to absorb state drift between
// estimation and inclusion.
const gasMargin = 120 // percent

// Executor signs and submits funding transactions.
type Executor struct {
	client   *ethclient.Client
	contract common.Address
	parsed   abi.ABI
	key      *ecdsa.PrivateKey
	sender   common.Address
	chainID  *big.Int
}

// NewExecutor builds an executor from the operator's hex private key.
func NewExecutor(client *ethclient.Client, contract common.Address, operatorKeyHex string, chainID int64) (*Executor, error) {
	parsed, err := abi.JSON(strings.NewReader(fundBundleABI))
	if err != nil {
		return nil, fmt.Errorf("funding: parsing vending ABI: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("funding: invalid operator key: %w", err)
	}
	return &Executor{
		client:   client,
		contract: contract,
		parsed:   parsed,
		key:      key,
		sender:   crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
	}, nil
}

// Sender returns the operator address that signs funding transactions.
func (e *Executor) Sender() common.Address {
	return e.sender
}

// Fund submits one fundBundle transaction delivering every line of the
// allocation to recipient, and returns the transaction hash.
func (e *Executor) Fund(ctx context.Context, recipient common.Address, result *types.AllocationResult) (common.Hash, error) {
	log := logger.GetForComponent("funding_executor")

	if result == nil || len(result.Lines) == 0 {
		return common.Hash{}, ErrNoLines
	}

	tokens := make([]common.Address, 0, len(result.Lines))
	amounts := make([]*big.Int, 0, len(result.Lines))
	for _, line := range result.Lines {
		if line.AmountNative.IsNil() {
			return common.Hash{}, ErrNilAmount
		}
		tokens = append(tokens, line.Address)
		amounts = append(amounts, line.AmountNative.BigInt())
	}

	data, err := e.parsed.Pack("fundBundle", recipient, tokens, amounts)
	if err != nil {
		return common.Hash{}, fmt.Errorf("funding: packing fundBundle: %w", err)
	}

	nonce, err := e.client.PendingNonceAt(ctx, e.sender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("funding: reading nonce: %w", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("funding: reading gas price: %w", err)
	}
	gasLimit, err := e.client.EstimateGas(ctx, ethereum.CallMsg{
		From: e.sender,
		To:   &e.contract,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("funding: estimating gas: %w", err)
	}
	gasLimit = gasLimit * gasMargin / 100

	tx := ethtypes.NewTransaction(nonce, e.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(e.chainID), e.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("funding: signing transaction: %w", err)
	}

	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("funding: broadcasting transaction: %w", err)
	}

	log.Info().
		Str("tx", signed.Hash().Hex()).
		Str("recipient", recipient.Hex()).
		Int("lines", len(result.Lines)).
		Str("allocation_id", result.ID.String()).
		Msg("Funding transaction submitted")

	return signed.Hash(), nil
}
