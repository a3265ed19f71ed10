/*
Package events watches the vending contract for tier purchases.

The listener polls the node for TierPurchased logs rather than holding a
websocket subscription open. Polling survives node restarts and RPC
providers that cap subscription lifetimes, at the cost of a few seconds
of latency per purchase. The cursor (last scanned block) lives in memory;
on restart the listener resumes from the current chain head, so purchases
that land while the service is down are not replayed.
*/
package events

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/0xedev/vendyz-backend/internal/logger"
)

var (
	// ErrNoHandler is returned when Run is called before a handler is set.
	ErrNoHandler = errors.New("events: no purchase handler registered")
)

// tierPurchasedABI describes the single event the listener cares about.
const tierPurchasedABI = `[{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"buyer","type":"address"},{"indexed":false,"internalType":"string","name":"tier","type":"string"}],"name":"TierPurchased","type":"event"}]`

// PurchaseEvent is a decoded TierPurchased log.
type PurchaseEvent struct {
	Buyer  common.Address
	Tier   string
	TxHash common.Hash
	Block  uint64
}

// LogReader is the subset of the eth client the listener needs.
type LogReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// Handler receives each decoded purchase. A handler error is logged and the
// cursor still advances; purchases are at-most-once.
type Handler func(ctx context.Context, ev PurchaseEvent)

// Listener polls the chain for TierPurchased events on the vending contract.
type Listener struct {
	client   LogReader
	contract common.Address
	parsed   abi.ABI
	eventID  common.Hash
	handler  Handler

	// lastBlock is the highest block already scanned.
	lastBlock uint64
}

// NewListener builds a listener for the given vending contract.
func NewListener(client LogReader, contract common.Address) (*Listener, error) {
	parsed, err := abi.JSON(strings.NewReader(tierPurchasedABI))
	if err != nil {
		return nil, fmt.Errorf("events: parsing vending ABI: %w", err)
	}
	ev, ok := parsed.Events["TierPurchased"]
	if !ok {
		return nil, errors.New("events: vending ABI missing TierPurchased")
	}
	return &Listener{
		client:   client,
		contract: contract,
		parsed:   parsed,
		eventID:  ev.ID,
	}, nil
}

// SetHandler registers the callback invoked for each decoded purchase.
// Must be called before Run.
func (l *Listener) SetHandler(h Handler) {
	l.handler = h
}

// Run polls for new logs every interval until the context is cancelled.
func (l *Listener) Run(ctx context.Context, interval time.Duration) error {
	log := logger.GetForComponent("event_listener")

	if l.handler == nil {
		return ErrNoHandler
	}

	head, err := l.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("events: reading chain head: %w", err)
	}
	l.lastBlock = head
	log.Info().
		Uint64("from_block", head+1).
		Str("contract", l.contract.Hex()).
		Dur("interval", interval).
		Msg("Purchase listener started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Purchase listener stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := l.poll(ctx); err != nil {
				log.Error().Err(err).Msg("Poll cycle failed")
			}
		}
	}
}

// poll scans (lastBlock, head] for purchase logs and dispatches them in order.
func (l *Listener) poll(ctx context.Context) error {
	log := logger.GetForComponent("event_listener")

	head, err := l.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("reading chain head: %w", err)
	}
	if head <= l.lastBlock {
		return nil
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(l.lastBlock + 1),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{l.contract},
		Topics:    [][]common.Hash{{l.eventID}},
	}
	logs, err := l.client.FilterLogs(ctx, query)
	if err != nil {
		return fmt.Errorf("filtering logs %d-%d: %w", l.lastBlock+1, head, err)
	}

	for _, entry := range logs {
		ev, err := l.decode(entry)
		if err != nil {
			log.Warn().Err(err).Str("tx", entry.TxHash.Hex()).Msg("Skipping undecodable log")
			continue
		}
		log.Info().
			Str("buyer", ev.Buyer.Hex()).
			Str("tier", ev.Tier).
			Uint64("block", ev.Block).
			Msg("Tier purchase detected")
		l.handler(ctx, ev)
	}

	l.lastBlock = head
	return nil
}

func (l *Listener) decode(entry ethtypes.Log) (PurchaseEvent, error) {
	if len(entry.Topics) < 2 {
		return PurchaseEvent{}, errors.New("log missing indexed buyer topic")
	}
	var payload struct {
		Tier string
	}
	if err := l.parsed.UnpackIntoInterface(&payload, "TierPurchased", entry.Data); err != nil {
		return PurchaseEvent{}, fmt.Errorf("unpacking event data: %w", err)
	}
	return PurchaseEvent{
		Buyer:  common.BytesToAddress(entry.Topics[1].Bytes()),
		Tier:   payload.Tier,
		TxHash: entry.TxHash,
		Block:  entry.BlockNumber,
	}, nil
}
