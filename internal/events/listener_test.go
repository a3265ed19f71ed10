package events

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vendingAddr = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	buyerAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// fakeLogReader replays scripted heads and logs.
type fakeLogReader struct {
	head    uint64
	headErr error
	logs    []ethtypes.Log
	logsErr error

	queries []ethereum.FilterQuery
}

func (f *fakeLogReader) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeLogReader) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	f.queries = append(f.queries, q)
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return f.logs, nil
}

func purchaseLog(t *testing.T, buyer common.Address, tier string, block uint64) ethtypes.Log {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(tierPurchasedABI))
	require.NoError(t, err)
	event := parsed.Events["TierPurchased"]

	data, err := event.Inputs.NonIndexed().Pack(tier)
	require.NoError(t, err)

	return ethtypes.Log{
		Address:     vendingAddr,
		Topics:      []common.Hash{event.ID, common.BytesToHash(buyer.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xabc"),
	}
}

func TestListener_DecodesPurchases(t *testing.T) {
	reader := &fakeLogReader{
		head: 110,
		logs: []ethtypes.Log{purchaseLog(t, buyerAddr, "gold", 105)},
	}
	listener, err := NewListener(reader, vendingAddr)
	require.NoError(t, err)

	var got []PurchaseEvent
	listener.SetHandler(func(ctx context.Context, ev PurchaseEvent) {
		got = append(got, ev)
	})

	listener.lastBlock = 100
	require.NoError(t, listener.poll(context.Background()))

	require.Len(t, got, 1)
	assert.Equal(t, buyerAddr, got[0].Buyer)
	assert.Equal(t, "gold", got[0].Tier)
	assert.Equal(t, uint64(105), got[0].Block)

	// Cursor advanced to head; query covered (lastBlock, head].
	assert.Equal(t, uint64(110), listener.lastBlock)
	require.Len(t, reader.queries, 1)
	assert.Equal(t, int64(101), reader.queries[0].FromBlock.Int64())
	assert.Equal(t, int64(110), reader.queries[0].ToBlock.Int64())
	assert.Equal(t, []common.Address{vendingAddr}, reader.queries[0].Addresses)
}

func TestListener_NoNewBlocksNoQuery(t *testing.T) {
	reader := &fakeLogReader{head: 100}
	listener, err := NewListener(reader, vendingAddr)
	require.NoError(t, err)
	listener.SetHandler(func(ctx context.Context, ev PurchaseEvent) {
		t.Fatal("handler should not fire")
	})

	listener.lastBlock = 100
	require.NoError(t, listener.poll(context.Background()))
	assert.Empty(t, reader.queries)
}

func TestListener_SkipsUndecodableLog(t *testing.T) {
	badLog := purchaseLog(t, buyerAddr, "silver", 103)
	badLog.Topics = badLog.Topics[:1] // drop the indexed buyer

	reader := &fakeLogReader{head: 105, logs: []ethtypes.Log{badLog}}
	listener, err := NewListener(reader, vendingAddr)
	require.NoError(t, err)

	fired := false
	listener.SetHandler(func(ctx context.Context, ev PurchaseEvent) { fired = true })

	listener.lastBlock = 100
	require.NoError(t, listener.poll(context.Background()))
	assert.False(t, fired)
	// Cursor still advances past the bad log.
	assert.Equal(t, uint64(105), listener.lastBlock)
}

func TestListener_FilterErrorKeepsCursor(t *testing.T) {
	reader := &fakeLogReader{head: 120, logsErr: errors.New("rpc overload")}
	listener, err := NewListener(reader, vendingAddr)
	require.NoError(t, err)
	listener.SetHandler(func(ctx context.Context, ev PurchaseEvent) {})

	listener.lastBlock = 100
	require.Error(t, listener.poll(context.Background()))
	assert.Equal(t, uint64(100), listener.lastBlock)
}

func TestListener_RunRequiresHandler(t *testing.T) {
	listener, err := NewListener(&fakeLogReader{}, vendingAddr)
	require.NoError(t, err)
	require.ErrorIs(t, listener.Run(context.Background(), 0), ErrNoHandler)
}
