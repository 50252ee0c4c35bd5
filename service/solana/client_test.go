package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	signatures   []*rpc.TransactionSignature
	transactions map[string]*ParsedTransactionResult
	err          error

	// failures is the number of GetParsedTransaction calls that fail with failErr
	// before the mock starts answering.
	failures int32
	failErr  error
	calls    atomic.Int32

	mu        sync.Mutex
	lastLimit *int
}

func (m *mockRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	m.mu.Lock()
	if opts != nil {
		m.lastLimit = opts.Limit
	}
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.signatures, nil
}

func (m *mockRPCClient) GetParsedTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *GetParsedTransactionOpts,
) (*ParsedTransactionResult, error) {
	n := m.calls.Add(1)
	if n <= m.failures {
		return nil, m.failErr
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.transactions == nil {
		return nil, nil
	}
	return m.transactions[signature.String()], nil
}

func newTestClient(mock *mockRPCClient, opts ...Option) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	return NewClient(mock, "test", nil, logger, opts...)
}

func testSignature(b byte) solana.Signature {
	var sig solana.Signature
	sig[0] = b
	sig[63] = b
	return sig
}

func TestListSignatures(t *testing.T) {
	ctx := context.Background()
	address := solana.NewWallet().PublicKey().String()

	bt := solana.UnixTimeSeconds(1700000000)
	mock := &mockRPCClient{
		signatures: []*rpc.TransactionSignature{
			{Signature: testSignature(1), Slot: 200, BlockTime: &bt},
			{Signature: testSignature(2), Slot: 199},
			nil,
		},
	}
	client := newTestClient(mock)

	sigs, err := client.ListSignatures(ctx, address, 50)
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	assert.Equal(t, testSignature(1).String(), sigs[0].Signature)
	assert.Equal(t, uint64(200), sigs[0].Slot)
	require.NotNil(t, sigs[0].BlockTime)
	assert.Equal(t, int64(1700000000), *sigs[0].BlockTime)

	assert.Equal(t, testSignature(2).String(), sigs[1].Signature)
	assert.Nil(t, sigs[1].BlockTime, "missing block time stays nil")

	require.NotNil(t, mock.lastLimit)
	assert.Equal(t, 50, *mock.lastLimit)
}

func TestListSignatures_InvalidAddress(t *testing.T) {
	client := newTestClient(&mockRPCClient{})

	_, err := client.ListSignatures(context.Background(), "not-base58!", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, activity.ErrInvalidAddress)
}

func TestListSignatures_RPCError(t *testing.T) {
	client := newTestClient(&mockRPCClient{err: errors.New("connection refused")})

	_, err := client.ListSignatures(context.Background(), solana.NewWallet().PublicKey().String(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetParsedTransactions_IndexAligned(t *testing.T) {
	ctx := context.Background()

	sigs := make([]string, 6)
	txs := make(map[string]*ParsedTransactionResult)
	for i := range sigs {
		sig := testSignature(byte(i + 1)).String()
		sigs[i] = sig
		if i == 3 {
			continue // node does not have this one
		}
		txs[sig] = &ParsedTransactionResult{
			Slot: uint64(100 + i),
			Meta: &parsedMeta{Fee: uint64(5000 + i)},
		}
	}

	client := newTestClient(&mockRPCClient{transactions: txs}, WithConcurrency(3))

	out, err := client.GetParsedTransactions(ctx, sigs)
	require.NoError(t, err)
	require.Len(t, out, len(sigs))

	for i, tx := range out {
		if i == 3 {
			assert.Nil(t, tx, "missing transaction should be nil")
			continue
		}
		require.NotNil(t, tx)
		require.NotNil(t, tx.Meta)
		assert.Equal(t, uint64(5000+i), tx.Meta.Fee, "result %d out of order", i)
	}
}

func TestGetParsedTransactions_Empty(t *testing.T) {
	client := newTestClient(&mockRPCClient{})

	out, err := client.GetParsedTransactions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGetParsedTransactions_ErrorFailsBatch(t *testing.T) {
	client := newTestClient(&mockRPCClient{err: errors.New("node unavailable")})

	sigs := []string{testSignature(1).String(), testSignature(2).String()}
	out, err := client.GetParsedTransactions(context.Background(), sigs)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "node unavailable")
}

func TestGetParsedTransaction_RetriesThenSucceeds(t *testing.T) {
	sig := testSignature(9).String()
	mock := &mockRPCClient{
		failures: 2,
		failErr:  errors.New("429 Too Many Requests"),
		transactions: map[string]*ParsedTransactionResult{
			sig: {Slot: 1, Meta: &parsedMeta{Fee: 42}},
		},
	}
	client := newTestClient(mock)

	tx, err := client.GetParsedTransaction(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, uint64(42), tx.Meta.Fee)
	assert.Equal(t, int32(3), mock.calls.Load())
}

func TestGetParsedTransaction_GivesUp(t *testing.T) {
	mock := &mockRPCClient{
		failures: 10,
		failErr:  errors.New("timeout"),
	}
	client := newTestClient(mock)

	_, err := client.GetParsedTransaction(context.Background(), testSignature(1).String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, int32(3), mock.calls.Load())
}

func TestGetParsedTransaction_CancelledContext(t *testing.T) {
	mock := &mockRPCClient{
		failures: 10,
		failErr:  errors.New("timeout"),
	}
	client := newTestClient(mock, WithRetry(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.GetParsedTransaction(ctx, testSignature(1).String())
	require.ErrorIs(t, err, context.Canceled)
}

func TestGetParsedTransaction_InvalidSignature(t *testing.T) {
	client := newTestClient(&mockRPCClient{})

	_, err := client.GetParsedTransaction(context.Background(), "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
}

func TestGetTransactionWithInfo(t *testing.T) {
	sig := testSignature(4).String()
	blockTime := int64(1700000000)
	mock := &mockRPCClient{
		transactions: map[string]*ParsedTransactionResult{
			sig: {Slot: 250000123, BlockTime: &blockTime, Meta: &parsedMeta{Fee: 5000}},
		},
	}
	client := newTestClient(mock)

	t.Run("found", func(t *testing.T) {
		tx, info, err := client.GetTransactionWithInfo(context.Background(), sig)
		require.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, uint64(5000), tx.Meta.Fee)
		assert.Equal(t, sig, info.Signature)
		assert.Equal(t, uint64(250000123), info.Slot)
		require.NotNil(t, info.BlockTime)
		assert.Equal(t, blockTime, *info.BlockTime)
	})

	t.Run("not found", func(t *testing.T) {
		missing := testSignature(5).String()
		tx, info, err := client.GetTransactionWithInfo(context.Background(), missing)
		require.NoError(t, err)
		assert.Nil(t, tx)
		assert.Equal(t, activity.SignatureInfo{Signature: missing}, info)
	})
}
