package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetParsedTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *GetParsedTransactionOpts,
	) (*ParsedTransactionResult, error)
}

const (
	defaultConcurrency = 4
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
)

// Client is the signature and transaction source for reconciliation passes.
type Client struct {
	rpc         RPCClient
	logger      *slog.Logger
	metrics     *metrics.Metrics
	endpoint    string // RPC endpoint identifier for metrics (e.g., "mainnet", "helius")
	concurrency int
	maxAttempts int
	backoff     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithConcurrency bounds the number of in-flight getTransaction calls.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRetry sets the attempts per transaction and the base backoff between them.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling. If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		rpc:         rpcClient,
		logger:      logger,
		metrics:     m,
		endpoint:    endpoint,
		concurrency: defaultConcurrency,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateAddress checks that address is a base58 encoded public key.
func ValidateAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("%w: %v", activity.ErrInvalidAddress, err)
	}
	return nil
}

// ListSignatures returns up to limit signatures for address, newest first.
func (c *Client) ListSignatures(ctx context.Context, address string, limit int) ([]activity.SignatureInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", activity.ErrInvalidAddress, err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{Limit: &limit}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"address", address,
		"limit", limit,
	)

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, pubkey, opts)
	c.recordCall("GetSignaturesForAddress", err, time.Since(start))
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"address", address,
			"error", err,
		)
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(signatures)))
	}

	out := make([]activity.SignatureInfo, 0, len(signatures))
	for _, sig := range signatures {
		if sig == nil {
			continue
		}
		info := activity.SignatureInfo{
			Signature: sig.Signature.String(),
			Slot:      sig.Slot,
		}
		if sig.BlockTime != nil {
			bt := int64(*sig.BlockTime)
			info.BlockTime = &bt
		}
		out = append(out, info)
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"address", address,
		"count", len(out),
	)
	return out, nil
}

// GetParsedTransactions fetches the given signatures concurrently. The result is
// index-aligned with signatures; a nil entry means the node does not have the
// transaction. Any fetch error fails the whole call.
func (c *Client) GetParsedTransactions(ctx context.Context, signatures []string) ([]*activity.ParsedTransaction, error) {
	out := make([]*activity.ParsedTransaction, len(signatures))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, sig := range signatures {
		g.Go(func() error {
			tx, err := c.GetParsedTransaction(gctx, sig)
			if err != nil {
				return fmt.Errorf("transaction %s: %w", sig, err)
			}
			out[i] = tx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetParsedTransaction fetches one transaction in jsonParsed form, retrying with
// exponential backoff. Rate-limit responses back off twice as long.
func (c *Client) GetParsedTransaction(ctx context.Context, signature string) (*activity.ParsedTransaction, error) {
	result, err := c.getTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	return toParsedTransaction(result), nil
}

// GetTransactionWithInfo is GetParsedTransaction plus the slot and block time the
// node reports alongside the transaction. A missing transaction yields a nil
// transaction and an info carrying only the signature.
func (c *Client) GetTransactionWithInfo(ctx context.Context, signature string) (*activity.ParsedTransaction, activity.SignatureInfo, error) {
	result, err := c.getTransaction(ctx, signature)
	if err != nil {
		return nil, activity.SignatureInfo{}, err
	}
	return toParsedTransaction(result), signatureInfoOf(signature, result), nil
}

func (c *Client) getTransaction(ctx context.Context, signature string) (*ParsedTransactionResult, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	maxVersion := uint64(0)
	opts := &GetParsedTransactionOpts{
		MaxSupportedTransactionVersion: &maxVersion,
		Commitment:                     rpc.CommitmentConfirmed,
	}

	var lastErr error
	for attempt := range c.maxAttempts {
		start := time.Now()
		result, err := c.rpc.GetParsedTransaction(ctx, sig, opts)
		c.recordCall("GetTransaction", err, time.Since(start))
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.maxAttempts-1 {
			break
		}

		backoff := c.backoff << uint(attempt)
		reason := "timeout_or_error"
		if strings.Contains(err.Error(), "429") {
			backoff *= 2
			reason = "rate_limit"
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.endpoint)
			}
		}
		if c.metrics != nil {
			c.metrics.RecordRPCRetry("GetTransaction", reason)
		}
		c.logger.WarnContext(ctx, "failed to get transaction on attempt",
			"signature", signature,
			"attempt", attempt+1,
			"reason", reason,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) recordCall(method string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, d.Seconds())
}
