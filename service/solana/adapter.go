package solana

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the solana-go RPC client to our RPCClient interface.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

// SelectRandomEndpoint picks one endpoint to spread load across providers.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", errors.New("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

func (r *realRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	return r.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
}

// GetParsedTransaction calls getTransaction with jsonParsed encoding. The typed
// solana-go result hides the parsed instruction payload, so the raw JSON-RPC
// response is decoded into our own wire types instead.
func (r *realRPCClient) GetParsedTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *GetParsedTransactionOpts,
) (*ParsedTransactionResult, error) {
	cfg := map[string]interface{}{
		"encoding": solana.EncodingJSONParsed,
	}
	if opts != nil {
		if opts.MaxSupportedTransactionVersion != nil {
			cfg["maxSupportedTransactionVersion"] = *opts.MaxSupportedTransactionVersion
		}
		if opts.Commitment != "" {
			cfg["commitment"] = opts.Commitment
		}
	}

	var out *ParsedTransactionResult
	if err := r.client.RPCCallForInto(ctx, &out, "getTransaction", []interface{}{signature.String(), cfg}); err != nil {
		return nil, err
	}
	return out, nil
}
