package solana

import (
	"encoding/json"

	"github.com/gagliardetto/solana-go/rpc"
)

// GetParsedTransactionOpts controls a jsonParsed getTransaction call.
type GetParsedTransactionOpts struct {
	MaxSupportedTransactionVersion *uint64
	Commitment                     rpc.CommitmentType
}

// ParsedTransactionResult is the jsonParsed getTransaction response.
// Only the fields the classifier consumes are decoded.
type ParsedTransactionResult struct {
	Slot        uint64             `json:"slot"`
	BlockTime   *int64             `json:"blockTime"`
	Transaction *parsedTransaction `json:"transaction"`
	Meta        *parsedMeta        `json:"meta"`
}

type parsedTransaction struct {
	Message parsedMessage `json:"message"`
}

type parsedMessage struct {
	Instructions []parsedInstruction `json:"instructions"`
}

type parsedInstruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"` // object for known programs, string for some memo forms
}

type parsedInfo struct {
	Type string          `json:"type"`
	Info json.RawMessage `json:"info"`
}

type parsedMeta struct {
	Err               interface{}          `json:"err"`
	Fee               uint64               `json:"fee"`
	PreTokenBalances  []parsedTokenBalance `json:"preTokenBalances"`
	PostTokenBalances []parsedTokenBalance `json:"postTokenBalances"`
}

type parsedTokenBalance struct {
	Owner         string `json:"owner"`
	Mint          string `json:"mint"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals uint32 `json:"decimals"`
	} `json:"uiTokenAmount"`
}
