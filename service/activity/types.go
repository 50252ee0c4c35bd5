package activity

import (
	"encoding/json"
	"errors"
)

// Status is the lifecycle state of an activity.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// Action describes the direction of an activity relative to the tracked address.
type Action string

const (
	ActionSend    Action = "send"
	ActionReceive Action = "receive"
	ActionUnknown Action = "unknown"
)

// TypeUnknown is the activity type used when no instruction could be classified.
const TypeUnknown = "unknown"

// DefaultDecimals is the decimal count assumed until an instruction says otherwise.
const DefaultDecimals = 9

// UnresolvedCurrency marks a token whose symbol must be resolved by mint elsewhere.
const UnresolvedCurrency = "-"

// ErrInvalidAddress is returned when an address is not valid base58.
var ErrInvalidAddress = errors.New("invalid address")

// SignatureInfo is one entry from the signature listing of an address.
type SignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime,omitempty"` // unix seconds, nil when the node has no block time
}

// ProgramName identifies the program that produced a parsed instruction.
type ProgramName string

const (
	ProgramSPLToken        ProgramName = "spl-token"
	ProgramSystem          ProgramName = "system"
	ProgramAssociatedToken ProgramName = "associated-token"
	ProgramOther           ProgramName = "other"
)

// ParsedInstruction is one top-level instruction of a parsed transaction.
// Info holds the raw "info" object exactly as the node returned it.
type ParsedInstruction struct {
	ProgramID string          `json:"programId"`
	Program   ProgramName     `json:"program"`
	Type      string          `json:"type,omitempty"`
	Info      json.RawMessage `json:"info,omitempty"`
}

// TokenBalance is a pre/post token balance entry from transaction metadata.
type TokenBalance struct {
	Owner    string `json:"owner"`
	Mint     string `json:"mint"`
	Amount   string `json:"amount"`
	Decimals uint32 `json:"decimals"`
}

// TransactionMeta is the execution metadata of a parsed transaction.
type TransactionMeta struct {
	Err               any            `json:"err,omitempty"`
	Fee               uint64         `json:"fee"`
	PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance `json:"postTokenBalances"`
}

// ParsedTransaction is a transaction decoded into instructions and balance metadata.
// Meta is nil when the node could not provide execution metadata.
type ParsedTransaction struct {
	Instructions []ParsedInstruction `json:"instructions"`
	Meta         *TransactionMeta    `json:"meta,omitempty"`
}

// Activity is the user-facing record of one transaction's effect on an address.
// Signature is the merge key.
type Activity struct {
	Signature         string  `json:"signature"`
	Slot              string  `json:"slot"`
	Status            Status  `json:"status"`
	UpdatedAt         int64   `json:"updatedAt"`
	BlockExplorerURL  string  `json:"blockExplorerUrl"`
	ChainID           string  `json:"chainId"`
	Network           string  `json:"network"`
	RawDate           string  `json:"rawDate"`
	Action            Action  `json:"action"`
	Type              string  `json:"type"`
	From              *string `json:"from,omitempty"`
	To                *string `json:"to,omitempty"`
	CryptoAmount      *string `json:"cryptoAmount,omitempty"`
	CryptoCurrency    *string `json:"cryptoCurrency,omitempty"`
	Decimal           uint32  `json:"decimal"`
	TotalAmountString *string `json:"totalAmountString,omitempty"`
	MintAddress       *string `json:"mintAddress,omitempty"`
	Fee               *uint64 `json:"fee,omitempty"`
	ID                *string `json:"id,omitempty"`
}

// HasID reports whether the activity carries a backend order id.
func (a Activity) HasID() bool {
	return a.ID != nil && *a.ID != ""
}

// StatusChange is emitted when a backend-linked activity changes status.
type StatusChange struct {
	ActivityID string `json:"activity_id"`
	Signature  string `json:"signature"`
	Status     Status `json:"status"`
	UpdatedAt  int64  `json:"updated_at"`
}

func strPtr(s string) *string { return &s }
