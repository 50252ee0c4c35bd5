package activity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Parsed instruction types the classifier cares about.
const (
	TypeTransfer        = "transfer"
	TypeTransferChecked = "transferChecked"
	TypeBurn            = "burn"
	TypeBurnChecked     = "burnChecked"
	TypeCreate          = "create"
)

// Kind tags the decoded variant of an instruction.
type Kind int

const (
	KindUnknown Kind = iota
	KindSPLTransfer
	KindSPLTransferChecked
	KindSPLBurn
	KindSPLBurnChecked
	KindSystemTransfer
)

func (k Kind) String() string {
	switch k {
	case KindSPLTransfer:
		return "spl-token/transfer"
	case KindSPLTransferChecked:
		return "spl-token/transferChecked"
	case KindSPLBurn:
		return "spl-token/burn"
	case KindSPLBurnChecked:
		return "spl-token/burnChecked"
	case KindSystemTransfer:
		return "system/transfer"
	default:
		return "unknown"
	}
}

// IsBurn reports whether k is one of the spl-token burn variants.
func (k Kind) IsBurn() bool {
	return k == KindSPLBurn || k == KindSPLBurnChecked
}

// Instruction is a parsed instruction decoded into one of the supported variants.
// Fields not meaningful for a variant are left empty.
type Instruction struct {
	Kind Kind
	Type string

	// spl-token
	Authority string
	Mint      string

	// system
	Source      string
	Destination string

	Amount   string  // raw base units as a decimal integer string
	Decimals *uint32 // nil when the encoding does not carry decimals
}

// amount accepts both JSON strings and JSON numbers holding a non-negative integer.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*a = amount(s)
	return nil
}

type tokenAmountInfo struct {
	Amount   amount  `json:"amount"`
	Decimals *uint32 `json:"decimals"`
}

type splInfo struct {
	Authority   string           `json:"authority"`
	Mint        string           `json:"mint"`
	Amount      amount           `json:"amount"`
	Decimals    *uint32          `json:"decimals"`
	TokenAmount *tokenAmountInfo `json:"tokenAmount"`
}

type systemTransferInfo struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Lamports    amount `json:"lamports"`
}

// DecodeInstruction decodes the raw info of ix into a typed Instruction.
// Unsupported programs or types, and infos missing required fields, decode to KindUnknown.
func DecodeInstruction(ix ParsedInstruction) Instruction {
	unknown := Instruction{Kind: KindUnknown, Type: ix.Type}
	if len(ix.Info) == 0 {
		return unknown
	}

	switch ix.Program {
	case ProgramSPLToken:
		var info splInfo
		if err := json.Unmarshal(ix.Info, &info); err != nil || info.Authority == "" {
			return unknown
		}
		out := Instruction{Type: ix.Type, Authority: info.Authority, Mint: info.Mint}
		switch ix.Type {
		case TypeTransfer, TypeBurn:
			if info.Amount == "" {
				return unknown
			}
			out.Kind = KindSPLTransfer
			if ix.Type == TypeBurn {
				out.Kind = KindSPLBurn
			}
			out.Amount = string(info.Amount)
			out.Decimals = info.Decimals
		case TypeTransferChecked, TypeBurnChecked:
			if info.TokenAmount == nil || info.TokenAmount.Amount == "" || info.TokenAmount.Decimals == nil {
				return unknown
			}
			out.Kind = KindSPLTransferChecked
			if ix.Type == TypeBurnChecked {
				out.Kind = KindSPLBurnChecked
			}
			out.Amount = string(info.TokenAmount.Amount)
			out.Decimals = info.TokenAmount.Decimals
		default:
			return unknown
		}
		if out.Kind.IsBurn() && out.Mint == "" {
			return unknown
		}
		return out

	case ProgramSystem:
		if ix.Type != TypeTransfer {
			return unknown
		}
		var info systemTransferInfo
		if err := json.Unmarshal(ix.Info, &info); err != nil {
			return unknown
		}
		if info.Source == "" || info.Destination == "" || info.Lamports == "" {
			return unknown
		}
		return Instruction{
			Kind:        KindSystemTransfer,
			Type:        ix.Type,
			Source:      info.Source,
			Destination: info.Destination,
			Amount:      string(info.Lamports),
		}
	}

	return unknown
}
