package solana

import (
	"bytes"
	"encoding/json"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/gagliardetto/solana-go"
)

// Well-known program IDs not exported by solana-go.
var (
	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// Program names reported by the jsonParsed encoding.
const (
	parsedProgramSPLToken        = "spl-token"
	parsedProgramSPLToken2022    = "spl-token-2022"
	parsedProgramSystem          = "system"
	parsedProgramAssociatedToken = "spl-associated-token-account"
)

// programName maps the jsonParsed program name, or failing that the program id,
// onto the classifier's program enum.
func programName(program, programID string) activity.ProgramName {
	switch program {
	case parsedProgramSPLToken, parsedProgramSPLToken2022:
		return activity.ProgramSPLToken
	case parsedProgramSystem:
		return activity.ProgramSystem
	case parsedProgramAssociatedToken:
		return activity.ProgramAssociatedToken
	}

	id, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return activity.ProgramOther
	}
	switch {
	case id.Equals(solana.TokenProgramID), id.Equals(Token2022ProgramID):
		return activity.ProgramSPLToken
	case id.Equals(solana.SystemProgramID):
		return activity.ProgramSystem
	case id.Equals(solana.SPLAssociatedTokenAccountProgramID):
		return activity.ProgramAssociatedToken
	default:
		return activity.ProgramOther
	}
}

// signatureInfoOf reads slot and block time off a getTransaction result.
func signatureInfoOf(signature string, result *ParsedTransactionResult) activity.SignatureInfo {
	info := activity.SignatureInfo{Signature: signature}
	if result != nil {
		info.Slot = result.Slot
		info.BlockTime = result.BlockTime
	}
	return info
}

// toParsedTransaction converts a jsonParsed RPC result into the classifier's input.
// A nil result (transaction not found) converts to nil.
func toParsedTransaction(result *ParsedTransactionResult) *activity.ParsedTransaction {
	if result == nil {
		return nil
	}

	tx := &activity.ParsedTransaction{}
	if result.Transaction != nil {
		ixs := result.Transaction.Message.Instructions
		tx.Instructions = make([]activity.ParsedInstruction, 0, len(ixs))
		for _, ix := range ixs {
			tx.Instructions = append(tx.Instructions, toParsedInstruction(ix))
		}
	}

	if result.Meta != nil {
		tx.Meta = &activity.TransactionMeta{
			Err:               result.Meta.Err,
			Fee:               result.Meta.Fee,
			PreTokenBalances:  toTokenBalances(result.Meta.PreTokenBalances),
			PostTokenBalances: toTokenBalances(result.Meta.PostTokenBalances),
		}
	}

	return tx
}

func toParsedInstruction(ix parsedInstruction) activity.ParsedInstruction {
	out := activity.ParsedInstruction{
		ProgramID: ix.ProgramID,
		Program:   programName(ix.Program, ix.ProgramID),
	}

	// Unparsed instructions carry raw data instead, and some programs report "parsed"
	// as a bare string. Neither has a type to classify on.
	trimmed := bytes.TrimSpace(ix.Parsed)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return out
	}

	var p parsedInfo
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return out
	}
	out.Type = p.Type
	out.Info = p.Info
	return out
}

func toTokenBalances(in []parsedTokenBalance) []activity.TokenBalance {
	out := make([]activity.TokenBalance, len(in))
	for i, b := range in {
		out[i] = activity.TokenBalance{
			Owner:    b.Owner,
			Mint:     b.Mint,
			Amount:   b.UITokenAmount.Amount,
			Decimals: b.UITokenAmount.Decimals,
		}
	}
	return out
}
