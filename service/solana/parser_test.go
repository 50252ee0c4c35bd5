package solana

import (
	"encoding/json"
	"testing"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramName(t *testing.T) {
	tests := []struct {
		name      string
		program   string
		programID string
		want      activity.ProgramName
	}{
		{"spl token by name", "spl-token", "", activity.ProgramSPLToken},
		{"token-2022 by name", "spl-token-2022", "", activity.ProgramSPLToken},
		{"system by name", "system", "", activity.ProgramSystem},
		{"ata by name", "spl-associated-token-account", "", activity.ProgramAssociatedToken},
		{"spl token by id", "", solana.TokenProgramID.String(), activity.ProgramSPLToken},
		{"token-2022 by id", "", Token2022ProgramID.String(), activity.ProgramSPLToken},
		{"system by id", "", solana.SystemProgramID.String(), activity.ProgramSystem},
		{"ata by id", "", solana.SPLAssociatedTokenAccountProgramID.String(), activity.ProgramAssociatedToken},
		{"memo", "spl-memo", "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr", activity.ProgramOther},
		{"garbage id", "", "???", activity.ProgramOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, programName(tt.program, tt.programID))
		})
	}
}

const parsedTransferResponse = `{
  "slot": 250000000,
  "blockTime": 1700000000,
  "transaction": {
    "signatures": ["sig"],
    "message": {
      "instructions": [
        {
          "program": "spl-associated-token-account",
          "programId": "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL",
          "parsed": {"type": "create", "info": {"source": "payer"}}
        },
        {
          "program": "spl-token",
          "programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
          "parsed": {
            "type": "transferChecked",
            "info": {
              "authority": "alice",
              "mint": "mintA",
              "tokenAmount": {"amount": "1500000", "decimals": 6}
            }
          }
        },
        {
          "program": "spl-memo",
          "programId": "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr",
          "parsed": "hello"
        },
        {
          "programId": "ComputeBudget111111111111111111111111111111",
          "accounts": [],
          "data": "3gJqkocMWaMm"
        }
      ]
    }
  },
  "meta": {
    "err": null,
    "fee": 5000,
    "preTokenBalances": [],
    "postTokenBalances": [
      {"accountIndex": 1, "owner": "bob", "mint": "mintA", "uiTokenAmount": {"amount": "1500000", "decimals": 6}},
      {"accountIndex": 2, "owner": "alice", "mint": "mintA", "uiTokenAmount": {"amount": "0", "decimals": 6}}
    ]
  }
}`

func TestToParsedTransaction(t *testing.T) {
	var result ParsedTransactionResult
	require.NoError(t, json.Unmarshal([]byte(parsedTransferResponse), &result))

	tx := toParsedTransaction(&result)
	require.NotNil(t, tx)
	require.Len(t, tx.Instructions, 4)

	assert.Equal(t, activity.ProgramAssociatedToken, tx.Instructions[0].Program)
	assert.Equal(t, "create", tx.Instructions[0].Type)

	assert.Equal(t, activity.ProgramSPLToken, tx.Instructions[1].Program)
	assert.Equal(t, "transferChecked", tx.Instructions[1].Type)
	assert.JSONEq(t, `{"authority":"alice","mint":"mintA","tokenAmount":{"amount":"1500000","decimals":6}}`,
		string(tx.Instructions[1].Info))

	assert.Equal(t, activity.ProgramOther, tx.Instructions[2].Program)
	assert.Empty(t, tx.Instructions[2].Type, "string-parsed instruction has no type")

	assert.Equal(t, activity.ProgramOther, tx.Instructions[3].Program)
	assert.Empty(t, tx.Instructions[3].Info)

	require.NotNil(t, tx.Meta)
	assert.Nil(t, tx.Meta.Err)
	assert.Equal(t, uint64(5000), tx.Meta.Fee)
	require.Len(t, tx.Meta.PostTokenBalances, 2)
	assert.Equal(t, activity.TokenBalance{Owner: "bob", Mint: "mintA", Amount: "1500000", Decimals: 6},
		tx.Meta.PostTokenBalances[0])
}

func TestToParsedTransaction_ClassifiesEndToEnd(t *testing.T) {
	var result ParsedTransactionResult
	require.NoError(t, json.Unmarshal([]byte(parsedTransferResponse), &result))

	tx := toParsedTransaction(&result)
	bt := int64(1700000000)
	got := activity.Classify(tx, activity.SignatureInfo{Signature: "sig", Slot: 250000000, BlockTime: &bt},
		activity.ClassifyContext{ChainID: "101", Network: "mainnet", SelectedAddress: "alice"})

	// Four instructions exceed the heuristic's scope.
	assert.Equal(t, activity.TypeUnknown, got.Type)

	// With the create and the transfer only, the transfer is the candidate.
	tx.Instructions = tx.Instructions[:2]
	got = activity.Classify(tx, activity.SignatureInfo{Signature: "sig", Slot: 250000000, BlockTime: &bt},
		activity.ClassifyContext{ChainID: "101", Network: "mainnet", SelectedAddress: "alice"})
	assert.Equal(t, "transferChecked", got.Type)
	require.NotNil(t, got.TotalAmountString)
	assert.Equal(t, "1.5", *got.TotalAmountString)
	require.NotNil(t, got.To)
	assert.Equal(t, "bob", *got.To)
	assert.Equal(t, activity.ActionSend, got.Action)
}

func TestToParsedTransaction_FailedAndMissing(t *testing.T) {
	assert.Nil(t, toParsedTransaction(nil))

	tx := toParsedTransaction(&ParsedTransactionResult{
		Meta: &parsedMeta{Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
	})
	require.NotNil(t, tx)
	assert.Empty(t, tx.Instructions)
	require.NotNil(t, tx.Meta)
	assert.NotNil(t, tx.Meta.Err)

	tx = toParsedTransaction(&ParsedTransactionResult{})
	require.NotNil(t, tx)
	assert.Nil(t, tx.Meta)
}
