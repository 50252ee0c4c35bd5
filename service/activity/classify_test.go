package activity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet   = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testOther    = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint     = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testSig      = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"
	testTemplate = "https://explorer.solana.com/tx/{signature}?cluster={cluster}"
)

func testContext() ClassifyContext {
	return ClassifyContext{
		ChainID:             "solana:mainnet",
		Network:             "mainnet",
		ExplorerURLTemplate: testTemplate,
		SelectedAddress:     testWallet,
		NativeSymbol:        "SOL",
	}
}

func testInfo() SignatureInfo {
	bt := int64(1700000000)
	return SignatureInfo{Signature: testSig, Slot: 250000000, BlockTime: &bt}
}

func instr(program ProgramName, typ, info string) ParsedInstruction {
	return ParsedInstruction{Program: program, Type: typ, Info: json.RawMessage(info)}
}

func balances(owners ...string) []TokenBalance {
	out := make([]TokenBalance, len(owners))
	for i, o := range owners {
		out[i] = TokenBalance{Owner: o, Mint: testMint, Amount: "0", Decimals: 6}
	}
	return out
}

func TestClassify_Baseline(t *testing.T) {
	t.Run("nil transaction", func(t *testing.T) {
		a := Classify(nil, testInfo(), testContext())

		assert.Equal(t, testSig, a.Signature)
		assert.Equal(t, "250000000", a.Slot)
		assert.Equal(t, StatusConfirmed, a.Status)
		assert.Equal(t, int64(1700000000000), a.UpdatedAt)
		assert.Equal(t, "2023-11-14T22:13:20Z", a.RawDate)
		assert.Equal(t, "https://explorer.solana.com/tx/"+testSig+"?cluster=mainnet", a.BlockExplorerURL)
		assert.Equal(t, ActionUnknown, a.Action)
		assert.Equal(t, TypeUnknown, a.Type)
		assert.Equal(t, uint32(9), a.Decimal)
		assert.Nil(t, a.Fee)
	})

	t.Run("missing meta is not an error", func(t *testing.T) {
		tx := &ParsedTransaction{Instructions: []ParsedInstruction{
			instr(ProgramSystem, TypeTransfer, `{"source":"`+testWallet+`","destination":"`+testOther+`","lamports":5}`),
		}}
		a := Classify(tx, testInfo(), testContext())
		assert.Equal(t, TypeUnknown, a.Type)
		assert.Equal(t, StatusConfirmed, a.Status)
	})

	t.Run("meta error marks failed", func(t *testing.T) {
		tx := &ParsedTransaction{Meta: &TransactionMeta{Err: map[string]any{"InstructionError": []any{0, "Custom"}}, Fee: 5000}}
		a := Classify(tx, testInfo(), testContext())
		assert.Equal(t, StatusFailed, a.Status)
		require.NotNil(t, a.Fee)
		assert.Equal(t, uint64(5000), *a.Fee)
	})

	t.Run("missing block time falls back to epoch", func(t *testing.T) {
		info := SignatureInfo{Signature: testSig, Slot: 1}
		a := Classify(nil, info, testContext())
		assert.Equal(t, int64(0), a.UpdatedAt)
		assert.Equal(t, "1970-01-01T00:00:00Z", a.RawDate)
	})

	t.Run("more than three instructions stays unknown", func(t *testing.T) {
		transfer := instr(ProgramSystem, TypeTransfer, `{"source":"a","destination":"b","lamports":1}`)
		tx := &ParsedTransaction{
			Instructions: []ParsedInstruction{transfer, transfer, transfer, transfer},
			Meta:         &TransactionMeta{},
		}
		a := Classify(tx, testInfo(), testContext())
		assert.Equal(t, TypeUnknown, a.Type)
		assert.Equal(t, ActionUnknown, a.Action)
	})

	t.Run("empty instruction list stays unknown", func(t *testing.T) {
		a := Classify(&ParsedTransaction{Meta: &TransactionMeta{}}, testInfo(), testContext())
		assert.Equal(t, TypeUnknown, a.Type)
	})
}

func TestClassify_SystemTransfer(t *testing.T) {
	tx := &ParsedTransaction{
		Instructions: []ParsedInstruction{
			instr(ProgramSystem, TypeTransfer, `{"source":"`+testWallet+`","destination":"`+testOther+`","lamports":1500000000}`),
		},
		Meta: &TransactionMeta{Fee: 5000},
	}

	a := Classify(tx, testInfo(), testContext())

	assert.Equal(t, ActionSend, a.Action)
	assert.Equal(t, TypeTransfer, a.Type)
	require.NotNil(t, a.CryptoCurrency)
	assert.Equal(t, "SOL", *a.CryptoCurrency)
	assert.Equal(t, uint32(9), a.Decimal)
	require.NotNil(t, a.From)
	require.NotNil(t, a.To)
	assert.Equal(t, testWallet, *a.From)
	assert.Equal(t, testOther, *a.To)
	require.NotNil(t, a.CryptoAmount)
	assert.Equal(t, "1500000000", *a.CryptoAmount)
	require.NotNil(t, a.TotalAmountString)
	assert.Equal(t, "1.5", *a.TotalAmountString)

	t.Run("receiving side", func(t *testing.T) {
		cc := testContext()
		cc.SelectedAddress = testOther
		a := Classify(tx, testInfo(), cc)
		assert.Equal(t, ActionReceive, a.Action)
	})
}

func TestClassify_SPLTransferChecked(t *testing.T) {
	info := `{"source":"srcAta","mint":"` + testMint + `","destination":"dstAta","authority":"` + testWallet + `",` +
		`"tokenAmount":{"amount":"1500000","decimals":6,"uiAmount":1.5,"uiAmountString":"1.5"}}`
	tx := &ParsedTransaction{
		Instructions: []ParsedInstruction{instr(ProgramSPLToken, TypeTransferChecked, info)},
		Meta:         &TransactionMeta{PostTokenBalances: balances(testWallet, testOther)},
	}

	a := Classify(tx, testInfo(), testContext())

	assert.Equal(t, TypeTransferChecked, a.Type)
	assert.Equal(t, ActionSend, a.Action)
	require.NotNil(t, a.TotalAmountString)
	assert.Equal(t, "1.5", *a.TotalAmountString)
	assert.Equal(t, uint32(6), a.Decimal)
	require.NotNil(t, a.To)
	assert.Equal(t, testOther, *a.To)
	require.NotNil(t, a.CryptoCurrency)
	assert.Equal(t, UnresolvedCurrency, *a.CryptoCurrency)
	require.NotNil(t, a.MintAddress)
	assert.Equal(t, testMint, *a.MintAddress)
}

func TestClassify_SPLTransferUnchecked(t *testing.T) {
	info := `{"source":"srcAta","destination":"dstAta","authority":"` + testOther + `","amount":"250","decimals":2}`
	tx := &ParsedTransaction{
		Instructions: []ParsedInstruction{instr(ProgramSPLToken, TypeTransfer, info)},
		Meta:         &TransactionMeta{PostTokenBalances: balances(testWallet, testOther)},
	}

	a := Classify(tx, testInfo(), testContext())

	assert.Equal(t, ActionReceive, a.Action)
	assert.Equal(t, uint32(2), a.Decimal)
	require.NotNil(t, a.TotalAmountString)
	assert.Equal(t, "2.5", *a.TotalAmountString)
	require.NotNil(t, a.To)
	assert.Equal(t, testWallet, *a.To)

	t.Run("decimals from post balances when absent", func(t *testing.T) {
		info := `{"source":"srcAta","destination":"dstAta","authority":"` + testOther + `","amount":"250"}`
		tx := &ParsedTransaction{
			Instructions: []ParsedInstruction{instr(ProgramSPLToken, TypeTransfer, info)},
			Meta:         &TransactionMeta{PostTokenBalances: balances(testWallet, testOther)},
		}
		a := Classify(tx, testInfo(), testContext())
		assert.Equal(t, uint32(6), a.Decimal)
		require.NotNil(t, a.TotalAmountString)
		assert.Equal(t, "0.00025", *a.TotalAmountString)
	})
}

func TestClassify_DegenerateSelfTransfer(t *testing.T) {
	info := `{"source":"srcAta","destination":"dstAta","authority":"` + testWallet + `","amount":"1","decimals":0}`
	tx := &ParsedTransaction{
		Instructions: []ParsedInstruction{instr(ProgramSPLToken, TypeTransfer, info)},
		Meta:         &TransactionMeta{PostTokenBalances: balances(testWallet)},
	}

	a := Classify(tx, testInfo(), testContext())

	require.NotNil(t, a.From)
	require.NotNil(t, a.To)
	assert.Equal(t, testWallet, *a.From)
	assert.Equal(t, *a.From, *a.To)
}

func TestClassify_HeuristicScope(t *testing.T) {
	create := instr(ProgramAssociatedToken, TypeCreate, `{"account":"ata","mint":"`+testMint+`","wallet":"`+testOther+`"}`)
	transfer := instr(ProgramSPLToken, TypeTransfer, `{"source":"s","destination":"d","authority":"`+testWallet+`","amount":"1","decimals":0}`)
	approve := instr(ProgramSPLToken, "approve", `{"source":"s","delegate":"d","owner":"`+testWallet+`","amount":"1"}`)
	burn := instr(ProgramSPLToken, TypeBurn, `{"account":"acc","mint":"burnMint","authority":"`+testWallet+`","amount":"7","decimals":0}`)

	tests := []struct {
		name     string
		ixs      []ParsedInstruction
		wantIdx  int
		wantType string
	}{
		{name: "create then transfer selects transfer", ixs: []ParsedInstruction{create, transfer}, wantIdx: 1, wantType: TypeTransfer},
		{name: "approve then burn selects burn", ixs: []ParsedInstruction{approve, burn}, wantIdx: 1, wantType: TypeBurn},
		{name: "create without transfer is unclassified", ixs: []ParsedInstruction{create, burn}, wantIdx: -1, wantType: TypeUnknown},
		{name: "no create and no burn is unclassified", ixs: []ParsedInstruction{approve, transfer}, wantIdx: -1, wantType: TypeUnknown},
		{name: "single instruction is forced", ixs: []ParsedInstruction{approve}, wantIdx: 0, wantType: TypeUnknown},
		{name: "three instructions first match wins", ixs: []ParsedInstruction{create, transfer, transfer}, wantIdx: 1, wantType: TypeTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIdx, SelectCandidate(tt.ixs))

			tx := &ParsedTransaction{Instructions: tt.ixs, Meta: &TransactionMeta{PostTokenBalances: balances(testWallet, testOther)}}
			a := Classify(tx, testInfo(), testContext())
			assert.Equal(t, tt.wantType, a.Type)
		})
	}
}

func TestClassify_BurnUsesInstructionMint(t *testing.T) {
	approve := instr(ProgramSPLToken, "approve", `{"source":"s","delegate":"d","owner":"o","amount":"1"}`)
	burn := instr(ProgramSPLToken, TypeBurnChecked,
		`{"account":"acc","mint":"burnMint","authority":"`+testWallet+`","tokenAmount":{"amount":"1","decimals":0}}`)
	tx := &ParsedTransaction{
		Instructions: []ParsedInstruction{approve, burn},
		Meta:         &TransactionMeta{PostTokenBalances: balances(testWallet, testOther)},
	}

	a := Classify(tx, testInfo(), testContext())

	assert.Equal(t, TypeBurnChecked, a.Type)
	require.NotNil(t, a.MintAddress)
	assert.Equal(t, "burnMint", *a.MintAddress)
	assert.Equal(t, ActionSend, a.Action)
}

func TestClassify_MalformedInstruction(t *testing.T) {
	tests := []struct {
		name string
		ix   ParsedInstruction
	}{
		{name: "checked without tokenAmount", ix: instr(ProgramSPLToken, TypeTransferChecked, `{"authority":"`+testWallet+`","amount":"1"}`)},
		{name: "missing authority", ix: instr(ProgramSPLToken, TypeTransfer, `{"amount":"1"}`)},
		{name: "non numeric amount", ix: instr(ProgramSPLToken, TypeTransfer, `{"authority":"a","amount":"lots"}`)},
		{name: "info is a string", ix: instr(ProgramSPLToken, TypeTransfer, `"opaque"`)},
		{name: "system transfer without lamports", ix: instr(ProgramSystem, TypeTransfer, `{"source":"a","destination":"b"}`)},
		{name: "no info at all", ix: ParsedInstruction{Program: ProgramSystem, Type: TypeTransfer}},
		{name: "other program", ix: instr(ProgramOther, TypeTransfer, `{"source":"a","destination":"b","lamports":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &ParsedTransaction{Instructions: []ParsedInstruction{tt.ix}, Meta: &TransactionMeta{}}
			var a Activity
			require.NotPanics(t, func() { a = Classify(tx, testInfo(), testContext()) })
			assert.Equal(t, TypeUnknown, a.Type)
			assert.Equal(t, ActionUnknown, a.Action)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		raw      string
		decimals uint32
		want     string
	}{
		{"1500000", 6, "1.5"},
		{"1000000000", 9, "1"},
		{"0", 9, "0"},
		{"1", 9, "0.000000001"},
		{"18446744073709551615", 9, "18446744073.709551615"},
		{"123456789012345678901234567890", 18, "123456789012.34567890123456789"},
		{"42", 0, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := FormatAmount(tt.raw, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FormatAmount("1.5", 0)
	assert.Error(t, err)
	_, err = FormatAmount("abc", 0)
	assert.Error(t, err)
}
