package activity

import (
	"strconv"
	"strings"
	"time"
)

// ClassifyContext carries the per-address settings the classifier needs.
type ClassifyContext struct {
	ChainID             string
	Network             string
	ExplorerURLTemplate string // supports {signature}, {cluster} and {chain}
	SelectedAddress     string
	NativeSymbol        string
}

// ExplorerURL substitutes the signature and chain into an explorer URL template.
func ExplorerURL(template, signature, network, chainID string) string {
	return strings.NewReplacer(
		"{signature}", signature,
		"{cluster}", network,
		"{chain}", chainID,
	).Replace(template)
}

// Baseline builds the record every classification starts from. A missing block time
// maps to the epoch (updatedAt 0).
func Baseline(tx *ParsedTransaction, info SignatureInfo, cc ClassifyContext) Activity {
	var blockTime int64
	if info.BlockTime != nil {
		blockTime = *info.BlockTime
	}

	a := Activity{
		Signature:        info.Signature,
		Slot:             strconv.FormatUint(info.Slot, 10),
		Status:           StatusConfirmed,
		UpdatedAt:        blockTime * 1000,
		RawDate:          time.Unix(blockTime, 0).UTC().Format(time.RFC3339),
		BlockExplorerURL: ExplorerURL(cc.ExplorerURLTemplate, info.Signature, cc.Network, cc.ChainID),
		ChainID:          cc.ChainID,
		Network:          cc.Network,
		Action:           ActionUnknown,
		Type:             TypeUnknown,
		Decimal:          DefaultDecimals,
	}

	if tx != nil && tx.Meta != nil {
		if tx.Meta.Err != nil {
			a.Status = StatusFailed
		}
		fee := tx.Meta.Fee
		a.Fee = &fee
	}
	return a
}

// Classify turns one parsed transaction and its signature metadata into an Activity.
//
// A nil transaction or missing metadata yields the baseline record. Otherwise the
// candidate instruction is chosen by SelectCandidate and, when it decodes to a
// supported transfer or burn, its parties and amounts are filled in. Transactions
// with more than three instructions are never classified.
func Classify(tx *ParsedTransaction, info SignatureInfo, cc ClassifyContext) Activity {
	a := Baseline(tx, info, cc)
	if tx == nil || tx.Meta == nil {
		return a
	}

	idx := SelectCandidate(tx.Instructions)
	if idx < 0 {
		return a
	}

	ix := DecodeInstruction(tx.Instructions[idx])
	switch ix.Kind {
	case KindSPLTransfer, KindSPLTransferChecked, KindSPLBurn, KindSPLBurnChecked:
		return applyTokenInstruction(a, ix, tx.Meta, cc)
	case KindSystemTransfer:
		return applySystemTransfer(a, ix, cc)
	case KindUnknown:
		return a
	default:
		return a
	}
}

func applyTokenInstruction(a Activity, ix Instruction, meta *TransactionMeta, cc ClassifyContext) Activity {
	post := meta.PostTokenBalances
	from := ix.Authority

	to := from
	if len(post) > 1 {
		for _, b := range post[:2] {
			if b.Owner != from {
				to = b.Owner
				break
			}
		}
	}

	mint := ix.Mint
	if !ix.Kind.IsBurn() && len(post) > 0 && post[0].Mint != "" {
		mint = post[0].Mint
	}

	decimals := uint32(DefaultDecimals)
	switch {
	case ix.Decimals != nil:
		decimals = *ix.Decimals
	default:
		if d, ok := decimalsForMint(post, mint); ok {
			decimals = d
		}
	}

	total, err := FormatAmount(ix.Amount, decimals)
	if err != nil {
		return a
	}

	a.Type = ix.Type
	a.From = strPtr(from)
	a.To = strPtr(to)
	a.CryptoAmount = strPtr(ix.Amount)
	a.CryptoCurrency = strPtr(UnresolvedCurrency)
	a.Decimal = decimals
	a.TotalAmountString = strPtr(total)
	if mint != "" {
		a.MintAddress = strPtr(mint)
	}
	a.Action = actionFor(from, cc.SelectedAddress)
	return a
}

func applySystemTransfer(a Activity, ix Instruction, cc ClassifyContext) Activity {
	total, err := FormatAmount(ix.Amount, DefaultDecimals)
	if err != nil {
		return a
	}

	a.Type = ix.Type
	a.From = strPtr(ix.Source)
	a.To = strPtr(ix.Destination)
	a.CryptoAmount = strPtr(ix.Amount)
	a.CryptoCurrency = strPtr(cc.NativeSymbol)
	a.Decimal = DefaultDecimals
	a.TotalAmountString = strPtr(total)
	a.Action = actionFor(ix.Source, cc.SelectedAddress)
	return a
}

func actionFor(from, selected string) Action {
	if from == selected {
		return ActionSend
	}
	return ActionReceive
}

// decimalsForMint looks up the decimals of mint in a token balance list.
func decimalsForMint(balances []TokenBalance, mint string) (uint32, bool) {
	if mint == "" {
		return 0, false
	}
	for _, b := range balances {
		if b.Mint == mint {
			return b.Decimals, true
		}
	}
	return 0, false
}
