package activity

import (
	"strings"
	"time"
)

// BackendOrder is a transaction order previously submitted through the backend.
type BackendOrder struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Signature   *string    `json:"signature,omitempty"`
	Status      string     `json:"status"`
	Type        string     `json:"type,omitempty"`
	From        string     `json:"from,omitempty"`
	To          string     `json:"to,omitempty"`
	Amount      string     `json:"amount,omitempty"` // raw base units
	Currency    string     `json:"currency,omitempty"`
	Decimals    *uint32    `json:"decimals,omitempty"`
	MintAddress string     `json:"mintAddress,omitempty"`
	Slot        string     `json:"slot,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// OrderStatus maps a backend status string onto an activity status.
// Unrecognised values are treated as pending.
func OrderStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confirmed", "completed", "success", "succeeded", "finalized":
		return StatusConfirmed
	case "failed", "error", "rejected", "cancelled", "canceled", "expired":
		return StatusFailed
	default:
		return StatusPending
	}
}

// FromBackendOrder formats a backend order as an Activity. Orders without a
// signature cannot be keyed and are reported with ok=false.
func FromBackendOrder(o BackendOrder, cc ClassifyContext) (Activity, bool) {
	if o.Signature == nil || *o.Signature == "" || o.ID == "" {
		return Activity{}, false
	}
	sig := *o.Signature

	updated := o.CreatedAt
	if o.UpdatedAt != nil {
		updated = *o.UpdatedAt
	}

	a := Activity{
		Signature:        sig,
		Slot:             o.Slot,
		Status:           OrderStatus(o.Status),
		UpdatedAt:        updated.UnixMilli(),
		RawDate:          o.CreatedAt.UTC().Format(time.RFC3339),
		BlockExplorerURL: ExplorerURL(cc.ExplorerURLTemplate, sig, cc.Network, cc.ChainID),
		ChainID:          cc.ChainID,
		Network:          cc.Network,
		Action:           ActionUnknown,
		Type:             TypeUnknown,
		Decimal:          DefaultDecimals,
		ID:               strPtr(o.ID),
	}
	if a.Slot == "" {
		a.Slot = "0"
	}
	if o.Type != "" {
		a.Type = o.Type
	}
	if o.From != "" {
		a.From = strPtr(o.From)
		a.Action = actionFor(o.From, cc.SelectedAddress)
	}
	if o.To != "" {
		a.To = strPtr(o.To)
	}
	if o.Currency != "" {
		a.CryptoCurrency = strPtr(o.Currency)
	}
	if o.MintAddress != "" {
		a.MintAddress = strPtr(o.MintAddress)
	}
	if o.Decimals != nil {
		a.Decimal = *o.Decimals
	}
	if o.Amount != "" {
		if total, err := FormatAmount(o.Amount, a.Decimal); err == nil {
			a.CryptoAmount = strPtr(o.Amount)
			a.TotalAmountString = strPtr(total)
		}
	}
	return a, true
}
