package activity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a raw integer amount scaled down by decimals as an exact
// decimal string, e.g. ("1500000", 6) -> "1.5". Trailing zeros are trimmed.
func FormatAmount(raw string, decimals uint32) (string, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("invalid raw amount %q: %w", raw, err)
	}
	if !d.IsInteger() || d.IsNegative() {
		return "", fmt.Errorf("raw amount %q must be a non-negative integer", raw)
	}
	return d.Shift(-int32(decimals)).String(), nil
}
