// Package currency converts integer amounts in the smallest unit to and from
// decimal display strings. Ledger arithmetic never goes through this package.
package currency

import (
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
)

// DefaultDecimals matches the 18-decimal convention of the settlement token.
const DefaultDecimals = 18

// maxDigits is the number of decimal digits in 2^256-1.
const maxDigits = 78

// Converter formats amounts with a fixed number of decimals.
type Converter struct {
	decimals int32
}

// New returns a Converter; a non-positive value falls back to DefaultDecimals.
func New(decimals int) Converter {
	if decimals <= 0 {
		decimals = DefaultDecimals
	}
	return Converter{decimals: int32(decimals)}
}

func (c Converter) Decimals() int {
	return int(c.decimals)
}

// Format renders a as a decimal string with trailing zeros trimmed ("1.5", "100").
func (c Converter) Format(a domain.Amount) string {
	return decimal.NewFromBigInt(a.Uint256().ToBig(), -c.decimals).String()
}

// FormatFixed renders a with exactly places fractional digits, truncating the rest.
func (c Converter) FormatFixed(a domain.Amount, places int32) string {
	return decimal.NewFromBigInt(a.Uint256().ToBig(), -c.decimals).Truncate(places).StringFixed(places)
}

// Parse converts a display string such as "12.5" into the smallest unit.
// Inputs with more fractional digits than the converter supports are rejected.
func (c Converter) Parse(s string) (domain.Amount, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return domain.Amount{}, dErrors.New(dErrors.CodeInvalidAmount, "amount is not a decimal number")
	}
	if d.IsNegative() {
		return domain.Amount{}, dErrors.New(dErrors.CodeInvalidAmount, "amount cannot be negative")
	}
	scaled := d.Shift(c.decimals)
	if exp := scaled.Exponent(); exp > 0 && int(exp)+len(scaled.Coefficient().String()) > maxDigits {
		return domain.Amount{}, dErrors.New(dErrors.CodeInvalidAmount, "amount exceeds 256 bits")
	}
	if !scaled.IsInteger() {
		return domain.Amount{}, dErrors.New(dErrors.CodeInvalidAmount, "amount has too many decimal places")
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return domain.Amount{}, dErrors.New(dErrors.CodeInvalidAmount, "amount exceeds 256 bits")
	}
	return domain.AmountFromUint256(v), nil
}
