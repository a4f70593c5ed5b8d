package domain

import (
	"strings"

	"github.com/holiman/uint256"

	dErrors "receiptledger/pkg/domain-errors"
)

// Amount is a receipt value in the smallest currency unit (up to 256 bits).
// Values are immutable once constructed; arithmetic goes through uint256 copies.
type Amount struct {
	v uint256.Int
}

// NewAmount wraps a uint64 value.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// AmountFromUint256 copies a uint256 value.
func AmountFromUint256(v *uint256.Int) Amount {
	var a Amount
	if v != nil {
		a.v.Set(v)
	}
	return a
}

// ParseAmount reads a base-10 integer string. Negative, fractional and oversized
// values are rejected; zero is accepted here and rejected by the lifecycle.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, dErrors.New(dErrors.CodeInvalidAmount, "amount is required")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, dErrors.New(dErrors.CodeInvalidAmount, "amount must be a non-negative integer below 2^256")
	}
	return AmountFromUint256(v), nil
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Uint256 returns a copy of the underlying value.
func (a Amount) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&a.v)
}

func (a Amount) Equal(b Amount) bool {
	return a.v.Eq(&b.v)
}

// String renders the base-10 integer.
func (a Amount) String() string {
	return a.v.Dec()
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
