package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "receiptledger/pkg/domain-errors"
)

// Account identifies a ledger participant by its 20-byte address.
// The zero value is "no account" and never identifies a caller.
type Account common.Address

// ParseAccount validates a 0x-prefixed hex address at a trust boundary.
func ParseAccount(s string) (Account, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Account{}, dErrors.New(dErrors.CodeInvalidInput, "account is required")
	}
	if !common.IsHexAddress(s) {
		return Account{}, dErrors.New(dErrors.CodeInvalidInput, "invalid account address")
	}
	a := Account(common.HexToAddress(s))
	if a.IsZero() {
		return Account{}, dErrors.New(dErrors.CodeInvalidInput, "account cannot be the zero address")
	}
	return a, nil
}

// MustAccount parses s and panics on failure. Intended for tests and fixed configuration.
func MustAccount(s string) Account {
	a, err := ParseAccount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AccountFromAddress converts a go-ethereum address.
func AccountFromAddress(addr common.Address) Account {
	return Account(addr)
}

// Address returns the go-ethereum representation.
func (a Account) Address() common.Address {
	return common.Address(a)
}

// Hex returns the EIP-55 checksummed form.
func (a Account) Hex() string {
	return common.Address(a).Hex()
}

func (a Account) String() string {
	return a.Hex()
}

// Key is the canonical lowercase form used for storage columns and cache keys.
func (a Account) Key() string {
	return strings.ToLower(a.Hex())
}

func (a Account) IsZero() bool {
	return a == Account{}
}

// MarshalText encodes the zero account as an empty string.
func (a Account) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return []byte{}, nil
	}
	return []byte(a.Hex()), nil
}

func (a *Account) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Account{}
		return nil
	}
	parsed, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
