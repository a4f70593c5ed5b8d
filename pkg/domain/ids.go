package domain

import (
	"strconv"
	"strings"

	dErrors "receiptledger/pkg/domain-errors"
)

// ReceiptID is the ledger-assigned receipt number. The first receipt is 1; zero is never assigned.
type ReceiptID uint64

// ParseReceiptID validates a decimal receipt id from a path or query parameter.
func ParseReceiptID(s string) (ReceiptID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "receipt id is required")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid receipt id")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "receipt id must be positive")
	}
	return ReceiptID(n), nil
}

func (id ReceiptID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id ReceiptID) IsNil() bool {
	return id == 0
}
