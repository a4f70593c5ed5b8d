// Package signature recovers the signing account of an EIP-191 personal_sign message.
package signature

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
)

// Recover returns the account whose key produced sig over message. Wallets emit
// the recovery id as 27/28; both that form and 0/1 are accepted.
func Recover(message, sig string) (domain.Account, error) {
	raw, err := hexutil.Decode(sig)
	if err != nil {
		return domain.Account{}, dErrors.New(dErrors.CodeInvalidInput, "signature must be 0x-prefixed hex")
	}
	if len(raw) != crypto.SignatureLength {
		return domain.Account{}, dErrors.New(dErrors.CodeInvalidInput, "signature must be 65 bytes")
	}

	raw = bytes.Clone(raw)
	if raw[crypto.RecoveryIDOffset] >= 27 {
		raw[crypto.RecoveryIDOffset] -= 27
	}
	if raw[crypto.RecoveryIDOffset] > 1 {
		return domain.Account{}, dErrors.New(dErrors.CodeInvalidInput, "invalid signature recovery id")
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), raw)
	if err != nil {
		return domain.Account{}, dErrors.Wrap(err, dErrors.CodeUnauthenticated, "signature does not recover")
	}
	return domain.AccountFromAddress(crypto.PubkeyToAddress(*pub)), nil
}

// Sign produces a personal_sign signature with a 27/28 recovery id. Used by
// tooling and tests that act as a wallet.
func Sign(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
