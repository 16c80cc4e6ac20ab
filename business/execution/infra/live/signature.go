package live

import (
	"encoding/base64"
	"errors"

	"github.com/mr-tron/base58"

	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

const signatureLen = 64

var errShortTransaction = errors.New("transaction shorter than its signature header")

// transactionSignature returns the fee payer signature of a base64 signed
// transaction. It is the transaction's id on-chain, known before sending.
func transactionSignature(signedTx string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(signedTx)
	if err != nil {
		return "", apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err), apperror.WithContext("builder returned invalid base64"))
	}

	count, n, err := readShortVec(raw)
	if err != nil {
		return "", apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err), apperror.WithContext("builder returned a malformed transaction"))
	}
	if count == 0 {
		return "", apperror.New(apperror.CodeExternalServiceError, apperror.WithContext("builder returned an unsigned transaction"))
	}
	if len(raw) < n+signatureLen {
		return "", apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(errShortTransaction), apperror.WithContext("builder returned a malformed transaction"))
	}

	sig := raw[n : n+signatureLen]
	for _, b := range sig {
		if b != 0 {
			return base58.Encode(sig), nil
		}
	}
	return "", apperror.New(apperror.CodeExternalServiceError, apperror.WithContext("builder returned an unsigned transaction"))
}

// readShortVec decodes a compact-u16 length prefix.
func readShortVec(b []byte) (value, size int, err error) {
	for size < 3 {
		if size >= len(b) {
			return 0, 0, errShortTransaction
		}
		c := b[size]
		value |= int(c&0x7f) << (7 * size)
		size++
		if c&0x80 == 0 {
			return value, size, nil
		}
	}
	return 0, 0, errors.New("compact-u16 length prefix too long")
}
