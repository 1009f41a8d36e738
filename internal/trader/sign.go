package trader

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Signer signs a base64-encoded unsigned transaction and returns the
// base64-encoded signed form.
type Signer interface {
	SignBase64Transaction(base64Tx string, key solana.PrivateKey) (string, error)
}

// TransactionSigner deserializes, signs, and re-serializes aggregator
// transactions.
type TransactionSigner struct{}

func (TransactionSigner) SignBase64Transaction(base64Tx string, key solana.PrivateKey) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Tx)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("failed to deserialize transaction: %w", err)
	}

	pub := key.PublicKey()
	if _, err := tx.Sign(func(signerKey solana.PublicKey) *solana.PrivateKey {
		if signerKey.Equals(pub) {
			return &key
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize signed transaction: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signed), nil
}
