package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// GenerateNonce returns a 64-character hex nonce for a login challenge.
func GenerateNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// BuildChallenge returns the message a wallet owner must sign to prove
// control of their address. The wording explicitly tells the signer no
// on-chain transaction results; wallet UIs surface this text verbatim.
func BuildChallenge(walletAddress, nonce string) string {
	return fmt.Sprintf(
		"Welcome to SentinelOS!\n\nSign this message to authenticate.\n\nWallet: %s\nNonce: %s\n\nThis request will not trigger a blockchain transaction or cost any gas fees.",
		walletAddress,
		nonce,
	)
}

// VerifySignature checks that signature (base58) is a valid ed25519
// signature over message by the holder of walletAddress. A malformed
// address or signature encoding is an error; a well-formed signature
// that simply does not verify returns false with no error.
func VerifySignature(walletAddress, message, signature string) (bool, error) {
	pubkey, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		return false, fmt.Errorf("invalid wallet address: %w", err)
	}

	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}

	return ed25519.Verify(pubkey.Bytes(), []byte(message), sig[:]), nil
}
