package auth

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNonce(t *testing.T) {
	first, err := GenerateNonce()
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := GenerateNonce()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestBuildChallenge(t *testing.T) {
	msg := BuildChallenge("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", "abc123")

	assert.True(t, strings.HasPrefix(msg, "Welcome to SentinelOS!"))
	assert.Contains(t, msg, "Wallet: 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
	assert.Contains(t, msg, "Nonce: abc123")
	assert.Contains(t, msg, "will not trigger a blockchain transaction")
}

func TestVerifySignature(t *testing.T) {
	wallet := solana.NewWallet()
	address := wallet.PublicKey().String()
	message := BuildChallenge(address, "test-nonce")

	sig, err := wallet.PrivateKey.Sign([]byte(message))
	require.NoError(t, err)

	t.Run("valid signature verifies", func(t *testing.T) {
		ok, err := VerifySignature(address, message, sig.String())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("signature over different message fails", func(t *testing.T) {
		other := BuildChallenge(address, "other-nonce")
		ok, err := VerifySignature(address, other, sig.String())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("signature from different key fails", func(t *testing.T) {
		intruder := solana.NewWallet()
		forged, err := intruder.PrivateKey.Sign([]byte(message))
		require.NoError(t, err)

		ok, err := VerifySignature(address, message, forged.String())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("bit-flipped signature fails", func(t *testing.T) {
		mutated := sig
		mutated[0] ^= 0x01

		ok, err := VerifySignature(address, message, mutated.String())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed address is an error", func(t *testing.T) {
		_, err := VerifySignature("not-a-base58-pubkey!!", message, sig.String())
		assert.Error(t, err)
	})

	t.Run("malformed signature encoding is an error", func(t *testing.T) {
		_, err := VerifySignature(address, message, "0OIl not base58")
		assert.Error(t, err)
	})
}
