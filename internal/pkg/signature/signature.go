// Package signature verifies wallet signatures produced by personal_sign.
package signature

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const (
	signatureLen = 65
	addressLen   = 20
	// compactRecoveryBase is the magic offset of the compact signature header byte.
	compactRecoveryBase = 27
)

var (
	errSignatureLength = errors.New("signature must be 65 bytes")
	errRecoveryID      = errors.New("invalid recovery id")
)

// SubmissionMessage is the canonical message a wallet signs when submitting a paper.
func SubmissionMessage(title, cid string) string {
	return "I am submitting my research paper \"" + title + "\" with IPFS CID " + cid
}

// Verify reports whether sig over message was produced by the key behind address.
// It never panics; malformed input yields false.
func Verify(message, sig, address string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	recovered, err := Recover(message, sig)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered, strings.TrimSpace(address))
}

// Recover returns the 0x-prefixed address that signed message.
func Recover(message, sig string) (string, error) {
	raw, err := decodeHex(sig)
	if err != nil {
		return "", err
	}
	if len(raw) != signatureLen {
		return "", errSignatureLength
	}

	v := raw[64]
	if v >= compactRecoveryBase {
		v -= compactRecoveryBase
	}
	if v > 1 {
		return "", errRecoveryID
	}

	compact := make([]byte, signatureLen)
	compact[0] = compactRecoveryBase + v
	copy(compact[1:], raw[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, HashMessage(message))
	if err != nil {
		return "", err
	}
	return pubKeyAddress(pub), nil
}

// Sign produces a personal_sign style signature (r || s || v, v in {27, 28}).
func Sign(message string, key *secp256k1.PrivateKey) string {
	compact := ecdsa.SignCompact(key, HashMessage(message), false)
	out := make([]byte, signatureLen)
	copy(out, compact[1:])
	out[64] = compact[0]
	return "0x" + hex.EncodeToString(out)
}

// AddressOf returns the 0x-prefixed address controlled by key.
func AddressOf(key *secp256k1.PrivateKey) string {
	return pubKeyAddress(key.PubKey())
}

// HashMessage applies the Ethereum signed-message prefix and hashes with keccak256.
func HashMessage(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return keccak256([]byte(prefixed))
}

func pubKeyAddress(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	digest := keccak256(uncompressed[1:])
	return "0x" + hex.EncodeToString(digest[len(digest)-addressLen:])
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return h.Sum(nil)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
