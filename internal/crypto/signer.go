// Package crypto provides resolution-message signing, multi-signature
// verification, and encrypted key custody for the oracle service.
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// resolutionPrefix namespaces resolution digests so a signature produced here
// can never be replayed as a signature over some other message format.
const resolutionPrefix = "oraclebot:resolution:"

// ResolutionDigest returns the 32-byte keccak256 digest an admin signs to
// authorize resolving marketID to outcome.
func ResolutionDigest(marketID, outcome string) []byte {
	return ethcrypto.Keccak256([]byte(resolutionPrefix + marketID + ":" + outcome))
}

// Signer signs resolution digests with a secp256k1 private key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignResolution signs the resolution digest for (marketID, outcome) and
// returns a hex-encoded 65-byte signature (r || s || v).
func (s *Signer) SignResolution(marketID, outcome string) (string, error) {
	sig, err := ethcrypto.Sign(ResolutionDigest(marketID, outcome), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto: signing resolution: %w", err)
	}

	// go-ethereum returns v in {0,1}; external tooling expects {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverSigner recovers the Ethereum address that signed the resolution
// digest for (marketID, outcome). The signature must be a hex-encoded
// 65-byte r || s || v blob with v in {0,1,27,28}.
func RecoverSigner(marketID, outcome, signatureHex string) (common.Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: decode signature: %w", err)
	}
	if len(raw) != 65 {
		return common.Address{}, fmt.Errorf("crypto: signature must be 65 bytes, got %d", len(raw))
	}

	// Normalise v back to {0,1} for go-ethereum recovery.
	sig := make([]byte, 65)
	copy(sig, raw)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(ResolutionDigest(marketID, outcome), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
