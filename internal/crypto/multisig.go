package crypto

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// MultiSigVerifier checks that enough distinct admin signers have approved a
// resolution. Signatures from unknown addresses are ignored, duplicate
// signatures from the same admin count once, and malformed signatures are
// skipped rather than failing the whole batch.
type MultiSigVerifier struct {
	admins    map[common.Address]bool
	threshold int
	logger    *slog.Logger
}

// NewMultiSigVerifier builds a verifier over the given admin address set.
// The threshold must be satisfiable by the set.
func NewMultiSigVerifier(adminAddresses []string, threshold int, logger *slog.Logger) (*MultiSigVerifier, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("crypto: threshold must be >= 1, got %d", threshold)
	}
	if threshold > len(adminAddresses) {
		return nil, fmt.Errorf("crypto: threshold %d exceeds admin set size %d", threshold, len(adminAddresses))
	}

	admins := make(map[common.Address]bool, len(adminAddresses))
	for _, a := range adminAddresses {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("crypto: invalid admin address %q", a)
		}
		admins[common.HexToAddress(a)] = true
	}

	return &MultiSigVerifier{
		admins:    admins,
		threshold: threshold,
		logger:    logger,
	}, nil
}

// Threshold returns the number of distinct admin signatures required.
func (v *MultiSigVerifier) Threshold() int {
	return v.threshold
}

// Verify checks the given signatures against the resolution digest for
// (marketID, outcome). It returns the distinct admin addresses that validly
// signed, or domain.ErrInsufficientSignatures when fewer than threshold
// admins are represented.
func (v *MultiSigVerifier) Verify(marketID, outcome string, signatures []string) ([]common.Address, error) {
	seen := make(map[common.Address]bool)
	var signers []common.Address

	for _, sig := range signatures {
		addr, err := RecoverSigner(marketID, outcome, sig)
		if err != nil {
			v.logger.Warn("skipping malformed signature",
				"market_id", marketID, "error", err)
			continue
		}
		if !v.admins[addr] {
			v.logger.Warn("signature from non-admin address",
				"market_id", marketID, "address", addr.Hex())
			continue
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		signers = append(signers, addr)
	}

	if len(signers) < v.threshold {
		return signers, fmt.Errorf("crypto: %d of %d required signatures for market %s: %w",
			len(signers), v.threshold, marketID, domain.ErrInsufficientSignatures)
	}
	return signers, nil
}
