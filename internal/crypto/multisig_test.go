package crypto

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

func newAdminSet(t *testing.T, n int) ([]*Signer, []string) {
	t.Helper()
	signers := make([]*Signer, n)
	addrs := make([]string, n)
	for i := range signers {
		signers[i] = newTestSigner(t)
		addrs[i] = signers[i].Address().Hex()
	}
	return signers, addrs
}

func signAll(t *testing.T, signers []*Signer, marketID, outcome string) []string {
	t.Helper()
	sigs := make([]string, len(signers))
	for i, s := range signers {
		sig, err := s.SignResolution(marketID, outcome)
		require.NoError(t, err)
		sigs[i] = sig
	}
	return sigs
}

func TestNewMultiSigVerifierValidation(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	_, addrs := newAdminSet(t, 2)

	_, err := NewMultiSigVerifier(addrs, 0, logger)
	assert.Error(t, err)

	_, err = NewMultiSigVerifier(addrs, 3, logger)
	assert.Error(t, err)

	_, err = NewMultiSigVerifier([]string{"not-an-address"}, 1, logger)
	assert.Error(t, err)

	v, err := NewMultiSigVerifier(addrs, 2, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Threshold())
}

func TestVerifyMeetsThreshold(t *testing.T) {
	signers, addrs := newAdminSet(t, 3)
	v, err := NewMultiSigVerifier(addrs, 2, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	sigs := signAll(t, signers[:2], "market-1", "yes")
	got, err := v.Verify("market-1", "yes", sigs)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestVerifyDuplicateSignerCountsOnce(t *testing.T) {
	signers, addrs := newAdminSet(t, 3)
	v, err := NewMultiSigVerifier(addrs, 2, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	sig, err := signers[0].SignResolution("market-1", "yes")
	require.NoError(t, err)

	_, err = v.Verify("market-1", "yes", []string{sig, sig, sig})
	assert.ErrorIs(t, err, domain.ErrInsufficientSignatures)
}

func TestVerifySkipsNonAdminAndMalformed(t *testing.T) {
	signers, addrs := newAdminSet(t, 2)
	v, err := NewMultiSigVerifier(addrs, 2, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	outsider := newTestSigner(t)
	outsiderSig, err := outsider.SignResolution("market-1", "yes")
	require.NoError(t, err)

	sigs := append(signAll(t, signers, "market-1", "yes"), outsiderSig, "0xgarbage")
	got, err := v.Verify("market-1", "yes", sigs)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, addr := range got {
		assert.NotEqual(t, outsider.Address(), addr)
	}
}

func TestVerifyWrongOutcomeFails(t *testing.T) {
	signers, addrs := newAdminSet(t, 2)
	v, err := NewMultiSigVerifier(addrs, 2, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	// Signatures over "yes" must not authorize a "no" resolution.
	sigs := signAll(t, signers, "market-1", "yes")
	_, err = v.Verify("market-1", "no", sigs)
	assert.ErrorIs(t, err, domain.ErrInsufficientSignatures)
}
