package signals

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/provably/zkattest-go/pkg/circuit"
)

func TestVerifyDomainClaims(t *testing.T) {
	claims := map[string]string{"domain": "example.com", "address": "alice@example.com"}
	sigs := []string{"111", "222"}

	res := VerifyDomainClaims(claims, sigs)
	assert.True(t, res.AllValid)
	assert.True(t, res.AddressOnDomain)
}

func TestVerifyDomainClaimsMismatchedDomain(t *testing.T) {
	claims := map[string]string{"domain": "evil.com", "address": "alice@example.com"}
	res := VerifyDomainClaims(claims, []string{"1", "2"})
	assert.False(t, res.AllValid)
	assert.False(t, res.AddressOnDomain)
}

func TestVerifyDomainClaimsMissingSignals(t *testing.T) {
	claims := map[string]string{"domain": "example.com", "address": "alice@example.com"}
	res := VerifyDomainClaims(claims, []string{"1"})
	assert.False(t, res.AllValid)
	assert.False(t, res.HasCommitments)
}

func TestVerifyDomainClaimsOversized(t *testing.T) {
	longDomain := strings.Repeat("a", circuit.DomainCap+1)
	claims := map[string]string{"domain": longDomain, "address": "alice@" + longDomain}
	res := VerifyDomainClaims(claims, []string{"1", "2"})
	assert.False(t, res.AllValid)
	assert.False(t, res.DomainFits)
}

func TestVerifyMembershipClaims(t *testing.T) {
	claims := map[string]string{"nullifierHash": "1", "root": "2", "attestationId": "3"}

	res := VerifyMembershipClaims(claims, []string{"1", "2", "3"})
	assert.True(t, res.AllValid)

	res = VerifyMembershipClaims(claims, []string{"9", "2", "3"})
	assert.False(t, res.AllValid)
	assert.False(t, res.ClaimsMirror)

	res = VerifyMembershipClaims(claims, []string{"1", "2"})
	assert.False(t, res.AllValid)
	assert.False(t, res.SignalCount)
}
