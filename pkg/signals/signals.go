// Package signals re-derives the expected public-signal values from an
// envelope's claims. The zk proof only binds the signals; this layer binds
// the signals to the human-readable claims a consumer acts on.
package signals

import (
	"strings"

	"github.com/provably/zkattest-go/pkg/circuit"
)

// DomainResult reports the per-check outcome for a domain attestation.
type DomainResult struct {
	HasCommitments  bool
	AddressOnDomain bool
	DomainFits      bool
	AddressFits     bool
	AllValid        bool
}

// VerifyDomainClaims checks that the claimed address actually carries the
// claimed domain as its '@' suffix and that both fit the circuit capacities.
// The commitments themselves are validated against the proof by the zk
// verification; here we only require their presence.
func VerifyDomainClaims(claims map[string]string, publicSignals []string) DomainResult {
	res := DomainResult{}
	res.HasCommitments = len(publicSignals) >= 2

	domain := claims["domain"]
	address := claims["address"]
	res.DomainFits = domain != "" && len(domain) <= circuit.DomainCap
	res.AddressFits = address != "" && len(address) <= circuit.AddressCap

	if i := strings.IndexByte(address, '@'); i >= 0 {
		res.AddressOnDomain = address[i+1:] == domain
	}

	res.AllValid = res.HasCommitments && res.AddressOnDomain && res.DomainFits && res.AddressFits
	return res
}

// MembershipResult reports the per-check outcome for a membership
// attestation.
type MembershipResult struct {
	SignalCount  bool
	ClaimsMirror bool
	AllValid     bool
}

// VerifyMembershipClaims checks that the envelope claims mirror the public
// signals the proof was generated against, in the fixed order
// (nullifierHash, root, attestationId).
func VerifyMembershipClaims(claims map[string]string, publicSignals []string) MembershipResult {
	res := MembershipResult{}
	res.SignalCount = len(publicSignals) == 3
	if res.SignalCount {
		res.ClaimsMirror = claims["nullifierHash"] == publicSignals[0] &&
			claims["root"] == publicSignals[1] &&
			claims["attestationId"] == publicSignals[2]
	}
	res.AllValid = res.SignalCount && res.ClaimsMirror
	return res
}
