package circuit_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/provably/zkattest-go/pkg/circuit"
	zkcrypto "github.com/provably/zkattest-go/pkg/crypto"
	"github.com/provably/zkattest-go/pkg/email"
)

const testAddress = "prover@example.com"

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

// testRSAKey generates one 2048-bit key shared across the tests.
func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("rsa key generation: %v", err)
		}
	})
	return testKey
}

func signedMessage(t *testing.T, addr string) (*email.Message, *rsa.PublicKey, []byte) {
	t.Helper()
	key := testRSAKey(t)
	msg, err := email.Compose(addr)
	require.NoError(t, err)
	sig, err := email.Sign(key, msg.Header)
	require.NoError(t, err)
	return msg, &key.PublicKey, sig
}

// resign re-signs a message after its buffers were mutated by a test.
func resign(t *testing.T, msg *email.Message) []byte {
	t.Helper()
	sig, err := email.Sign(testRSAKey(t), msg.Header)
	require.NoError(t, err)
	return sig
}

func fullAssignment(t *testing.T, msg *email.Message, pub *rsa.PublicKey, sig []byte, domain string) *circuit.DomainAttestationCircuit {
	t.Helper()
	paddedDomain, err := email.PadDomain(domain)
	require.NoError(t, err)
	addr := string(msg.Header[msg.Loc.ToAddress.Start : msg.Loc.ToAddress.Start+msg.Loc.ToAddress.Length])
	paddedAddr, err := email.PadAddress(addr)
	require.NoError(t, err)

	sigInt := new(big.Int).SetBytes(sig)
	pkCommit, err := zkcrypto.CommitLimbs(pub.N)
	require.NoError(t, err)
	sigCommit, err := zkcrypto.CommitLimbs(sigInt)
	require.NoError(t, err)

	c := &circuit.DomainAttestationCircuit{
		PubKeyCommitment:    pkCommit.BigInt(new(big.Int)),
		SignatureCommitment: sigCommit.BigInt(new(big.Int)),
		HeaderLen:           msg.HeaderLen,
		PublicKeyN:          emulated.ValueOf[circuit.RSAMod](pub.N),
		Signature:           emulated.ValueOf[circuit.RSAMod](sigInt),
		DKIMField:           circuit.Sequence{Start: msg.Loc.DKIMField.Start, Length: msg.Loc.DKIMField.Length},
		BodyHashIndex:       msg.Loc.BodyHashIndex,
		FromField:           circuit.Sequence{Start: msg.Loc.FromField.Start, Length: msg.Loc.FromField.Length},
		FromAddress:         circuit.Sequence{Start: msg.Loc.FromAddress.Start, Length: msg.Loc.FromAddress.Length},
		ToField:             circuit.Sequence{Start: msg.Loc.ToField.Start, Length: msg.Loc.ToField.Length},
		ToAddress:           circuit.Sequence{Start: msg.Loc.ToAddress.Start, Length: msg.Loc.ToAddress.Length},
	}
	for i := range c.Header {
		c.Header[i] = uints.NewU8(msg.Header[i])
	}
	for i := range c.Body {
		c.Body[i] = uints.NewU8(msg.Body[i])
	}
	for i := range c.Domain {
		c.Domain[i] = paddedDomain[i]
	}
	for i := range c.RecipientAddress {
		c.RecipientAddress[i] = paddedAddr[i]
	}
	return c
}

func headerAssignment(t *testing.T, msg *email.Message, pub *rsa.PublicKey, sig []byte, domain string) *circuit.DomainHeaderCircuit {
	t.Helper()
	paddedDomain, err := email.PadDomain(domain)
	require.NoError(t, err)
	addr := string(msg.Header[msg.Loc.ToAddress.Start : msg.Loc.ToAddress.Start+msg.Loc.ToAddress.Length])
	paddedAddr, err := email.PadAddress(addr)
	require.NoError(t, err)

	sigInt := new(big.Int).SetBytes(sig)
	pkCommit, err := zkcrypto.CommitLimbs(pub.N)
	require.NoError(t, err)
	sigCommit, err := zkcrypto.CommitLimbs(sigInt)
	require.NoError(t, err)

	c := &circuit.DomainHeaderCircuit{
		PubKeyCommitment:    pkCommit.BigInt(new(big.Int)),
		SignatureCommitment: sigCommit.BigInt(new(big.Int)),
		HeaderLen:           msg.HeaderLen,
		PublicKeyN:          emulated.ValueOf[circuit.RSAMod](pub.N),
		Signature:           emulated.ValueOf[circuit.RSAMod](sigInt),
		ToField:             circuit.Sequence{Start: msg.Loc.ToField.Start, Length: msg.Loc.ToField.Length},
		ToAddress:           circuit.Sequence{Start: msg.Loc.ToAddress.Start, Length: msg.Loc.ToAddress.Length},
	}
	for i := range c.Header {
		c.Header[i] = uints.NewU8(msg.Header[i])
	}
	for i := range c.Domain {
		c.Domain[i] = paddedDomain[i]
	}
	for i := range c.RecipientAddress {
		c.RecipientAddress[i] = paddedAddr[i]
	}
	return c
}

func solve(c, assignment frontend.Circuit) error {
	return test.IsSolved(c, assignment, ecc.BN254.ScalarField())
}

var (
	baselineOnce      sync.Once
	baselineFullErr   error
	baselineHeaderErr error
)

// requireBaselineSolves checks once per run that untampered assignments
// satisfy both domain circuits. Every negative test calls it first, so a
// circuit that fails for all inputs cannot make a tampering test pass.
func requireBaselineSolves(t *testing.T) {
	t.Helper()
	baselineOnce.Do(func() {
		msg, pub, sig := signedMessage(t, testAddress)
		baselineFullErr = solve(&circuit.DomainAttestationCircuit{}, fullAssignment(t, msg, pub, sig, "example.com"))
		baselineHeaderErr = solve(&circuit.DomainHeaderCircuit{}, headerAssignment(t, msg, pub, sig, "example.com"))
	})
	require.NoError(t, baselineFullErr, "valid full assignment must solve")
	require.NoError(t, baselineHeaderErr, "valid header assignment must solve")
}

func TestDomainAttestationSolves(t *testing.T) {
	requireBaselineSolves(t)
}

func TestDomainAttestationRejectsTamperedSignature(t *testing.T) {
	requireBaselineSolves(t)
	msg, pub, sig := signedMessage(t, testAddress)
	sig[0] ^= 0x01
	assignment := fullAssignment(t, msg, pub, sig, "example.com")
	require.Error(t, solve(&circuit.DomainAttestationCircuit{}, assignment))
}

func TestDomainAttestationRejectsTamperedBody(t *testing.T) {
	requireBaselineSolves(t)
	msg, pub, sig := signedMessage(t, testAddress)
	msg.Body[0] ^= 0x01
	assignment := fullAssignment(t, msg, pub, sig, "example.com")
	require.Error(t, solve(&circuit.DomainAttestationCircuit{}, assignment))
}

// A body other than the canonical phrase is rejected even when the header's
// declared hash is recomputed for it and the header is re-signed.
func TestDomainAttestationRejectsForeignBody(t *testing.T) {
	requireBaselineSolves(t)
	msg, pub, _ := signedMessage(t, testAddress)

	copy(msg.Body, []byte("some other body entirely\r\n"))
	for i := len("some other body entirely\r\n"); i < len(msg.Body); i++ {
		msg.Body[i] = 0
	}
	digest := sha256.Sum256(msg.Body)
	copy(msg.Header[msg.Loc.DKIMField.Start+msg.Loc.BodyHashIndex:], digest[:])
	sig := resign(t, msg)

	assignment := fullAssignment(t, msg, pub, sig, "example.com")
	require.Error(t, solve(&circuit.DomainAttestationCircuit{}, assignment))
}

func TestDomainAttestationRejectsWrongDomain(t *testing.T) {
	requireBaselineSolves(t)
	msg, pub, sig := signedMessage(t, testAddress)
	assignment := fullAssignment(t, msg, pub, sig, "evil.com")
	require.Error(t, solve(&circuit.DomainAttestationCircuit{}, assignment))
}

// Shifting the claim by one byte must not satisfy the suffix check.
func TestDomainAttestationRejectsOffByOneDomain(t *testing.T) {
	requireBaselineSolves(t)
	msg, pub, sig := signedMessage(t, testAddress)
	assignment := fullAssignment(t, msg, pub, sig, "xample.com")
	require.Error(t, solve(&circuit.DomainAttestationCircuit{}, assignment))
}

func TestDomainAttestationRejectsMismatchedSender(t *testing.T) {
	requireBaselineSolves(t)
	msg, pub, _ := signedMessage(t, testAddress)
	msg.Header[msg.Loc.FromAddress.Start] = 'x'
	sig := resign(t, msg)

	assignment := fullAssignment(t, msg, pub, sig, "example.com")
	require.Error(t, solve(&circuit.DomainAttestationCircuit{}, assignment))
}

func TestDomainAttestationRejectsWrongCommitment(t *testing.T) {
	requireBaselineSolves(t)
	msg, pub, sig := signedMessage(t, testAddress)
	assignment := fullAssignment(t, msg, pub, sig, "example.com")
	assignment.PubKeyCommitment = 42
	require.Error(t, solve(&circuit.DomainAttestationCircuit{}, assignment))
}

func TestDomainHeaderSolves(t *testing.T) {
	requireBaselineSolves(t)
}

// The suffix check must hold at the maximum claim width, where the padded
// domain has no zero tail left.
func TestDomainHeaderMaxWidthDomain(t *testing.T) {
	maxDomain := strings.Repeat("a", circuit.DomainCap-4) + ".com"
	require.Len(t, maxDomain, circuit.DomainCap)

	msg, pub, sig := signedMessage(t, "p@"+maxDomain)
	assignment := headerAssignment(t, msg, pub, sig, maxDomain)
	require.NoError(t, solve(&circuit.DomainHeaderCircuit{}, assignment))

	truncated := maxDomain[:circuit.DomainCap-1]
	assignment = headerAssignment(t, msg, pub, sig, truncated)
	require.Error(t, solve(&circuit.DomainHeaderCircuit{}, assignment))
}

func TestDomainHeaderRejectsTamperedHeader(t *testing.T) {
	requireBaselineSolves(t)
	msg, pub, sig := signedMessage(t, testAddress)
	msg.Header[msg.Loc.ToAddress.Start] = 'x'
	assignment := headerAssignment(t, msg, pub, sig, "example.com")
	require.Error(t, solve(&circuit.DomainHeaderCircuit{}, assignment))
}

// The header-only variant ignores the body entirely, so a mutated body with
// an unchanged header must still solve.
func TestDomainHeaderIgnoresBody(t *testing.T) {
	msg, pub, sig := signedMessage(t, testAddress)
	msg.Body[0] ^= 0x01
	assignment := headerAssignment(t, msg, pub, sig, "example.com")
	require.NoError(t, solve(&circuit.DomainHeaderCircuit{}, assignment))
}
