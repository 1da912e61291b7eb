package prover_test

import (
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provably/zkattest-go/pkg/attestation"
	"github.com/provably/zkattest-go/pkg/circuit"
	zkcrypto "github.com/provably/zkattest-go/pkg/crypto"
	"github.com/provably/zkattest-go/pkg/prover"
	"github.com/provably/zkattest-go/pkg/verifier"
)

func membershipWitness(t *testing.T) (*prover.MembershipWitness, fr.Element, fr.Element) {
	t.Helper()

	secret, err := zkcrypto.GenerateSecretKey()
	require.NoError(t, err)
	x, y := zkcrypto.DerivePublicKey(secret)
	leaf, err := zkcrypto.MembershipLeaf(x, y)
	require.NoError(t, err)

	tree := zkcrypto.NewTree(circuit.MerkleDepth)
	index, err := tree.Insert(*leaf)
	require.NoError(t, err)
	root, err := tree.Root()
	require.NoError(t, err)
	siblings, err := tree.Path(index)
	require.NoError(t, err)

	var contextID fr.Element
	contextID.SetBytes(zkcrypto.Sha256([]byte("integration-test")))

	return &prover.MembershipWitness{
		SecretKey: secret,
		LeafIndex: index,
		Siblings:  siblings,
	}, root, contextID
}

// End to end: prove membership natively, write the envelope, verify it
// against the same cached key material.
func TestMembershipProveVerifyRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	keyDir := t.TempDir()

	w, root, contextID := membershipWitness(t)
	p := prover.NewProver(keyDir)
	proof, err := p.ProveMembership(w, root, contextID)
	require.NoError(t, err)

	require.Equal(t, prover.KindMembership, proof.Kind)
	require.Len(t, proof.PublicSignals, 3)
	assert.Equal(t, proof.Claims["nullifierHash"], proof.PublicSignals[0])
	assert.Equal(t, proof.Claims["root"], proof.PublicSignals[1])

	envPath := filepath.Join(keyDir, "attestation.zka")
	env := &attestation.Envelope{
		Kind:          proof.Kind,
		ProofHex:      proof.ProofHex,
		PublicSignals: proof.PublicSignals,
		Claims:        proof.Claims,
	}
	require.NoError(t, env.Save(envPath))

	v := verifier.NewVerifier(verifier.VerificationOptions{
		FilePath: envPath,
		KeyDir:   keyDir,
	})
	res, err := v.Verify()
	require.NoError(t, err)
	assert.True(t, res.Success, "errors: %v", res.Errors)
	assert.True(t, res.Zk.Valid)
}

// A tampered public signal must not verify even when the claims are kept
// consistent with it.
func TestMembershipVerifyRejectsTamperedSignals(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	keyDir := t.TempDir()

	w, root, contextID := membershipWitness(t)
	p := prover.NewProver(keyDir)
	proof, err := p.ProveMembership(w, root, contextID)
	require.NoError(t, err)

	proof.PublicSignals[0] = "12345"
	proof.Claims["nullifierHash"] = "12345"

	envPath := filepath.Join(keyDir, "tampered.zka")
	env := &attestation.Envelope{
		Kind:          proof.Kind,
		ProofHex:      proof.ProofHex,
		PublicSignals: proof.PublicSignals,
		Claims:        proof.Claims,
	}
	require.NoError(t, env.Save(envPath))

	v := verifier.NewVerifier(verifier.VerificationOptions{
		FilePath: envPath,
		KeyDir:   keyDir,
	})
	res, err := v.Verify()
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Zk.Valid)
}

func TestProveMembershipRejectsBadSiblingCount(t *testing.T) {
	w, root, contextID := membershipWitness(t)
	w.Siblings = w.Siblings[:circuit.MerkleDepth-1]

	p := prover.NewProver(t.TempDir())
	_, err := p.ProveMembership(w, root, contextID)
	assert.Error(t, err)
}

func TestCompileUnknownKind(t *testing.T) {
	_, err := prover.Compile("no-such-circuit")
	assert.Error(t, err)
}
