package circuit

import (
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
)

// MembershipCircuit proves that the prover's identity key belongs to a
// registered set without revealing which entry it is, and derives a
// context-bound nullifier so an external registry can detect reuse of the
// same key under the same attestation context.
//
// All three public values are inputs; proof acceptance itself is the signal.
type MembershipCircuit struct {
	// Public inputs
	NullifierHash frontend.Variable `gnark:",public"`
	Root          frontend.Variable `gnark:",public"`
	AttestationID frontend.Variable `gnark:",public"`

	// Private inputs
	SecretKey frontend.Variable
	LeafIndex frontend.Variable
	Siblings  [MerkleDepth]frontend.Variable
}

// Define declares the circuit constraints.
func (c *MembershipCircuit) Define(api frontend.API) error {
	// 1. Public key = SecretKey * G on the embedded curve.
	curve, err := twistededwards.NewEdCurve(api, tedwards.BN254)
	if err != nil {
		return err
	}
	base := twistededwards.Point{
		X: curve.Params().Base[0],
		Y: curve.Params().Base[1],
	}
	pk := curve.ScalarMul(base, c.SecretKey)

	h, err := newPoseidonHasher(api)
	if err != nil {
		return err
	}

	// 2. Membership leaf from the public key coordinates.
	h.Write(pk.X, pk.Y)
	leaf := h.Sum()

	// 3. Recompute the root along the supplied path. Index and path are
	// private, so the verifier learns nothing about which leaf was used.
	indexBits := api.ToBinary(c.LeafIndex, MerkleDepth)
	current := leaf
	for i := 0; i < MerkleDepth; i++ {
		left := api.Select(indexBits[i], c.Siblings[i], current)
		right := api.Select(indexBits[i], current, c.Siblings[i])
		h.Reset()
		h.Write(left, right)
		current = h.Sum()
	}
	api.AssertIsEqual(current, c.Root)

	// 4. Nullifier = H(attestation context, secret key). Identical
	// (secret, context) pairs always produce the same value; different
	// contexts separate the derivation domains.
	h.Reset()
	h.Write(c.AttestationID, c.SecretKey)
	api.AssertIsEqual(h.Sum(), c.NullifierHash)

	return nil
}
