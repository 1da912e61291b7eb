package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

// limb layout of the in-circuit emulated 4096-bit elements.
const (
	EmulatedLimbBits  = 64
	EmulatedLimbCount = 64
)

// Hash computes the Poseidon2 Merkle-Damgard hash of field elements. It is
// the host counterpart of the in-circuit hasher: identical inputs yield the
// value the circuits recompute.
func Hash(inputs ...*fr.Element) (*fr.Element, error) {
	h := poseidon2.NewMerkleDamgardHasher()
	for _, in := range inputs {
		b := in.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, fmt.Errorf("poseidon2 write: %w", err)
		}
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return &out, nil
}

// CommitLimbs splits v into 64-bit limbs, little-endian and zero-padded to
// the emulated limb count, and hashes them. This mirrors the circuits'
// commitment over emulated element limbs, so the result can be compared
// against the proof's public commitment signals.
func CommitLimbs(v *big.Int) (*fr.Element, error) {
	if v.Sign() < 0 || v.BitLen() > EmulatedLimbBits*EmulatedLimbCount {
		return nil, fmt.Errorf("value out of limb range: %d bits", v.BitLen())
	}
	mask := new(big.Int).Lsh(big.NewInt(1), EmulatedLimbBits)
	mask.Sub(mask, big.NewInt(1))

	rest := new(big.Int).Set(v)
	limb := new(big.Int)
	limbs := make([]*fr.Element, EmulatedLimbCount)
	for i := 0; i < EmulatedLimbCount; i++ {
		limb.And(rest, mask)
		var e fr.Element
		e.SetBigInt(limb)
		limbs[i] = &e
		rest.Rsh(rest, EmulatedLimbBits)
	}
	return Hash(limbs...)
}

// DerivePublicKey multiplies the embedded curve's base point by the secret
// scalar, yielding the coordinates the membership leaf is hashed from.
func DerivePublicKey(secret *big.Int) (x, y fr.Element) {
	ed := twistededwards.GetEdwardsCurve()
	var p twistededwards.PointAffine
	p.ScalarMultiplication(&ed.Base, secret)
	return p.X, p.Y
}

// MembershipLeaf hashes a public key into its registry leaf.
func MembershipLeaf(x, y fr.Element) (*fr.Element, error) {
	return Hash(&x, &y)
}

// Nullifier derives the context-bound nullifier H(attestationID, secret).
func Nullifier(attestationID *fr.Element, secret *big.Int) (*fr.Element, error) {
	var s fr.Element
	s.SetBigInt(secret)
	return Hash(attestationID, &s)
}

// GenerateSecretKey draws a cryptographically secure scalar below the
// embedded curve's subgroup order.
func GenerateSecretKey() (*big.Int, error) {
	ed := twistededwards.GetEdwardsCurve()
	return rand.Int(rand.Reader, &ed.Order)
}

// Sha256 returns the byte slice of the SHA256 hash of the input.
func Sha256(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// Sha256Hex returns the hex string of the SHA256 hash of the input.
func Sha256Hex(data []byte) string {
	return hex.EncodeToString(Sha256(data))
}

// ElementFromString parses a decimal public-signal string.
func ElementFromString(s string) (*fr.Element, error) {
	var e fr.Element
	if _, err := e.SetString(s); err != nil {
		return nil, fmt.Errorf("invalid field element %q: %w", s, err)
	}
	return &e, nil
}
