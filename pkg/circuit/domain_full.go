package circuit

import (
	"crypto/sha256"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha2"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/consensys/gnark/std/selector"
)

// DomainAttestationCircuit proves that a DKIM-signed, self-addressed email
// carrying the canonical body was delivered at an address on the publicly
// claimed domain. The commitments and the recipient address are public
// outputs: the circuit recomputes them and pins them to the public inputs,
// so a verifier learns the root of trust and the mailbox without seeing the
// header, body or signature.
type DomainAttestationCircuit struct {
	// Public claim
	Domain [DomainCap]frontend.Variable `gnark:",public"`

	// Public outputs
	PubKeyCommitment    frontend.Variable             `gnark:",public"`
	SignatureCommitment frontend.Variable             `gnark:",public"`
	RecipientAddress    [AddressCap]frontend.Variable `gnark:",public"`

	// Witness
	Header     [HeaderCap]uints.U8
	HeaderLen  frontend.Variable
	Body       [BodyCap]uints.U8
	PublicKeyN emulated.Element[RSAMod]
	Signature  emulated.Element[RSAMod]

	DKIMField     Sequence
	BodyHashIndex frontend.Variable
	FromField     Sequence
	FromAddress   Sequence
	ToField       Sequence
	ToAddress     Sequence
}

// Define declares the circuit constraints.
func (c *DomainAttestationCircuit) Define(api frontend.API) error {
	// 1. Declared header length stays within capacity.
	api.AssertIsLessOrEqual(c.HeaderLen, HeaderCap)

	// 2. DKIM signature over the header buffer.
	f, err := emulated.NewField[RSAMod](api)
	if err != nil {
		return err
	}
	hh, err := sha2.New(api)
	if err != nil {
		return err
	}
	hh.Write(c.Header[:])
	headerDigest := hh.Sum()
	assertRSASignature(api, f, &c.Signature, &c.PublicKeyN, headerDigest)

	// Header reads shifted by up to a full address stay inside the table.
	table := byteTable(c.Header[:], AddressCap)

	// 3. Self-addressed mail only: from == to.
	from := extractAddress(api, table, c.FromField, c.FromAddress, fromFieldName)
	to := extractAddress(api, table, c.ToField, c.ToAddress, toFieldName)
	for i := range from {
		api.AssertIsEqual(from[i], to[i])
	}

	// 4. Header-declared body hash matches the recomputed body digest.
	bh, err := sha2.New(api)
	if err != nil {
		return err
	}
	bh.Write(c.Body[:])
	bodyDigest := bh.Sum()

	assertSequenceInBounds(api, c.DKIMField, HeaderCap)
	assertPrefixAt(api, table, c.DKIMField.Start, dkimFieldName)
	api.AssertIsLessOrEqual(api.Add(c.BodyHashIndex, digestLen), c.DKIMField.Length)
	digestStart := api.Add(c.DKIMField.Start, c.BodyHashIndex)
	for i := 0; i < digestLen; i++ {
		b := selector.Mux(api, api.Add(digestStart, i), table...)
		api.AssertIsEqual(b, bodyDigest[i].Val)
	}

	// 5. The body is pinned to the canonical phrase.
	phraseDigest := canonicalPhraseDigest()
	for i := 0; i < digestLen; i++ {
		api.AssertIsEqual(bodyDigest[i].Val, phraseDigest[i])
	}

	// 6. Claimed domain must be the window right after the '@'.
	if err := AssertDomainSuffix(api, to, c.Domain[:]); err != nil {
		return err
	}

	// 7. Public outputs.
	pkCommit, err := commitLimbs(api, c.PublicKeyN.Limbs)
	if err != nil {
		return err
	}
	sigCommit, err := commitLimbs(api, c.Signature.Limbs)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.PubKeyCommitment, pkCommit)
	api.AssertIsEqual(c.SignatureCommitment, sigCommit)
	for i := range to {
		api.AssertIsEqual(c.RecipientAddress[i], to[i])
	}

	return nil
}

// commitLimbs binds an emulated value to a single field element. Poseidon2
// over the limb decomposition plays the role of the root-of-trust commitment.
func commitLimbs(api frontend.API, limbs []frontend.Variable) (frontend.Variable, error) {
	h, err := newPoseidonHasher(api)
	if err != nil {
		return nil, err
	}
	h.Write(limbs...)
	return h.Sum(), nil
}

// canonicalPhraseDigest is the SHA-256 digest of the canonical phrase padded
// to the body capacity, fixed at compile time.
func canonicalPhraseDigest() [digestLen]byte {
	var padded [BodyCap]byte
	copy(padded[:], CanonicalPhrase)
	return sha256.Sum256(padded[:])
}
