package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha2"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
)

// DomainHeaderCircuit is the reduced domain attestation: it verifies the
// DKIM signature and the recipient domain without touching the body. Use it
// when binding to the canonical body is unnecessary; it carries the same
// public output shape as the full variant at a fraction of the constraints.
type DomainHeaderCircuit struct {
	// Public claim
	Domain [DomainCap]frontend.Variable `gnark:",public"`

	// Public outputs
	PubKeyCommitment    frontend.Variable             `gnark:",public"`
	SignatureCommitment frontend.Variable             `gnark:",public"`
	RecipientAddress    [AddressCap]frontend.Variable `gnark:",public"`

	// Witness
	Header     [HeaderCap]uints.U8
	HeaderLen  frontend.Variable
	PublicKeyN emulated.Element[RSAMod]
	Signature  emulated.Element[RSAMod]

	ToField   Sequence
	ToAddress Sequence
}

// Define declares the circuit constraints.
func (c *DomainHeaderCircuit) Define(api frontend.API) error {
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
	assertRSASignature(api, f, &c.Signature, &c.PublicKeyN, hh.Sum())

	// 3. Recipient address and domain suffix.
	table := byteTable(c.Header[:], AddressCap)
	to := extractAddress(api, table, c.ToField, c.ToAddress, toFieldName)
	if err := AssertDomainSuffix(api, to, c.Domain[:]); err != nil {
		return err
	}

	// 4. Public outputs.
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
