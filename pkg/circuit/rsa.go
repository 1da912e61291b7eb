package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/emulated/emparams"
	"github.com/consensys/gnark/std/math/uints"
)

// RSAMod is the emulated parameter set holding 2048-bit DKIM values. The
// 4096-bit modulus leaves headroom for the modular reduction witness.
type RSAMod = emparams.Mod1e4096

// sha256DigestInfo is the DER prefix of the PKCS#1 v1.5 DigestInfo for
// SHA-256 (RFC 8017, section 9.2).
var sha256DigestInfo = []byte{
	0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86,
	0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05,
	0x00, 0x04, 0x20,
}

// assertRSASignature enforces sig^65537 mod N == EMSA-PKCS1-v1_5(digest).
// The exponent is fixed in-circuit, so only the modulus and signature are
// prover-supplied. Any bit flip in the signature, modulus or digest leaves
// the constraint system unsatisfiable.
func assertRSASignature(api frontend.API, f *emulated.Field[RSAMod], sig, n *emulated.Element[RSAMod], digest []uints.U8) {
	// sig^65537 = sig^(2^16) * sig
	acc := sig
	for i := 0; i < 16; i++ {
		acc = f.ModMul(acc, acc, n)
	}
	acc = f.ModMul(acc, sig, n)

	em := encodePKCS1v15(api, f, digest)
	f.AssertIsEqual(acc, em)
}

// encodePKCS1v15 builds the expected encoded message
//
//	0x00 || 0x01 || PS (0xff..) || 0x00 || DigestInfo || digest
//
// as an emulated element from its little-endian bit decomposition. All bytes
// except the digest are constants, so only 256 witness bits enter the
// recomposition.
func encodePKCS1v15(api frontend.API, f *emulated.Field[RSAMod], digest []uints.U8) *emulated.Element[RSAMod] {
	const emLen = RSAKeyBits / 8
	psLen := emLen - 3 - len(sha256DigestInfo) - digestLen

	bits := make([]frontend.Variable, RSAKeyBits)
	// Byte k of the big-endian encoding occupies little-endian bits
	// [(emLen-1-k)*8, (emLen-1-k)*8+8), least significant bit first.
	setConst := func(k int, b byte) {
		off := (emLen - 1 - k) * 8
		for j := 0; j < 8; j++ {
			bits[off+j] = (b >> j) & 1
		}
	}
	setVar := func(k int, b uints.U8) {
		off := (emLen - 1 - k) * 8
		bb := api.ToBinary(b.Val, 8)
		copy(bits[off:off+8], bb)
	}

	setConst(0, 0x00)
	setConst(1, 0x01)
	for i := 0; i < psLen; i++ {
		setConst(2+i, 0xff)
	}
	setConst(2+psLen, 0x00)
	for i, b := range sha256DigestInfo {
		setConst(3+psLen+i, b)
	}
	for i := 0; i < digestLen; i++ {
		setVar(3+psLen+len(sha256DigestInfo)+i, digest[i])
	}

	return f.FromBits(bits...)
}
