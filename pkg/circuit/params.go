package circuit

// Fixed protocol parameters. Changing any of these changes the constraint
// system shape, so they are compile-time constants rather than runtime state.
const (
	// HeaderCap is the storage capacity of the email header buffer in bytes.
	HeaderCap = 512
	// BodyCap is the storage capacity of the email body buffer in bytes.
	BodyCap = 1024
	// DomainCap is the fixed width of the public domain claim in bytes.
	DomainCap = 64
	// AddressCap is the storage capacity of an extracted email address.
	AddressCap = 128

	// RSAKeyBits is the DKIM root-of-trust modulus size.
	RSAKeyBits = 2048
	// rsaPublicExponent is the fixed DKIM verification exponent.
	rsaPublicExponent = 65537

	// MerkleDepth is the depth of the membership registry tree.
	MerkleDepth = 10

	digestLen = 32
	atSign    = '@'
)

// Header field names the circuits pin at the start of located fields.
const (
	fromFieldName = "from:"
	toFieldName   = "to:"
	dkimFieldName = "dkim-signature:"
)

// CanonicalPhrase is the single body accepted by the full domain attestation.
// The circuit compares the body digest against the digest of this phrase
// (zero-padded to BodyCap), so any other body is rejected even when its
// header-declared hash is consistent.
const CanonicalPhrase = "zkattest: this mailbox binds its domain to the enclosed signing key.\r\n"
