// Package prover compiles the attestation circuits, manages Groth16 key
// material on disk and turns witness data into serialized proofs.
package prover

import (
	"bytes"
	"crypto/rsa"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/rs/zerolog/log"

	"github.com/provably/zkattest-go/pkg/circuit"
	zkcrypto "github.com/provably/zkattest-go/pkg/crypto"
	"github.com/provably/zkattest-go/pkg/email"
)

// Attestation kinds, also used as key-cache file stems.
const (
	KindDomainFull   = "domain-full"
	KindDomainHeader = "domain-header"
	KindMembership   = "membership"
)

// Proof bundles a serialized Groth16 proof with the public signals and the
// claims a verifier re-derives the public witness from.
type Proof struct {
	Kind          string
	ProofHex      string
	PublicSignals []string
	Claims        map[string]string
}

// BenchmarkResult holds timing statistics.
type BenchmarkResult struct {
	CompileTimeMs float64
	WitnessTimeMs float64
	ProveTimeMs   float64
}

// Prover handles proof generation. Key material is cached under keyDir so
// repeated runs reuse one trusted setup per circuit kind.
type Prover struct {
	keyDir string
}

func NewProver(keyDir string) *Prover {
	return &Prover{keyDir: keyDir}
}

// Compile builds the constraint system for a circuit kind.
func Compile(kind string) (constraint.ConstraintSystem, error) {
	var circ frontend.Circuit
	switch kind {
	case KindDomainFull:
		circ = &circuit.DomainAttestationCircuit{}
	case KindDomainHeader:
		circ = &circuit.DomainHeaderCircuit{}
	case KindMembership:
		circ = &circuit.MembershipCircuit{}
	default:
		return nil, fmt.Errorf("unknown circuit kind %q", kind)
	}
	log.Debug().Str("kind", kind).Msg("compiling circuit")
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circ)
}

// loadOrSetupKeys loads cached keys for a kind or runs setup and caches them.
func (p *Prover) loadOrSetupKeys(kind string, ccs constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pkPath := filepath.Join(p.keyDir, kind+".pk")
	vkPath := filepath.Join(p.keyDir, kind+".vk")

	if _, err := os.Stat(pkPath); err == nil {
		if _, err := os.Stat(vkPath); err == nil {
			pkFile, err := os.Open(pkPath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open pk file: %w", err)
			}
			defer pkFile.Close()

			vkFile, err := os.Open(vkPath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open vk file: %w", err)
			}
			defer vkFile.Close()

			pk := groth16.NewProvingKey(ecc.BN254)
			vk := groth16.NewVerifyingKey(ecc.BN254)
			if _, err := pk.ReadFrom(pkFile); err != nil {
				return nil, nil, fmt.Errorf("failed to read pk: %w", err)
			}
			if _, err := vk.ReadFrom(vkFile); err != nil {
				return nil, nil, fmt.Errorf("failed to read vk: %w", err)
			}
			return pk, vk, nil
		}
	}

	log.Info().Str("kind", kind).Msg("no cached keys, running setup")
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("setup failed: %w", err)
	}

	if p.keyDir != "" {
		if err := os.MkdirAll(p.keyDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create key dir: %w", err)
		}
	}
	pkFile, err := os.Create(pkPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pk file: %w", err)
	}
	defer pkFile.Close()
	vkFile, err := os.Create(vkPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create vk file: %w", err)
	}
	defer vkFile.Close()

	if _, err := pk.WriteTo(pkFile); err != nil {
		return nil, nil, fmt.Errorf("failed to write pk: %w", err)
	}
	if _, err := vk.WriteTo(vkFile); err != nil {
		return nil, nil, fmt.Errorf("failed to write vk: %w", err)
	}
	return pk, vk, nil
}

// ProveDomainFull generates a full domain attestation for a signed message.
func (p *Prover) ProveDomainFull(msg *email.Message, pub *rsa.PublicKey, sig []byte, domain string) (*Proof, error) {
	assignment, claims, signals, err := domainAssignment(msg, pub, sig, domain, true)
	if err != nil {
		return nil, err
	}
	proofHex, err := p.prove(KindDomainFull, assignment)
	if err != nil {
		return nil, err
	}
	return &Proof{Kind: KindDomainFull, ProofHex: proofHex, PublicSignals: signals, Claims: claims}, nil
}

// ProveDomainHeader generates the header-only variant.
func (p *Prover) ProveDomainHeader(msg *email.Message, pub *rsa.PublicKey, sig []byte, domain string) (*Proof, error) {
	assignment, claims, signals, err := domainAssignment(msg, pub, sig, domain, false)
	if err != nil {
		return nil, err
	}
	proofHex, err := p.prove(KindDomainHeader, assignment)
	if err != nil {
		return nil, err
	}
	return &Proof{Kind: KindDomainHeader, ProofHex: proofHex, PublicSignals: signals, Claims: claims}, nil
}

// MembershipWitness carries the private membership inputs.
type MembershipWitness struct {
	SecretKey *big.Int
	LeafIndex int
	Siblings  []fr.Element
}

// ProveMembership generates an anonymous membership attestation.
func (p *Prover) ProveMembership(w *MembershipWitness, root, attestationID fr.Element) (*Proof, error) {
	if len(w.Siblings) != circuit.MerkleDepth {
		return nil, fmt.Errorf("expected %d siblings, got %d", circuit.MerkleDepth, len(w.Siblings))
	}
	nullifier, err := zkcrypto.Nullifier(&attestationID, w.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("nullifier derivation: %w", err)
	}

	assignment := &circuit.MembershipCircuit{
		NullifierHash: nullifier.BigInt(new(big.Int)),
		Root:          root.BigInt(new(big.Int)),
		AttestationID: attestationID.BigInt(new(big.Int)),
		SecretKey:     w.SecretKey,
		LeafIndex:     w.LeafIndex,
	}
	for i := range w.Siblings {
		assignment.Siblings[i] = w.Siblings[i].BigInt(new(big.Int))
	}

	proofHex, err := p.prove(KindMembership, assignment)
	if err != nil {
		return nil, err
	}
	return &Proof{
		Kind:          KindMembership,
		ProofHex:      proofHex,
		PublicSignals: []string{nullifier.String(), root.String(), attestationID.String()},
		Claims: map[string]string{
			"nullifierHash": nullifier.String(),
			"root":          root.String(),
			"attestationId": attestationID.String(),
		},
	}, nil
}

// prove runs compile, setup/load, witness and proof generation, then
// self-verifies before serializing.
func (p *Prover) prove(kind string, assignment frontend.Circuit) (string, error) {
	ccs, err := Compile(kind)
	if err != nil {
		return "", fmt.Errorf("circuit compilation failed: %w", err)
	}
	pk, vk, err := p.loadOrSetupKeys(kind, ccs)
	if err != nil {
		return "", fmt.Errorf("key setup failed: %w", err)
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return "", fmt.Errorf("witness creation failed: %w", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return "", fmt.Errorf("public witness creation failed: %w", err)
	}

	start := time.Now()
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return "", fmt.Errorf("proving failed: %w", err)
	}
	log.Debug().Str("kind", kind).Dur("elapsed", time.Since(start)).Msg("proof generated")

	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return "", fmt.Errorf("generated proof failed self-verification: %w", err)
	}

	buf := new(bytes.Buffer)
	if _, err := proof.WriteRawTo(buf); err != nil {
		return "", fmt.Errorf("proof serialization failed: %w", err)
	}
	return fmt.Sprintf("%x", buf.Bytes()), nil
}

// BenchmarkMembership runs the native membership prover and returns timing
// statistics alongside the proof.
func (p *Prover) BenchmarkMembership(w *MembershipWitness, root, attestationID fr.Element) (*BenchmarkResult, *Proof, error) {
	result := &BenchmarkResult{}

	start := time.Now()
	ccs, err := Compile(KindMembership)
	if err != nil {
		return nil, nil, fmt.Errorf("circuit compilation failed: %w", err)
	}
	result.CompileTimeMs = float64(time.Since(start).Microseconds()) / 1000.0

	pk, _, err := p.loadOrSetupKeys(KindMembership, ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("key setup failed: %w", err)
	}

	nullifier, err := zkcrypto.Nullifier(&attestationID, w.SecretKey)
	if err != nil {
		return nil, nil, err
	}
	assignment := &circuit.MembershipCircuit{
		NullifierHash: nullifier.BigInt(new(big.Int)),
		Root:          root.BigInt(new(big.Int)),
		AttestationID: attestationID.BigInt(new(big.Int)),
		SecretKey:     w.SecretKey,
		LeafIndex:     w.LeafIndex,
	}
	for i := range w.Siblings {
		assignment.Siblings[i] = w.Siblings[i].BigInt(new(big.Int))
	}

	start = time.Now()
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("witness creation failed: %w", err)
	}
	result.WitnessTimeMs = float64(time.Since(start).Microseconds()) / 1000.0

	start = time.Now()
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return nil, nil, fmt.Errorf("proving failed: %w", err)
	}
	result.ProveTimeMs = float64(time.Since(start).Microseconds()) / 1000.0

	buf := new(bytes.Buffer)
	if _, err := proof.WriteRawTo(buf); err != nil {
		return nil, nil, err
	}
	return result, &Proof{
		Kind:          KindMembership,
		ProofHex:      fmt.Sprintf("%x", buf.Bytes()),
		PublicSignals: []string{nullifier.String(), root.String(), attestationID.String()},
	}, nil
}

// domainAssignment assembles the witness for either domain variant.
func domainAssignment(msg *email.Message, pub *rsa.PublicKey, sig []byte, domain string, full bool) (frontend.Circuit, map[string]string, []string, error) {
	if pub.E != 65537 {
		return nil, nil, nil, fmt.Errorf("unsupported public exponent %d", pub.E)
	}
	if pub.N.BitLen() > circuit.RSAKeyBits {
		return nil, nil, nil, fmt.Errorf("modulus exceeds %d bits", circuit.RSAKeyBits)
	}

	addr := string(msg.Header[msg.Loc.ToAddress.Start : msg.Loc.ToAddress.Start+msg.Loc.ToAddress.Length])
	paddedAddr, err := email.PadAddress(addr)
	if err != nil {
		return nil, nil, nil, err
	}
	paddedDomain, err := email.PadDomain(domain)
	if err != nil {
		return nil, nil, nil, err
	}

	sigInt := new(big.Int).SetBytes(sig)
	pkCommit, err := zkcrypto.CommitLimbs(pub.N)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("public key commitment: %w", err)
	}
	sigCommit, err := zkcrypto.CommitLimbs(sigInt)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("signature commitment: %w", err)
	}

	claims := map[string]string{"domain": domain, "address": addr}
	signals := []string{pkCommit.String(), sigCommit.String()}

	if full {
		c := &circuit.DomainAttestationCircuit{
			PubKeyCommitment:    pkCommit.BigInt(new(big.Int)),
			SignatureCommitment: sigCommit.BigInt(new(big.Int)),
			HeaderLen:           msg.HeaderLen,
			PublicKeyN:          emulated.ValueOf[circuit.RSAMod](pub.N),
			Signature:           emulated.ValueOf[circuit.RSAMod](sigInt),
			DKIMField:           seqVar(msg.Loc.DKIMField),
			BodyHashIndex:       msg.Loc.BodyHashIndex,
			FromField:           seqVar(msg.Loc.FromField),
			FromAddress:         seqVar(msg.Loc.FromAddress),
			ToField:             seqVar(msg.Loc.ToField),
			ToAddress:           seqVar(msg.Loc.ToAddress),
		}
		fillU8(c.Header[:], msg.Header)
		fillU8(c.Body[:], msg.Body)
		fillBytes(c.Domain[:], paddedDomain)
		fillBytes(c.RecipientAddress[:], paddedAddr)
		return c, claims, signals, nil
	}

	c := &circuit.DomainHeaderCircuit{
		PubKeyCommitment:    pkCommit.BigInt(new(big.Int)),
		SignatureCommitment: sigCommit.BigInt(new(big.Int)),
		HeaderLen:           msg.HeaderLen,
		PublicKeyN:          emulated.ValueOf[circuit.RSAMod](pub.N),
		Signature:           emulated.ValueOf[circuit.RSAMod](sigInt),
		ToField:             seqVar(msg.Loc.ToField),
		ToAddress:           seqVar(msg.Loc.ToAddress),
	}
	fillU8(c.Header[:], msg.Header)
	fillBytes(c.Domain[:], paddedDomain)
	fillBytes(c.RecipientAddress[:], paddedAddr)
	return c, claims, signals, nil
}

func seqVar(s email.Sequence) circuit.Sequence {
	return circuit.Sequence{Start: s.Start, Length: s.Length}
}

func fillU8(dst []uints.U8, src []byte) {
	for i := range dst {
		dst[i] = uints.NewU8(src[i])
	}
}

func fillBytes(dst []frontend.Variable, src []byte) {
	for i := range dst {
		dst[i] = src[i]
	}
}
