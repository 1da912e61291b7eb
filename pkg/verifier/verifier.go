// Package verifier checks attestation envelopes end to end: semantic claim
// checks, Groth16 verification against a public witness re-derived from the
// claims, optional DNS anchoring of the key commitment and optional
// nullifier replay tracking.
package verifier

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/rs/zerolog/log"
	"github.com/vocdoni/circom2gnark/parser"

	"github.com/provably/zkattest-go/pkg/attestation"
	"github.com/provably/zkattest-go/pkg/circuit"
	zkcrypto "github.com/provably/zkattest-go/pkg/crypto"
	"github.com/provably/zkattest-go/pkg/dns"
	"github.com/provably/zkattest-go/pkg/email"
	"github.com/provably/zkattest-go/pkg/prover"
	"github.com/provably/zkattest-go/pkg/registry"
	"github.com/provably/zkattest-go/pkg/signals"
	"github.com/provably/zkattest-go/pkg/vk"
)

type VerificationOptions struct {
	FilePath string
	KeyDir   string

	// DKIMSelector enables the DNS anchor check for domain attestations:
	// the key commitment in the proof must match the key published at
	// <selector>._domainkey.<domain>.
	DKIMSelector string

	// RedisURL enables nullifier replay tracking for membership
	// attestations.
	RedisURL     string
	NullifierTTL time.Duration

	// CircomVKPath switches membership verification to a SnarkJS proof
	// produced by an external prover. The envelope's proof payload is
	// then the snarkjs proof JSON instead of gnark hex.
	CircomVKPath string

	Verbose bool
}

type VerificationResult struct {
	Success bool
	Kind    string
	Errors  []string
	Dns     DnsResult
	Zk      ZkResult
	Details VerificationDetails
}

type VerificationDetails struct {
	Domain              string
	Address             string
	PubKeyCommitment    string
	SignatureCommitment string
	NullifierHash       string
	Root                string
	AttestationID       string
}

type DnsResult struct {
	Valid       bool
	Skipped     bool
	Error       string
	Hostname    string
	FetchTimeMs float64
}

type ZkResult struct {
	Valid       bool
	Semantic    bool
	Error       string
	ProofTimeMs float64
}

type Verifier struct {
	Options VerificationOptions
}

func NewVerifier(opts VerificationOptions) *Verifier {
	return &Verifier{Options: opts}
}

func (v *Verifier) Verify() (*VerificationResult, error) {
	env, err := attestation.Load(v.Options.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load envelope: %w", err)
	}

	res := &VerificationResult{Success: true, Kind: env.Kind, Errors: []string{}}

	switch env.Kind {
	case prover.KindDomainFull, prover.KindDomainHeader:
		v.verifyDomain(env, res)
	case prover.KindMembership:
		v.verifyMembership(env, res)
	default:
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf("unknown attestation kind %q", env.Kind))
	}
	return res, nil
}

func (v *Verifier) verifyDomain(env *attestation.Envelope, res *VerificationResult) {
	sem := signals.VerifyDomainClaims(env.Claims, env.PublicSignals)
	if !sem.AllValid {
		res.Success = false
		res.Zk = ZkResult{Valid: false, Semantic: false, Error: "semantic claim check failed"}
		res.Errors = append(res.Errors, "claims do not match attestation shape")
		return
	}

	res.Details = VerificationDetails{
		Domain:              env.Claims["domain"],
		Address:             env.Claims["address"],
		PubKeyCommitment:    env.PublicSignals[0],
		SignatureCommitment: env.PublicSignals[1],
	}

	res.Dns = v.verifyDNSAnchor(env.Claims["domain"], env.PublicSignals[0])
	if !res.Dns.Valid && !res.Dns.Skipped {
		res.Success = false
		res.Errors = append(res.Errors, "DNS key anchor check failed: "+res.Dns.Error)
	}

	res.Zk = v.verifyNativeProof(env.Kind, env.ProofHex, func() (frontend.Circuit, error) {
		return domainPublicAssignment(env.Kind, env.Claims, env.PublicSignals)
	})
	if !res.Zk.Valid {
		res.Success = false
		res.Errors = append(res.Errors, "proof invalid: "+res.Zk.Error)
	}
}

func (v *Verifier) verifyMembership(env *attestation.Envelope, res *VerificationResult) {
	sem := signals.VerifyMembershipClaims(env.Claims, env.PublicSignals)
	if !sem.AllValid {
		res.Success = false
		res.Zk = ZkResult{Valid: false, Semantic: false, Error: "semantic claim check failed"}
		res.Errors = append(res.Errors, "claims do not mirror public signals")
		return
	}

	res.Details = VerificationDetails{
		NullifierHash: env.PublicSignals[0],
		Root:          env.PublicSignals[1],
		AttestationID: env.PublicSignals[2],
	}

	if v.Options.CircomVKPath != "" {
		res.Zk = v.verifyCircomProof([]byte(env.ProofHex), env.PublicSignals)
	} else {
		res.Zk = v.verifyNativeProof(env.Kind, env.ProofHex, func() (frontend.Circuit, error) {
			return membershipPublicAssignment(env.PublicSignals)
		})
	}
	if !res.Zk.Valid {
		res.Success = false
		res.Errors = append(res.Errors, "proof invalid: "+res.Zk.Error)
		return
	}

	// Replay tracking happens only after the proof is known good, so an
	// invalid envelope cannot burn someone else's nullifier.
	if v.Options.RedisURL != "" {
		store, err := registry.NewNullifierStore(v.Options.RedisURL)
		if err != nil {
			res.Success = false
			res.Errors = append(res.Errors, "failed to connect to nullifier store: "+err.Error())
			return
		}
		defer store.Close()

		fresh, err := store.CheckAndRecord(context.Background(), env.PublicSignals[0], v.Options.NullifierTTL)
		if err != nil {
			res.Success = false
			res.Errors = append(res.Errors, "nullifier store error: "+err.Error())
			return
		}
		if !fresh {
			res.Success = false
			res.Errors = append(res.Errors, "nullifier already consumed (replay)")
		}
	}
}

// verifyDNSAnchor fetches the DKIM key for the claimed domain and checks
// its commitment against the one the proof exposes.
func (v *Verifier) verifyDNSAnchor(domain, pkCommitment string) DnsResult {
	if v.Options.DKIMSelector == "" {
		return DnsResult{Skipped: true}
	}
	hostname := fmt.Sprintf("%s._domainkey.%s", v.Options.DKIMSelector, domain)

	startTime := time.Now()
	pub, err := dns.LookupDKIMKey(v.Options.DKIMSelector, domain)
	elapsed := time.Since(startTime).Seconds() * 1000

	if err != nil {
		return DnsResult{Valid: false, Error: err.Error(), Hostname: hostname, FetchTimeMs: elapsed}
	}

	commit, err := zkcrypto.CommitLimbs(pub.N)
	if err != nil {
		return DnsResult{Valid: false, Error: "commitment derivation failed: " + err.Error(), Hostname: hostname, FetchTimeMs: elapsed}
	}
	if commit.String() != pkCommitment {
		return DnsResult{Valid: false, Error: "published key does not match proven key commitment", Hostname: hostname, FetchTimeMs: elapsed}
	}
	return DnsResult{Valid: true, Hostname: hostname, FetchTimeMs: elapsed}
}

// verifyNativeProof deserializes a gnark proof and verifies it against a
// public witness rebuilt from the envelope, never from prover-supplied
// witness bytes.
func (v *Verifier) verifyNativeProof(kind, proofHex string, assign func() (frontend.Circuit, error)) ZkResult {
	startTime := time.Now()

	proofBytes, err := hex.DecodeString(proofHex)
	if err != nil {
		return ZkResult{Valid: false, Error: "failed to decode proof hex: " + err.Error()}
	}

	ccs, err := prover.Compile(kind)
	if err != nil {
		return ZkResult{Valid: false, Error: "circuit compilation failed: " + err.Error()}
	}
	gnarkVK, err := vk.LoadCachedKey(v.Options.KeyDir, kind, ccs)
	if err != nil {
		return ZkResult{Valid: false, Error: "failed to load VK: " + err.Error()}
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return ZkResult{Valid: false, Error: "failed to deserialize proof: " + err.Error()}
	}

	assignment, err := assign()
	if err != nil {
		return ZkResult{Valid: false, Error: "public witness rebuild failed: " + err.Error()}
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return ZkResult{Valid: false, Error: "witness creation failed: " + err.Error()}
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return ZkResult{Valid: false, Error: "public witness extraction failed: " + err.Error()}
	}

	err = groth16.Verify(proof, gnarkVK, publicWitness)
	elapsed := time.Since(startTime).Seconds() * 1000
	if err != nil {
		return ZkResult{Valid: false, Error: "verification failed: " + err.Error(), ProofTimeMs: elapsed}
	}

	log.Debug().Str("kind", kind).Float64("ms", elapsed).Msg("proof verified")
	return ZkResult{Valid: true, Semantic: true, ProofTimeMs: elapsed}
}

// verifyCircomProof handles membership proofs produced by a SnarkJS prover.
func (v *Verifier) verifyCircomProof(proofJSON json.RawMessage, publicSignals []string) ZkResult {
	circomProof, err := parser.UnmarshalCircomProofJSON(proofJSON)
	if err != nil {
		return ZkResult{Valid: false, Error: "invalid circom proof JSON: " + err.Error()}
	}

	circomVk, err := vk.LoadCircomKey(v.Options.CircomVKPath)
	if err != nil {
		return ZkResult{Valid: false, Error: "failed to load VK: " + err.Error()}
	}

	gnarkProof, err := parser.ConvertCircomToGnark(circomProof, circomVk, publicSignals)
	if err != nil {
		return ZkResult{Valid: false, Error: "circom to gnark conversion failed: " + err.Error()}
	}

	startTime := time.Now()
	valid, err := parser.VerifyProof(gnarkProof)
	elapsed := time.Since(startTime).Seconds() * 1000

	if err != nil {
		return ZkResult{Valid: false, Error: "verification failed: " + err.Error()}
	}
	if !valid {
		return ZkResult{Valid: false, Error: "verification returned false"}
	}
	return ZkResult{Valid: true, Semantic: true, ProofTimeMs: elapsed}
}

// domainPublicAssignment rebuilds the public inputs of a domain circuit from
// the claims. Private fields are zeroed; only the public slice of the
// witness is used.
func domainPublicAssignment(kind string, claims map[string]string, sigs []string) (frontend.Circuit, error) {
	paddedDomain, err := email.PadDomain(claims["domain"])
	if err != nil {
		return nil, err
	}
	paddedAddr, err := email.PadAddress(claims["address"])
	if err != nil {
		return nil, err
	}
	pkCommit, ok := new(big.Int).SetString(sigs[0], 10)
	if !ok {
		return nil, fmt.Errorf("invalid public key commitment signal")
	}
	sigCommit, ok := new(big.Int).SetString(sigs[1], 10)
	if !ok {
		return nil, fmt.Errorf("invalid signature commitment signal")
	}

	if kind == prover.KindDomainFull {
		c := &circuit.DomainAttestationCircuit{
			PubKeyCommitment:    pkCommit,
			SignatureCommitment: sigCommit,
			HeaderLen:           0,
			PublicKeyN:          emulated.ValueOf[circuit.RSAMod](0),
			Signature:           emulated.ValueOf[circuit.RSAMod](0),
			DKIMField:           circuit.Sequence{Start: 0, Length: 0},
			BodyHashIndex:       0,
			FromField:           circuit.Sequence{Start: 0, Length: 0},
			FromAddress:         circuit.Sequence{Start: 0, Length: 0},
			ToField:             circuit.Sequence{Start: 0, Length: 0},
			ToAddress:           circuit.Sequence{Start: 0, Length: 0},
		}
		zeroU8(c.Header[:])
		zeroU8(c.Body[:])
		fillBytes(c.Domain[:], paddedDomain)
		fillBytes(c.RecipientAddress[:], paddedAddr)
		return c, nil
	}

	c := &circuit.DomainHeaderCircuit{
		PubKeyCommitment:    pkCommit,
		SignatureCommitment: sigCommit,
		HeaderLen:           0,
		PublicKeyN:          emulated.ValueOf[circuit.RSAMod](0),
		Signature:           emulated.ValueOf[circuit.RSAMod](0),
		ToField:             circuit.Sequence{Start: 0, Length: 0},
		ToAddress:           circuit.Sequence{Start: 0, Length: 0},
	}
	zeroU8(c.Header[:])
	fillBytes(c.Domain[:], paddedDomain)
	fillBytes(c.RecipientAddress[:], paddedAddr)
	return c, nil
}

func membershipPublicAssignment(sigs []string) (frontend.Circuit, error) {
	c := &circuit.MembershipCircuit{
		NullifierHash: fromStringV(sigs[0]),
		Root:          fromStringV(sigs[1]),
		AttestationID: fromStringV(sigs[2]),
		SecretKey:     0,
		LeafIndex:     0,
	}
	for i := range c.Siblings {
		c.Siblings[i] = 0
	}
	return c, nil
}

func fromStringV(s string) frontend.Variable {
	var i big.Int
	i.SetString(s, 10)
	return i
}

func zeroU8(dst []uints.U8) {
	for i := range dst {
		dst[i] = uints.NewU8(0)
	}
}

func fillBytes(dst []frontend.Variable, src []byte) {
	for i := range dst {
		dst[i] = src[i]
	}
}
