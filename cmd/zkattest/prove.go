package main

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/spf13/cobra"

	"github.com/provably/zkattest-go/pkg/attestation"
	"github.com/provably/zkattest-go/pkg/circuit"
	zkcrypto "github.com/provably/zkattest-go/pkg/crypto"
	"github.com/provably/zkattest-go/pkg/email"
	"github.com/provably/zkattest-go/pkg/prover"
)

var (
	address     string
	rsaKeyPath  string
	headerOnly  bool
	outFile     string
	secretStr   string
	membersPath string
	attestID    string
)

var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Generate an attestation envelope",
}

var proveEmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Prove control of a DKIM-signed mailbox domain",
	Run: func(cmd *cobra.Command, args []string) {
		if address == "" {
			fmt.Println("Error: --address is required")
			os.Exit(1)
		}

		priv, err := loadOrGenerateRSAKey(rsaKeyPath)
		if err != nil {
			fmt.Printf("Error loading RSA key: %v\n", err)
			os.Exit(1)
		}

		domain, err := email.DomainOf(address)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		msg, err := email.Compose(address)
		if err != nil {
			fmt.Printf("Error composing message: %v\n", err)
			os.Exit(1)
		}
		sig, err := email.Sign(priv, msg.Header)
		if err != nil {
			fmt.Printf("Error signing message: %v\n", err)
			os.Exit(1)
		}

		p := prover.NewProver(keyDir)
		var proof *prover.Proof
		if headerOnly {
			proof, err = p.ProveDomainHeader(msg, &priv.PublicKey, sig, domain)
		} else {
			proof, err = p.ProveDomainFull(msg, &priv.PublicKey, sig, domain)
		}
		if err != nil {
			fmt.Printf("Error generating proof: %v\n", err)
			os.Exit(1)
		}

		if err := saveEnvelope(proof, outFile); err != nil {
			fmt.Printf("Error writing envelope: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Attestation for domain %q written to %s\n", domain, outFile)
	},
}

var proveMembershipCmd = &cobra.Command{
	Use:   "membership",
	Short: "Prove anonymous membership in a key registry",
	Long: `Prove that the public key derived from --secret is a leaf of the
registry built from --members, bound to the context named by
--attestation-id. The members file holds one decimal leaf value per line;
the prover's own leaf is appended.`,
	Run: func(cmd *cobra.Command, args []string) {
		if attestID == "" {
			fmt.Println("Error: --attestation-id is required")
			os.Exit(1)
		}

		secret, err := resolveSecret(secretStr)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		tree, err := loadRegistry(membersPath)
		if err != nil {
			fmt.Printf("Error loading members file: %v\n", err)
			os.Exit(1)
		}

		x, y := zkcrypto.DerivePublicKey(secret)
		leaf, err := zkcrypto.MembershipLeaf(x, y)
		if err != nil {
			fmt.Printf("Error deriving leaf: %v\n", err)
			os.Exit(1)
		}
		index, err := tree.Insert(*leaf)
		if err != nil {
			fmt.Printf("Error inserting leaf: %v\n", err)
			os.Exit(1)
		}
		root, err := tree.Root()
		if err != nil {
			fmt.Printf("Error computing root: %v\n", err)
			os.Exit(1)
		}
		siblings, err := tree.Path(index)
		if err != nil {
			fmt.Printf("Error computing path: %v\n", err)
			os.Exit(1)
		}

		// The context string is hashed into the field so arbitrary ids
		// stay representable.
		var contextID fr.Element
		contextID.SetBytes(zkcrypto.Sha256([]byte(attestID)))

		p := prover.NewProver(keyDir)
		proof, err := p.ProveMembership(&prover.MembershipWitness{
			SecretKey: secret,
			LeafIndex: index,
			Siblings:  siblings,
		}, root, contextID)
		if err != nil {
			fmt.Printf("Error generating proof: %v\n", err)
			os.Exit(1)
		}

		if err := saveEnvelope(proof, outFile); err != nil {
			fmt.Printf("Error writing envelope: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Membership attestation written to %s\n", outFile)
		fmt.Printf("Nullifier: %s\n", proof.PublicSignals[0])
		fmt.Printf("Root:      %s\n", proof.PublicSignals[1])
	},
}

func saveEnvelope(proof *prover.Proof, path string) error {
	env := &attestation.Envelope{
		Kind:          proof.Kind,
		ProofHex:      proof.ProofHex,
		PublicSignals: proof.PublicSignals,
		Claims:        proof.Claims,
	}
	return env.Save(path)
}

func loadOrGenerateRSAKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		fmt.Println("No --rsa-key provided. Generating an ephemeral 2048-bit key...")
		return rsa.GenerateKey(rand.Reader, 2048)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s is not PEM", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unsupported key format: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s does not hold an RSA key", path)
	}
	return key, nil
}

func resolveSecret(s string) (*big.Int, error) {
	if s == "" {
		fmt.Println("No --secret provided. Generating a secure random scalar...")
		secret, err := zkcrypto.GenerateSecretKey()
		if err != nil {
			return nil, err
		}
		fmt.Printf("Secret: %s\n", secret.String())
		return secret, nil
	}
	secret, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal secret")
	}
	return secret, nil
}

// loadRegistry reads a members file of decimal leaf values, one per line.
// An empty path yields an empty registry.
func loadRegistry(path string) (*zkcrypto.Tree, error) {
	tree := zkcrypto.NewTree(circuit.MerkleDepth)
	if path == "" {
		return tree, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		leaf, err := zkcrypto.ElementFromString(line)
		if err != nil {
			return nil, err
		}
		if _, err := tree.Insert(*leaf); err != nil {
			return nil, err
		}
	}
	return tree, scanner.Err()
}

func init() {
	rootCmd.AddCommand(proveCmd)
	proveCmd.AddCommand(proveEmailCmd)
	proveCmd.AddCommand(proveMembershipCmd)

	proveEmailCmd.Flags().StringVar(&address, "address", "", "mailbox address to attest (user@domain)")
	proveEmailCmd.Flags().StringVar(&rsaKeyPath, "rsa-key", "", "PEM RSA private key; generated if omitted")
	proveEmailCmd.Flags().BoolVar(&headerOnly, "header-only", false, "skip body and sender checks")
	proveEmailCmd.Flags().StringVar(&outFile, "out", "attestation.zka", "output envelope path")

	proveMembershipCmd.Flags().StringVar(&secretStr, "secret", "", "member secret scalar (decimal)")
	proveMembershipCmd.Flags().StringVar(&membersPath, "members", "", "registry file, one decimal leaf per line")
	proveMembershipCmd.Flags().StringVar(&attestID, "attestation-id", "", "context string the nullifier is bound to")
	proveMembershipCmd.Flags().StringVar(&outFile, "out", "attestation.zka", "output envelope path")
}
