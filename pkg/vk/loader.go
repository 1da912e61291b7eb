package vk

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/vocdoni/circom2gnark/parser"
)

// LoadCircomKey loads a SnarkJS JSON verification key, used for membership
// proofs produced by browser provers.
func LoadCircomKey(path string) (*parser.CircomVerificationKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read VK file: %w", err)
	}

	circomVk, err := parser.UnmarshalCircomVerificationKeyJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal circom VK: %w", err)
	}
	return circomVk, nil
}

// LoadCachedKey loads the cached verification key for a circuit kind, or
// runs setup and caches it when none exists. The cache layout matches the
// prover's, so a verifier pointed at the prover's key directory shares its
// trusted setup.
func LoadCachedKey(keyDir, kind string, ccs constraint.ConstraintSystem) (groth16.VerifyingKey, error) {
	vkPath := filepath.Join(keyDir, kind+".vk")

	if _, err := os.Stat(vkPath); err == nil {
		return LoadBinaryKey(vkPath)
	}

	// First run: generate keys. A proof made against a different setup
	// will not verify against this key.
	_, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	if keyDir != "" {
		if err := os.MkdirAll(keyDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create key dir: %w", err)
		}
	}
	vkFile, err := os.Create(vkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create vk file: %w", err)
	}
	defer vkFile.Close()

	if _, err := vk.WriteTo(vkFile); err != nil {
		return nil, fmt.Errorf("failed to write vk: %w", err)
	}
	return vk, nil
}

// LoadBinaryKey loads a gnark native binary verification key.
func LoadBinaryKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open VK file: %w", err)
	}
	defer f.Close()

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("failed to parse binary VK: %w", err)
	}
	return vk, nil
}
