package crypto

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

// OPRFEvaluator is the registry side of the registration OPRF: a joining
// member submits a blinded curve point, the registry multiplies it by its
// private evaluation key and returns the result. The member unblinds the
// response to obtain a key-bound PRF output the registry never sees in the
// clear.
type OPRFEvaluator struct {
	key *big.Int
}

// NewOPRFEvaluator draws a fresh evaluation key.
func NewOPRFEvaluator() (*OPRFEvaluator, error) {
	key, err := GenerateSecretKey()
	if err != nil {
		return nil, err
	}
	return &OPRFEvaluator{key: key}, nil
}

// NewOPRFEvaluatorFromKey wraps a persisted evaluation key. The key must
// stay fixed across registrations or previously issued outputs become
// unverifiable.
func NewOPRFEvaluatorFromKey(key *big.Int) (*OPRFEvaluator, error) {
	ed := twistededwards.GetEdwardsCurve()
	if key.Sign() <= 0 || key.Cmp(&ed.Order) >= 0 {
		return nil, fmt.Errorf("evaluation key outside scalar range")
	}
	return &OPRFEvaluator{key: new(big.Int).Set(key)}, nil
}

// Evaluate multiplies a hex-encoded compressed blinded point by the
// evaluation key and returns the compressed result in hex.
func (e *OPRFEvaluator) Evaluate(blindedHex string) (string, error) {
	raw, err := hex.DecodeString(blindedHex)
	if err != nil {
		return "", fmt.Errorf("invalid hex in blinded input: %w", err)
	}

	var p twistededwards.PointAffine
	if _, err := p.SetBytes(raw); err != nil {
		return "", fmt.Errorf("invalid blinded point: %w", err)
	}
	if !p.IsOnCurve() {
		return "", fmt.Errorf("blinded point is not on the curve")
	}

	var out twistededwards.PointAffine
	out.ScalarMultiplication(&p, e.key)
	b := out.Bytes()
	return hex.EncodeToString(b[:]), nil
}
