package circuit

import (
	"github.com/consensys/gnark/frontend"
	stdhash "github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// Poseidon2 round counts for the bn254 scalar field. These must match the
// host hasher's default parameters (width 2, 6 full rounds, 50 partial
// rounds) or host-computed commitments and nullifiers stop matching the
// in-circuit recomputation.
const (
	poseidonWidth         = 2
	poseidonFullRounds    = 6
	poseidonPartialRounds = 50
)

// newPoseidonHasher builds the in-circuit Merkle-Damgard hasher from an
// explicitly parameterized bn254 permutation. The std constructor only
// carries default parameters for bls12-377, so the permutation is always
// built from the constants above.
func newPoseidonHasher(api frontend.API) (stdhash.FieldHasher, error) {
	perm, err := poseidon2.NewPoseidon2FromParameters(api, poseidonWidth, poseidonFullRounds, poseidonPartialRounds)
	if err != nil {
		return nil, err
	}
	return stdhash.NewMerkleDamgardHasher(api, perm, 0), nil
}
