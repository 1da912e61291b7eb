package crypto

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Tree is a fixed-depth Poseidon2 Merkle tree with zero-valued empty leaves.
// Node hashing matches the in-circuit recomputation bit for bit: leaves are
// already hashed values (MembershipLeaf), inner nodes are H(left, right).
type Tree struct {
	depth  int
	leaves []fr.Element
}

// NewTree returns an empty tree of the given depth (capacity 2^depth leaves).
func NewTree(depth int) *Tree {
	return &Tree{depth: depth}
}

// Insert appends a leaf and returns its index.
func (t *Tree) Insert(leaf fr.Element) (int, error) {
	if len(t.leaves) >= 1<<t.depth {
		return 0, fmt.Errorf("tree full: capacity %d", 1<<t.depth)
	}
	t.leaves = append(t.leaves, leaf)
	return len(t.leaves) - 1, nil
}

// Root recomputes the current root.
func (t *Tree) Root() (fr.Element, error) {
	levels, err := t.levels()
	if err != nil {
		return fr.Element{}, err
	}
	return levels[t.depth][0], nil
}

// Path returns the ordered sibling hashes for the leaf at index, bottom up.
func (t *Tree) Path(index int) ([]fr.Element, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, fmt.Errorf("leaf index %d out of range", index)
	}
	levels, err := t.levels()
	if err != nil {
		return nil, err
	}
	siblings := make([]fr.Element, t.depth)
	pos := index
	for level := 0; level < t.depth; level++ {
		siblings[level] = levels[level][pos^1]
		pos >>= 1
	}
	return siblings, nil
}

// levels materializes every level of the padded tree, leaves first.
func (t *Tree) levels() ([][]fr.Element, error) {
	width := 1 << t.depth
	levels := make([][]fr.Element, t.depth+1)
	levels[0] = make([]fr.Element, width)
	copy(levels[0], t.leaves)

	for level := 0; level < t.depth; level++ {
		width >>= 1
		levels[level+1] = make([]fr.Element, width)
		for i := 0; i < width; i++ {
			h, err := Hash(&levels[level][2*i], &levels[level][2*i+1])
			if err != nil {
				return nil, err
			}
			levels[level+1][i] = *h
		}
	}
	return levels, nil
}
