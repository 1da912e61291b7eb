package circuit

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark/constraint/solver"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/consensys/gnark/std/selector"
)

// Sequence locates a subfield inside a larger buffer. Both values are witness
// hints supplied by the prover; correctness of the located content is pinned
// by the equality assertions of the consuming gadget, and the bounds are
// additionally constrained by assertSequenceInBounds.
type Sequence struct {
	Start  frontend.Variable
	Length frontend.Variable
}

func init() {
	solver.RegisterHint(DomainStartHint)
}

// DomainStartHint scans the address bytes for the first '@' and reports the
// index immediately after it. The scan runs outside the constraint system and
// is untrusted: AssertDomainSuffix re-derives correctness of the reported
// index, so a dishonest hint cannot produce a satisfying assignment. When no
// '@' is present the hint reports 0, which the verify phase rejects.
func DomainStartHint(_ *big.Int, inputs, outputs []*big.Int) error {
	if len(outputs) != 1 {
		return errors.New("domain start hint expects one output")
	}
	outputs[0].SetInt64(0)
	for i, b := range inputs {
		if b.Int64() == atSign {
			outputs[0].SetInt64(int64(i + 1))
			break
		}
	}
	return nil
}

// byteTable flattens a bounded byte buffer into mux inputs, zero-extended by
// pad slots so that shifted window reads past the capacity see the padding
// value instead of leaving the selector range.
func byteTable(buf []uints.U8, pad int) []frontend.Variable {
	table := make([]frontend.Variable, len(buf)+pad)
	for i := range buf {
		table[i] = buf[i].Val
	}
	for i := len(buf); i < len(table); i++ {
		table[i] = 0
	}
	return table
}

// zeroExtend appends pad zero slots to an already-flattened table.
func zeroExtend(table []frontend.Variable, pad int) []frontend.Variable {
	out := make([]frontend.Variable, 0, len(table)+pad)
	out = append(out, table...)
	for i := 0; i < pad; i++ {
		out = append(out, frontend.Variable(0))
	}
	return out
}

// assertSequenceInBounds pins start+length <= capacity. The original design
// relied on downstream equality checks to catch out-of-range sequences; the
// explicit bound keeps every selector read inside its table.
func assertSequenceInBounds(api frontend.API, seq Sequence, capacity int) {
	api.AssertIsLessOrEqual(api.Add(seq.Start, seq.Length), capacity)
}

// assertPrefixAt pins the bytes at start to a constant field name, so a
// prover cannot point a field sequence at an unrelated header region.
func assertPrefixAt(api frontend.API, table []frontend.Variable, start frontend.Variable, prefix string) {
	for i := 0; i < len(prefix); i++ {
		b := selector.Mux(api, api.Add(start, i), table...)
		api.AssertIsEqual(b, prefix[i])
	}
}

// activePrefixMask returns capacity bits where mask[i] = 1 iff i < length.
// Built from a running product of IsZero terms so the mask needs no
// data-dependent control flow.
func activePrefixMask(api frontend.API, length frontend.Variable, capacity int) []frontend.Variable {
	mask := make([]frontend.Variable, capacity)
	active := frontend.Variable(1)
	for i := 0; i < capacity; i++ {
		active = api.Mul(active, api.Sub(1, api.IsZero(api.Sub(length, i))))
		mask[i] = active
	}
	return mask
}

// extractSequence reads capacity bytes starting at seq.Start out of table,
// zeroing every position at or past seq.Length. The result is a bounded
// buffer at full capacity with the zero-padding invariant already holding.
func extractSequence(api frontend.API, table []frontend.Variable, seq Sequence, capacity int) []frontend.Variable {
	mask := activePrefixMask(api, seq.Length, capacity)
	out := make([]frontend.Variable, capacity)
	for i := 0; i < capacity; i++ {
		b := selector.Mux(api, api.Add(seq.Start, i), table...)
		out[i] = api.Mul(mask[i], b)
	}
	return out
}

// extractAddress locates a named header field and the address inside it.
// The field sequence must carry the expected field name at its start and the
// address sequence must sit fully inside the field.
func extractAddress(api frontend.API, table []frontend.Variable, field, addr Sequence, name string) []frontend.Variable {
	assertSequenceInBounds(api, field, HeaderCap)
	assertPrefixAt(api, table, field.Start, name)

	api.AssertIsLessOrEqual(field.Start, addr.Start)
	api.AssertIsLessOrEqual(api.Add(addr.Start, addr.Length), api.Add(field.Start, field.Length))
	api.AssertIsLessOrEqual(addr.Length, AddressCap)

	return extractSequence(api, table, addr, AddressCap)
}

// AssertDomainSuffix verifies that the claimed domain is exactly the
// fixed-width window following the '@' of the address buffer.
//
// Hint phase: DomainStartHint reports a candidate start index. Verify phase:
// the byte immediately before the candidate must be '@', and each of the
// DomainCap bytes from the candidate on must equal the public domain buffer.
// For any hint value the constraints are satisfiable only when the claim is
// true for the actual address bytes.
func AssertDomainSuffix(api frontend.API, addr []frontend.Variable, domain []frontend.Variable) error {
	if len(addr) != AddressCap || len(domain) != DomainCap {
		return errors.New("domain suffix: unexpected buffer shape")
	}
	hinted, err := api.Compiler().NewHint(DomainStartHint, 1, addr...)
	if err != nil {
		return err
	}
	assertSuffixAt(api, hinted[0], addr, domain)
	return nil
}

// assertSuffixAt is the verify phase: for any start value, honest or not,
// the constraints are satisfiable only when the window at start is the
// claimed domain and sits right after an '@'.
func assertSuffixAt(api frontend.API, start frontend.Variable, addr, domain []frontend.Variable) {
	// start-1 must be a valid index and the window must stay inside the
	// zero-extended table.
	api.AssertIsLessOrEqual(1, start)
	api.AssertIsLessOrEqual(start, AddressCap)

	table := zeroExtend(addr, DomainCap)
	before := selector.Mux(api, api.Sub(start, 1), table...)
	api.AssertIsEqual(before, atSign)

	for i := 0; i < DomainCap; i++ {
		b := selector.Mux(api, api.Add(start, i), table...)
		api.AssertIsEqual(b, domain[i])
	}
}
