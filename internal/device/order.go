package device

import (
	"cmp"
	"slices"
)

// DefaultPreferredName is the product pinned to the top of the list.
const DefaultPreferredName = "WF-C700"

// Rule compares two records for one ordering criterion.
// It returns a negative number when a sorts before b, a positive number when
// b sorts before a, and zero when the rule has no opinion.
type Rule func(a, b Record) int

// Policy is an ordered list of rules. The first rule that returns non-zero
// decides the order of a pair.
type Policy struct {
	rules []Rule
}

// NewPolicy creates a Policy applying rules in the given order.
// The ID tie-break is always appended so the order is total.
func NewPolicy(rules ...Rule) Policy {
	rs := make([]Rule, 0, len(rules)+1)
	rs = append(rs, rules...)
	rs = append(rs, byID)
	return Policy{rules: rs}
}

// DefaultPolicy returns the standard device ordering: preferred product,
// connected, paired, then name ascending.
func DefaultPolicy() Policy {
	return NewPolicy(PreferredName(DefaultPreferredName), ConnectedFirst, PairedFirst, ByName)
}

// Compare applies the policy's rules to a pair of records.
func (p Policy) Compare(a, b Record) int {
	for _, rule := range p.rules {
		if c := rule(a, b); c != 0 {
			return c
		}
	}
	return 0
}

// Sort returns a sorted copy of records. The input slice is not modified.
func (p Policy) Sort(records []Record) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, p.Compare)
	return out
}

// PreferredName returns a rule that sorts records with exactly this name
// ahead of all others, regardless of connection state.
func PreferredName(name string) Rule {
	return func(a, b Record) int {
		return preferTrue(a.Name == name, b.Name == name)
	}
}

// ConnectedFirst sorts connected devices before disconnected ones.
func ConnectedFirst(a, b Record) int {
	return preferTrue(a.Connected, b.Connected)
}

// PairedFirst sorts paired devices before unpaired ones.
func PairedFirst(a, b Record) int {
	return preferTrue(a.Paired, b.Paired)
}

// ByName sorts by display name, byte-wise ascending.
func ByName(a, b Record) int {
	return cmp.Compare(a.Name, b.Name)
}

// byID keeps devices that share a name in a fixed order between enumerations.
func byID(a, b Record) int {
	return cmp.Compare(a.ID, b.ID)
}

func preferTrue(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}
