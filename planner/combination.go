// Package planner turns a validated ViewDefinition into one or more concrete
// query plans: the Combination Expander resolves every unionAll into
// separate plan variants (one arm per branch, Cartesian-multiplied across
// nested unionAll sites), and the ForEach/Repeat processors turn each
// variant's iteration structure into an ordered chain of array-opening
// steps the emit package can turn into CROSS/OUTER APPLY joins.
package planner

import "github.com/aehrc/sof-mssql/viewdef"

// Variant is one fully resolved arm of a ViewDefinition: a Select tree with
// every unionAll replaced by the single branch this arm chose. Choices
// records, in encounter order, which branch index was chosen at each
// unionAll site — used only to label variants for diagnostics and tests.
type Variant struct {
	Select  viewdef.Select
	Choices []int
}

// Expand runs the Combination Expander over every top-level select,
// returning the full list of plan variants the emitted SQL will UNION ALL
// together.
func Expand(vd *viewdef.ViewDefinition) ([]Variant, error) {
	root := viewdef.Select{Select: vd.Select}
	return expandSelect(root)
}

func expandSelect(s viewdef.Select) ([]Variant, error) {
	if len(s.UnionAll) > 0 {
		// s may itself carry a forEach/repeat/column/where and nested
		// select[] (spec.md §4.6 rule 3's "otherwise" case: the Select's own
		// iteration nests the union choice within it), so s is kept with its
		// own nested selects expanded as usual, and the chosen branch is
		// appended after them as one more child rather than replacing s.
		parent := s
		parent.UnionAll = nil
		parentVariants, err := expandSelect(parent)
		if err != nil {
			return nil, err
		}
		var out []Variant
		for i, branch := range s.UnionAll {
			branchVariants, err := expandSelect(branch)
			if err != nil {
				return nil, err
			}
			for _, pv := range parentVariants {
				for _, bv := range branchVariants {
					resolved := pv.Select
					resolved.Select = append(append([]viewdef.Select{}, pv.Select.Select...), bv.Select)
					choices := append(append(append([]int{}, pv.Choices...), i), bv.Choices...)
					out = append(out, Variant{Select: resolved, Choices: choices})
				}
			}
		}
		return out, nil
	}

	if len(s.Select) == 0 {
		return []Variant{{Select: s}}, nil
	}

	childLists := make([][]Variant, len(s.Select))
	for i, child := range s.Select {
		vs, err := expandSelect(child)
		if err != nil {
			return nil, err
		}
		childLists[i] = vs
	}

	var out []Variant
	for _, combo := range cartesian(childLists) {
		children := make([]viewdef.Select, len(combo))
		var choices []int
		for i, v := range combo {
			children[i] = v.Select
			choices = append(choices, v.Choices...)
		}
		resolved := s
		resolved.Select = children
		resolved.UnionAll = nil
		out = append(out, Variant{Select: resolved, Choices: choices})
	}
	return out, nil
}

// cartesian returns the Cartesian product of lists as a slice of
// combinations, each combination holding exactly one element per input list
// in order. Depth-first, no deduplication: identical-looking variants from
// independent unionAll sites are kept distinct, matching spec.md §4.8's
// "no dedup" rule for combination expansion.
func cartesian(lists [][]Variant) [][]Variant {
	if len(lists) == 0 {
		return [][]Variant{{}}
	}
	rest := cartesian(lists[1:])
	var out [][]Variant
	for _, v := range lists[0] {
		for _, r := range rest {
			combo := make([]Variant, 0, len(r)+1)
			combo = append(combo, v)
			combo = append(combo, r...)
			out = append(out, combo)
		}
	}
	return out
}
