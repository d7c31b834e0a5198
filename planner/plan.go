package planner

import (
	"fmt"

	"github.com/aehrc/sof-mssql/fhirschema"
	"github.com/aehrc/sof-mssql/pathparser"
	"github.com/aehrc/sof-mssql/viewdef"
)

// ScanKind distinguishes the three ways a PlanNode can open a new row scope.
type ScanKind int

const (
	ScanForEach ScanKind = iota
	ScanForEachOrNull
	ScanRepeat
)

// ScanLevel is one CROSS/OUTER APPLY (or recursive CTE join, for ScanRepeat)
// in the chain leading to a PlanNode's row context.
type ScanLevel struct {
	Alias string
	Kind  ScanKind

	// ParentSource is the JSON source expression this level reads from: the
	// resource root ("r.json") for the first level in a chain, or the
	// previous level's item expression otherwise.
	ParentSource string

	// Step is populated for ScanForEach/ScanForEachOrNull: the array field
	// (plus any folded non-array suffix) this level opens.
	Step pathparser.Step

	// RepeatAnchor and RepeatUnions are populated for ScanRepeat: the first
	// repeat[] entry seeds the recursive CTE's anchor member, and RepeatUnions
	// holds the remaining entries. The recursive arms are built from
	// RepeatPaths, not RepeatUnions.
	RepeatAnchor string
	RepeatUnions []string
	// RepeatPaths is the full repeat[] list (RepeatAnchor followed by
	// RepeatUnions); the recursive member of the CTE has one UNION ALL arm
	// per entry here, so a resource with more than one possible child-item
	// path can still be traversed.
	RepeatPaths []string
}

// PlanNode mirrors one viewdef.Select, resolved to a concrete scan chain
// (inherited scope plus whatever this node itself opens) and carrying its
// own columns and row filters.
type PlanNode struct {
	Scans    []ScanLevel
	Where    []viewdef.Where
	Columns  []viewdef.Column
	Children []*PlanNode
}

type aliasCounter struct {
	forEach int
	repeat  int
}

func (c *aliasCounter) nextForEach() string {
	a := fmt.Sprintf("forEach_%d", c.forEach)
	c.forEach++
	return a
}

func (c *aliasCounter) nextRepeat() string {
	a := fmt.Sprintf("repeat_%d", c.repeat)
	c.repeat++
	return a
}

// parentSource is the JSON source expression the next scan level in chain
// should read from: fallback (the resource root) if chain is empty,
// otherwise the previous level's item expression.
func parentSource(chain []ScanLevel, fallback string) string {
	if len(chain) == 0 {
		return fallback
	}
	return ItemExpr(chain[len(chain)-1])
}

// ItemExpr is the JSON expression standing for "the current item" at level.
// A step's OPENJSON call already targets the combined Field(+PathSuffix)
// path (see OpenJSONPath), so the opened alias's `.value` column is always
// "the current item" directly, with no further JSON_QUERY needed.
func ItemExpr(level ScanLevel) string {
	if level.Kind == ScanRepeat {
		return level.Alias + ".item_json"
	}
	return level.Alias + ".value"
}

// OpenJSONPath renders the JSON path text a ScanLevel's OPENJSON/OUTER APPLY
// call targets: the array field this step opens, plus any trailing non-array
// member access folded into the same step (spec.md §4.4 rule 3: consecutive
// *known array* segments split into their own steps; anything else stays
// joined into one path).
func OpenJSONPath(level ScanLevel) string {
	if level.Step.PathSuffix == "" {
		return level.Step.Field
	}
	return level.Step.Field + "." + level.Step.PathSuffix
}

// Build resolves a plan variant's Select tree into a PlanNode tree.
func Build(variant Variant, arrayFields fhirschema.IsArrayField) (*PlanNode, error) {
	if arrayFields == nil {
		arrayFields = fhirschema.Default()
	}
	counter := &aliasCounter{}
	return buildNode(variant.Select, nil, counter, arrayFields)
}

func buildNode(s viewdef.Select, inherited []ScanLevel, counter *aliasCounter, arrayFields fhirschema.IsArrayField) (*PlanNode, error) {
	chain := append([]ScanLevel{}, inherited...)

	if s.IsIterating() {
		path, orNull := s.IterationPath()
		steps, err := pathparser.Decode(path, arrayFields)
		if err != nil {
			return nil, err
		}
		kind := ScanForEach
		if orNull {
			kind = ScanForEachOrNull
		}
		for _, step := range steps {
			chain = append(chain, ScanLevel{
				Alias:        counter.nextForEach(),
				Kind:         kind,
				Step:         step,
				ParentSource: parentSource(chain, "r.json"),
			})
		}
	}

	if s.IsRepeat() {
		chain = append(chain, ScanLevel{
			Alias:        counter.nextRepeat(),
			Kind:         ScanRepeat,
			RepeatAnchor: s.Repeat[0],
			RepeatUnions: s.Repeat[1:],
			RepeatPaths:  append([]string{}, s.Repeat...),
			ParentSource: parentSource(chain, "r.json"),
		})
	}

	node := &PlanNode{
		Scans:   chain,
		Where:   s.Where,
		Columns: s.Column,
	}
	for _, child := range s.Select {
		childNode, err := buildNode(child, chain, counter, arrayFields)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}
