package viewdef

import (
	"fmt"
	"regexp"

	"github.com/aehrc/sof-mssql/fhirschema"
)

var columnNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validator checks ViewDefinition documents for the structural and semantic
// invariants spec.md §4.3 requires before compilation.
type Validator struct {
	// KnownArrayFields backs the collection=false multiplicity check.
	// Defaults to fhirschema.DefaultArrayFields when nil.
	KnownArrayFields map[string]bool
}

// Validate runs all checks in spec.md §4.3 against vd, returning the first
// error encountered: a ValidationError, or an InvalidTagValueError for a
// malformed tag.
func (v *Validator) Validate(vd *ViewDefinition) error {
	fields := v.KnownArrayFields
	if fields == nil {
		fields = fhirschema.DefaultArrayFields
	}

	if vd.ResourceType != "" && vd.ResourceType != "ViewDefinition" {
		return newValidationError("resourceType", "must be \"ViewDefinition\" if present, got %q", vd.ResourceType)
	}
	if vd.Resource == "" {
		return newValidationError("resource", "is required")
	}
	if len(vd.Select) == 0 {
		return newValidationError("select", "must be non-empty")
	}

	for _, c := range vd.Constant {
		fields := c.valueFields()
		if len(fields) == 0 {
			return newValidationError(fmt.Sprintf("constant[%s]", c.Name), "must set exactly one value[x], got none")
		}
		if len(fields) > 1 {
			return newValidationError(fmt.Sprintf("constant[%s]", c.Name), "must set exactly one value[x], got %v", fields)
		}
	}

	for i, s := range vd.Select {
		if err := v.validateSelect(fmt.Sprintf("select[%d]", i), s, false, fields); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateSelect(path string, s Select, inIteration bool, fields map[string]bool) error {
	if s.ForEach != "" && s.ForEachOrNull != "" {
		return newValidationError(path, "forEach and forEachOrNull are mutually exclusive")
	}
	if len(s.Column) == 0 && len(s.Select) == 0 && len(s.UnionAll) == 0 {
		return newValidationError(path, "must carry at least one of column, select, or unionAll")
	}

	childInIteration := inIteration || s.IsIterating() || s.IsRepeat()

	for i, c := range s.Column {
		if err := v.validateColumn(fmt.Sprintf("%s.column[%d]", path, i), c, childInIteration, fields); err != nil {
			return err
		}
	}
	for i, child := range s.Select {
		if err := v.validateSelect(fmt.Sprintf("%s.select[%d]", path, i), child, childInIteration, fields); err != nil {
			return err
		}
	}
	if len(s.UnionAll) > 0 {
		if err := v.validateUnionAll(path, s.UnionAll, childInIteration, fields); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateColumn(path string, c Column, inIteration bool, fields map[string]bool) error {
	if !columnNameRe.MatchString(c.Name) {
		return newValidationError(path+".name", "must match [A-Za-z_][A-Za-z0-9_]*, got %q", c.Name)
	}
	if c.Path == "" {
		return newValidationError(path+".path", "is required")
	}
	if override, ok := c.MSSQLTypeOverride(); ok {
		if !mssqlTypeOverridePattern.MatchString(override) || len(override) > 64 {
			return &InvalidTagValueError{Column: c.Name, Value: override}
		}
	}
	if c.CollectionMode() == CollectionFalse && !inIteration && pathYieldsMultipleValues(c.Path, fields) {
		return newValidationError(path, "collection=false but path %q is a recognised multi-valued FHIR path outside iteration", c.Path)
	}
	return nil
}

func (v *Validator) validateUnionAll(path string, branches []Select, inIteration bool, fields map[string]bool) error {
	var reference []string
	for i, branch := range branches {
		branchPath := fmt.Sprintf("%s.unionAll[%d]", path, i)
		if err := v.validateSelect(branchPath, branch, inIteration, fields); err != nil {
			return err
		}
		names := columnNames(branch)
		if reference == nil {
			reference = names
			continue
		}
		if !sameColumnOrder(reference, names) {
			return newValidationError(path+".unionAll", "branches must expose the same ordered column list, got %v and %v", reference, names)
		}
	}
	return nil
}

// columnNames collects the ordered, flattened column-name list a Select
// contributes (its own columns, then nested selects', in declared order);
// used only for the unionAll column-set comparison.
func columnNames(s Select) []string {
	var names []string
	for _, c := range s.Column {
		names = append(names, c.Name)
	}
	for _, child := range s.Select {
		names = append(names, columnNames(child)...)
	}
	return names
}

func sameColumnOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pathYieldsMultipleValues is a conservative check: a dotted path is flagged
// as multi-valued if its first segment names a known FHIR array field and no
// explicit indexing/first()/where() narrows it.
func pathYieldsMultipleValues(path string, fields map[string]bool) bool {
	first := path
	for i, c := range path {
		if c == '.' || c == '[' || c == '(' {
			first = path[:i]
			break
		}
	}
	return fields[first]
}

var mssqlTypeOverridePattern = regexp.MustCompile(`^[A-Za-z0-9_(),]+$`)

// InvalidTagValueError reports an "mssql/type" tag whose value fails the
// identifier-safe, size-bounded pattern spec.md §6 requires.
type InvalidTagValueError struct {
	Column string
	Value  string
}

func (e *InvalidTagValueError) Error() string {
	return fmt.Sprintf("column %q: invalid mssql/type tag value %q", e.Column, e.Value)
}
