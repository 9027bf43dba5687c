// Package condition implements the condition interpreter: a parser from
// condition strings to expression trees, and an evaluator that folds those
// trees against a shared State.
package condition

import (
	"fmt"
	"regexp"
	"strings"
)

// ComparisonOperator is one of the six comparison tokens.
type ComparisonOperator int

const (
	Equal ComparisonOperator = iota
	NotEqual
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
)

// String returns the operator's token.
func (op ComparisonOperator) String() string {
	switch op {
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case LessThan:
		return "<"
	case GreaterThan:
		return ">"
	case LessThanOrEqual:
		return "<="
	case GreaterThanOrEqual:
		return ">="
	default:
		return "??"
	}
}

// apply maps a three-way comparison result onto the operator.
func (op ComparisonOperator) apply(cmp int) bool {
	switch op {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case LessThan:
		return cmp < 0
	case GreaterThan:
		return cmp > 0
	case LessThanOrEqual:
		return cmp <= 0
	case GreaterThanOrEqual:
		return cmp >= 0
	default:
		return false
	}
}

// RegexArg carries a regex argument's original text alongside its compiled
// form. The original text is what displays and fingerprints; compilation
// happens once at parse time.
type RegexArg struct {
	Source string
	Regex  *regexp.Regexp
}

// FunctionKind tags the closed set of condition functions. The evaluator
// switches exhaustively over it; adding a predicate is a compile-time
// extension.
type FunctionKind int

const (
	KindFilePath FunctionKind = iota
	KindFileRegex
	KindFileSize
	KindReadable
	KindIsExecutable
	KindActivePath
	KindActiveRegex
	KindIsMaster
	KindMany
	KindManyActive
	KindChecksum
	KindVersion
	KindProductVersion
	KindFilenameVersion
	KindDescriptionContains
)

// Function is a single condition function invocation. Which fields are
// meaningful depends on Kind: Path doubles as the directory prefix for the
// regex variants that carry one.
type Function struct {
	Kind       FunctionKind
	Path       string
	Regex      *RegexArg
	Size       uint64
	CRC        uint32
	Version    string
	Comparator ComparisonOperator
}

// String renders the function as it would appear in a condition string.
func (f *Function) String() string {
	switch f.Kind {
	case KindFilePath:
		return fmt.Sprintf("file(\"%s\")", f.Path)
	case KindFileRegex:
		return fmt.Sprintf("file(\"%s/%s\")", f.Path, f.Regex.Source)
	case KindFileSize:
		return fmt.Sprintf("file_size(\"%s\", %d)", f.Path, f.Size)
	case KindReadable:
		return fmt.Sprintf("readable(\"%s\")", f.Path)
	case KindIsExecutable:
		return fmt.Sprintf("is_executable(\"%s\")", f.Path)
	case KindActivePath:
		return fmt.Sprintf("active(\"%s\")", f.Path)
	case KindActiveRegex:
		return fmt.Sprintf("active(\"%s\")", f.Regex.Source)
	case KindIsMaster:
		return fmt.Sprintf("is_master(\"%s\")", f.Path)
	case KindMany:
		return fmt.Sprintf("many(\"%s/%s\")", f.Path, f.Regex.Source)
	case KindManyActive:
		return fmt.Sprintf("many_active(\"%s\")", f.Regex.Source)
	case KindChecksum:
		return fmt.Sprintf("checksum(\"%s\", %02X)", f.Path, f.CRC)
	case KindVersion:
		return fmt.Sprintf("version(\"%s\", \"%s\", %s)", f.Path, f.Version, f.Comparator)
	case KindProductVersion:
		return fmt.Sprintf("product_version(\"%s\", \"%s\", %s)", f.Path, f.Version, f.Comparator)
	case KindFilenameVersion:
		return fmt.Sprintf("filename_version(\"%s/%s\", \"%s\", %s)", f.Path, f.Regex.Source, f.Version, f.Comparator)
	case KindDescriptionContains:
		return fmt.Sprintf("description_contains(\"%s\", \"%s\")", f.Path, f.Regex.Source)
	default:
		return "unknown()"
	}
}

// normPath lowercases a path argument and normalises its separators to
// forward slashes, for fingerprints and cache keys.
func normPath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
}

// Fingerprint returns the invocation's cache key: the predicate tag plus
// its arguments, with paths lowercased and slash-normalised and regexes
// keyed by their (lowercased) source text.
func (f *Function) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:", f.Kind)
	switch f.Kind {
	case KindFilePath, KindReadable, KindIsExecutable, KindActivePath, KindIsMaster:
		b.WriteString(normPath(f.Path))
	case KindFileRegex, KindMany:
		fmt.Fprintf(&b, "%s:%s", normPath(f.Path), strings.ToLower(f.Regex.Source))
	case KindActiveRegex, KindManyActive:
		b.WriteString(strings.ToLower(f.Regex.Source))
	case KindFileSize:
		fmt.Fprintf(&b, "%s:%d", normPath(f.Path), f.Size)
	case KindChecksum:
		fmt.Fprintf(&b, "%s:%08X", normPath(f.Path), f.CRC)
	case KindVersion, KindProductVersion:
		fmt.Fprintf(&b, "%s:%s:%s", normPath(f.Path), strings.ToLower(f.Version), f.Comparator)
	case KindFilenameVersion:
		fmt.Fprintf(&b, "%s:%s:%s:%s", normPath(f.Path), strings.ToLower(f.Regex.Source), strings.ToLower(f.Version), f.Comparator)
	case KindDescriptionContains:
		fmt.Fprintf(&b, "%s:%s", normPath(f.Path), strings.ToLower(f.Regex.Source))
	}
	return b.String()
}

// Equal reports case-insensitive structural equality.
func (f *Function) Equal(other *Function) bool {
	return f.Kind == other.Kind && f.Fingerprint() == other.Fingerprint()
}

// LogicalOperator joins clauses inside a compound.
type LogicalOperator int

const (
	And LogicalOperator = iota
	Or
)

// String returns the operator keyword.
func (op LogicalOperator) String() string {
	if op == Or {
		return "or"
	}
	return "and"
}

// Clause is either a function invocation or a parenthesised
// sub-expression; exactly one field is set.
type Clause struct {
	Function   *Function
	Expression *Expression
}

func (c Clause) String() string {
	if c.Function != nil {
		return c.Function.String()
	}
	return "(" + c.Expression.String() + ")"
}

// OpClause pairs a clause with the logical operator joining it to its
// predecessor. The first clause's operator is implicit and ignored.
type OpClause struct {
	Op     LogicalOperator
	Clause Clause
}

// Expression is a compound of clauses, optionally inverted as a whole
// ("not ( ... )").
type Expression struct {
	Inverted bool
	Clauses  []OpClause
}

// String renders the expression; parsing the result yields an equivalent
// tree.
func (e *Expression) String() string {
	var b strings.Builder
	if e.Inverted {
		b.WriteString("not (")
	}
	for i, oc := range e.Clauses {
		if i > 0 {
			fmt.Fprintf(&b, " %s ", oc.Op)
		}
		b.WriteString(oc.Clause.String())
	}
	if e.Inverted {
		b.WriteString(")")
	}
	return b.String()
}

// Equal reports structural equality modulo case and separator
// normalisation.
func (e *Expression) Equal(other *Expression) bool {
	if e.Inverted != other.Inverted || len(e.Clauses) != len(other.Clauses) {
		return false
	}
	for i := range e.Clauses {
		a, b := e.Clauses[i], other.Clauses[i]
		if i > 0 && a.Op != b.Op {
			return false
		}
		switch {
		case a.Clause.Function != nil && b.Clause.Function != nil:
			if !a.Clause.Function.Equal(b.Clause.Function) {
				return false
			}
		case a.Clause.Expression != nil && b.Clause.Expression != nil:
			if !a.Clause.Expression.Equal(b.Clause.Expression) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
