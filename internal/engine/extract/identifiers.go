package extract

import "yarasynth/internal/shared/util"

// IdentifierSet accumulates the unique identifiers of one artifact.
type IdentifierSet struct {
	strings   map[string]struct{}
	functions map[string]struct{}
	variables map[string]struct{}
}

func NewIdentifierSet() *IdentifierSet {
	return &IdentifierSet{
		strings:   make(map[string]struct{}),
		functions: make(map[string]struct{}),
		variables: make(map[string]struct{}),
	}
}

func (s *IdentifierSet) AddString(v string)   { s.strings[v] = struct{}{} }
func (s *IdentifierSet) AddFunction(v string) { s.functions[v] = struct{}{} }
func (s *IdentifierSet) AddVariable(v string) { s.variables[v] = struct{}{} }

func (s *IdentifierSet) Total() int {
	return len(s.strings) + len(s.functions) + len(s.variables)
}

// Sorted returns the three collections in lexical order.
func (s *IdentifierSet) Sorted() Sorted {
	return Sorted{
		Strings:   util.SortedStringKeys(s.strings),
		Functions: util.SortedStringKeys(s.functions),
		Variables: util.SortedStringKeys(s.variables),
	}
}

// Sorted is the frozen, ordered form of an IdentifierSet.
type Sorted struct {
	Strings   []string
	Functions []string
	Variables []string
}

func (s Sorted) Total() int {
	return len(s.Strings) + len(s.Functions) + len(s.Variables)
}

// Empty reports whether no identifier survived filtering.
func (s Sorted) Empty() bool {
	return s.Total() == 0
}

// Limit caps the total number of identifiers at max, filling the budget with functions first,
// then variables, then strings, and keeping the lexically first entries of each. A max of zero
// or less disables the cap. The second return value is the number of identifiers dropped.
func Limit(s Sorted, max int) (Sorted, int) {
	total := s.Total()
	if max <= 0 || total <= max {
		return s, 0
	}

	budget := max
	take := func(in []string) []string {
		n := len(in)
		if n > budget {
			n = budget
		}
		budget -= n
		return in[:n:n]
	}

	out := Sorted{}
	out.Functions = take(s.Functions)
	out.Variables = take(s.Variables)
	out.Strings = take(s.Strings)
	return out, total - out.Total()
}
