// Package filter decides which strings and symbol names are salient enough to end up in a rule.
// Every function here is pure; lengths are counted in runes.
package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"yarasynth/internal/core/config"
	"yarasynth/internal/engine/bang"
)

// SymbolKind classifies an accepted ELF symbol.
type SymbolKind int

const (
	SymbolIgnored SymbolKind = iota
	SymbolFunction
	SymbolVariable
)

const (
	symbolTypeFunc   = "func"
	symbolTypeObject = "object"
	bindingWeak      = "weak"
	// undefinedSection is SHN_UNDEF: the symbol is imported, not defined by the artifact.
	undefinedSection = 0
	accessorPrefix   = "access$"
)

var constructorNames = map[string]struct{}{
	"<init>":   {},
	"<clinit>": {},
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\t", `\t`,
	"\n", `\n`,
)

// Escape makes s safe inside a double quoted rule string literal.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Length is the number of characters in s.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// IsWhitespaceOnly reports whether s is non-empty and made only of whitespace.
func IsWhitespaceOnly(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) == -1
}

// String returns the escaped form of s and true when s passes the string filters.
func String(s string, cutoff int) (string, bool) {
	if s == "" || Length(s) < cutoff || IsWhitespaceOnly(s) {
		return "", false
	}
	return Escape(s), true
}

// StripVersion truncates symbol versioning: "name@@VER" and "name@VER" become "name".
func StripVersion(name string) string {
	if i := strings.LastIndex(name, "@@"); i >= 0 {
		return name[:i]
	}
	if i := strings.LastIndex(name, "@"); i >= 0 {
		return name[:i]
	}
	return name
}

func identifier(name string, cutoff int) bool {
	return name != "" && Length(name) >= cutoff && !IsWhitespaceOnly(name)
}

// Symbol applies the flat symbol table filters and returns the base name and its kind.
// SymbolIgnored means the symbol contributes nothing.
func Symbol(sym bang.Symbol, cutoff int, ignoreWeak bool, deny config.KindDenylist) (string, SymbolKind) {
	if sym.SectionIndex == undefinedSection {
		return "", SymbolIgnored
	}
	if ignoreWeak && sym.Binding == bindingWeak {
		return "", SymbolIgnored
	}
	name := StripVersion(sym.Name)
	if !identifier(name, cutoff) {
		return "", SymbolIgnored
	}
	switch sym.Type {
	case symbolTypeFunc:
		if deny.Functions.Contains(name) {
			return "", SymbolIgnored
		}
		return name, SymbolFunction
	case symbolTypeObject:
		if deny.Variables.Contains(name) {
			return "", SymbolIgnored
		}
		return name, SymbolVariable
	default:
		return "", SymbolIgnored
	}
}

// Method reports whether a class method name is admitted. Constructors, static initializers
// and synthetic accessors are always rejected.
func Method(name string, cutoff int, deny config.IdentifierSet) bool {
	if _, ok := constructorNames[name]; ok {
		return false
	}
	if strings.HasPrefix(name, accessorPrefix) {
		return false
	}
	return identifier(name, cutoff) && !deny.Contains(name)
}

// Field reports whether a class field name is admitted.
func Field(name string, cutoff int, deny config.IdentifierSet) bool {
	return identifier(name, cutoff) && !deny.Contains(name)
}
