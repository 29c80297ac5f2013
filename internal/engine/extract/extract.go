// Package extract turns an artifact record into the set of identifiers a rule is built from.
package extract

import (
	"yarasynth/internal/core/config"
	"yarasynth/internal/engine/bang"
	"yarasynth/internal/engine/filter"
)

// Kind is the artifact format an extractor understands. Its value doubles as the rule tag.
type Kind string

const (
	KindELF Kind = bang.LabelELF
	KindDEX Kind = bang.LabelDEX
)

// KindOf returns the extractor kind for a manifest entry. ELF wins when both labels are present.
func KindOf(e bang.Entry) (Kind, bool) {
	switch {
	case e.HasLabel(bang.LabelELF):
		return KindELF, true
	case e.HasLabel(bang.LabelDEX):
		return KindDEX, true
	default:
		return "", false
	}
}

// Options carries the filter thresholds and denylists used during extraction.
type Options struct {
	StringCutoff      int
	IdentifierCutoff  int
	MaxIdentifiers    int
	IgnoreWeakSymbols bool
	Denylist          config.Denylist
}

// OptionsFromConfig copies the extraction settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StringCutoff:      cfg.Yara.StringCutoff,
		IdentifierCutoff:  cfg.Yara.IdentifierCutoff,
		MaxIdentifiers:    cfg.Yara.MaxIdentifiers,
		IgnoreWeakSymbols: cfg.Yara.IgnoreWeakSymbols,
		Denylist:          cfg.Denylist,
	}
}

// Result is the outcome of extracting one artifact.
type Result struct {
	Identifiers Sorted
	// Truncated is the number of identifiers dropped to honor MaxIdentifiers.
	Truncated int
	// Telfhash is the ELF symbol fingerprint, empty for other kinds.
	Telfhash string
}

// Extract filters rec according to kind. A record without metadata yields an empty result.
func Extract(kind Kind, rec *bang.Record, opts Options) Result {
	set := NewIdentifierSet()
	var res Result
	if rec == nil || rec.Metadata == nil {
		return res
	}

	switch kind {
	case KindELF:
		extractELF(set, rec.Metadata, opts)
		res.Telfhash = rec.Metadata.Telfhash
	case KindDEX:
		extractDEX(set, rec.Metadata, opts)
	}

	res.Identifiers, res.Truncated = Limit(set.Sorted(), opts.MaxIdentifiers)
	return res
}

func extractELF(set *IdentifierSet, md *bang.Metadata, opts Options) {
	for _, s := range md.Strings {
		if escaped, ok := filter.String(s, opts.StringCutoff); ok {
			set.AddString(escaped)
		}
	}
	for _, sym := range md.Symbols {
		name, kind := filter.Symbol(sym, opts.IdentifierCutoff, opts.IgnoreWeakSymbols, opts.Denylist.ELF)
		switch kind {
		case filter.SymbolFunction:
			set.AddFunction(name)
		case filter.SymbolVariable:
			set.AddVariable(name)
		}
	}
}

func extractDEX(set *IdentifierSet, md *bang.Metadata, opts Options) {
	deny := opts.Denylist.DEX
	for _, class := range md.Classes {
		for _, m := range class.Methods {
			if filter.Method(m.Name, opts.IdentifierCutoff, deny.Functions) {
				set.AddFunction(m.Name)
			}
			// Literals are kept even when the method name itself is rejected.
			for _, s := range m.Strings {
				if escaped, ok := filter.String(s, opts.StringCutoff); ok {
					set.AddString(escaped)
				}
			}
		}
		for _, f := range class.Fields {
			if filter.Field(f.Name, opts.IdentifierCutoff, deny.Variables) {
				set.AddVariable(f.Name)
			}
		}
	}
}
