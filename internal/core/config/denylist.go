package config

import (
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// IdentifierSet is a set of low quality identifier names.
type IdentifierSet map[string]struct{}

// Contains reports whether name is in the set. A nil set contains nothing.
func (s IdentifierSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// KindDenylist splits low quality identifiers of one artifact kind into functions and variables.
type KindDenylist struct {
	Functions IdentifierSet
	Variables IdentifierSet
}

// Denylist holds low quality identifiers for ELF and DEX artifacts.
type Denylist struct {
	ELF KindDenylist
	DEX KindDenylist
}

type denylistFile struct {
	ELF kindDenylistFile `yaml:"elf"`
	DEX kindDenylistFile `yaml:"dex"`
}

type kindDenylistFile struct {
	Functions []string `yaml:"functions"`
	Variables []string `yaml:"variables"`
}

// EmptyDenylist returns a denylist with no entries.
func EmptyDenylist() Denylist {
	return Denylist{
		ELF: KindDenylist{Functions: IdentifierSet{}, Variables: IdentifierSet{}},
		DEX: KindDenylist{Functions: IdentifierSet{}, Variables: IdentifierSet{}},
	}
}

// ParseDenylist decodes the YAML identifiers document.
func ParseDenylist(data []byte) (Denylist, error) {
	var raw denylistFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return EmptyDenylist(), err
	}
	return Denylist{
		ELF: KindDenylist{Functions: toSet(raw.ELF.Functions), Variables: toSet(raw.ELF.Variables)},
		DEX: KindDenylist{Functions: toSet(raw.DEX.Functions), Variables: toSet(raw.DEX.Variables)},
	}, nil
}

// LoadDenylist reads the identifiers file at path. An empty path, a missing or unreadable
// file, or malformed content all yield empty denylists; this is never fatal.
func LoadDenylist(path string) Denylist {
	path = strings.TrimSpace(path)
	if path == "" {
		return EmptyDenylist()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("cannot read low quality identifiers, using empty denylists", "path", path, "error", err)
		return EmptyDenylist()
	}
	list, err := ParseDenylist(data)
	if err != nil {
		slog.Warn("cannot parse low quality identifiers, using empty denylists", "path", path, "error", err)
		return EmptyDenylist()
	}
	slog.Debug("loaded low quality identifiers",
		"path", path,
		"elf_functions", len(list.ELF.Functions),
		"elf_variables", len(list.ELF.Variables),
		"dex_functions", len(list.DEX.Functions),
		"dex_variables", len(list.DEX.Variables),
	)
	return list
}

func toSet(names []string) IdentifierSet {
	set := make(IdentifierSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
