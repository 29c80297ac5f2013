// Package bang decodes the serialized output of the upstream binary analysis engine:
// one manifest per package and one record per analyzed artifact.
package bang

import (
	"encoding/json"
	"os"
	"strings"

	domainerrors "yarasynth/internal/core/errors"
	"yarasynth/internal/shared/util"
)

const (
	LabelRoot = "root"
	LabelELF  = "elf"
	LabelDEX  = "dex"
)

// Hashes holds the content hashes the engine computed for a file.
type Hashes struct {
	SHA256 string `json:"sha256"`
}

// ScanEntry describes one file discovered while unpacking a package.
type ScanEntry struct {
	Labels []string `json:"labels"`
	Hash   Hashes   `json:"hash"`
}

// HasLabel reports whether the entry carries label.
func (e ScanEntry) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Entry is a ScanEntry together with its path relative to the unpack root.
type Entry struct {
	Path string
	ScanEntry
}

// Name is the base name of the entry path.
func (e Entry) Name() string {
	return util.BaseName(e.Path)
}

// Manifest is the per-package scan record.
type Manifest struct {
	ScanTree map[string]ScanEntry `json:"scantree"`
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInvalidManifest, "decode manifest")
	}
	if m.ScanTree == nil {
		return nil, domainerrors.New(domainerrors.CodeInvalidManifest, "manifest has no scantree")
	}
	return &m, nil
}

// ReadManifest reads and decodes the manifest at path.
func ReadManifest(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeNotFound, "manifest not found"), domainerrors.CtxPath, p)
		}
		return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodePermissionDenied, "cannot read manifest"), domainerrors.CtxPath, p)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, domainerrors.AddContext(err, domainerrors.CtxPath, p)
	}
	return m, nil
}

// Root returns the entry labelled root. When several entries carry the label, the one with
// the lexically smallest path wins so the choice does not depend on map order.
func (m *Manifest) Root() (Entry, error) {
	for _, e := range m.Entries() {
		if e.HasLabel(LabelRoot) {
			if strings.TrimSpace(e.Hash.SHA256) == "" {
				return Entry{}, domainerrors.AddContext(
					domainerrors.New(domainerrors.CodeInvalidManifest, "root entry has no sha256"),
					domainerrors.CtxPath, e.Path)
			}
			if !validPackageName(e.Name()) {
				return Entry{}, domainerrors.AddContext(
					domainerrors.New(domainerrors.CodeInvalidManifest, "root entry path does not name a package"),
					domainerrors.CtxPath, e.Path)
			}
			return e, nil
		}
	}
	return Entry{}, domainerrors.New(domainerrors.CodeInvalidManifest, "manifest has no root entry")
}

// validPackageName rejects names that would produce hidden or unnamed rule files.
func validPackageName(name string) bool {
	switch name {
	case "", ".", "..", "/":
		return false
	}
	return true
}

// Entries returns every scan entry sorted by path.
func (m *Manifest) Entries() []Entry {
	paths := util.SortedStringKeys(m.ScanTree)
	out := make([]Entry, 0, len(paths))
	for _, p := range paths {
		out = append(out, Entry{Path: p, ScanEntry: m.ScanTree[p]})
	}
	return out
}
