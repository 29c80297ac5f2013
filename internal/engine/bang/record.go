package bang

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	domainerrors "yarasynth/internal/core/errors"

	"github.com/klauspost/compress/zstd"
)

const (
	recordExt           = ".json"
	compressedRecordExt = ".json.zst"
)

// Symbol is one entry of an ELF symbol table.
type Symbol struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Binding      string `json:"binding"`
	SectionIndex int    `json:"section_index"`
}

// Method is a DEX method with the string literals it references.
type Method struct {
	Name    string   `json:"name"`
	Strings []string `json:"strings"`
}

type Field struct {
	Name string `json:"name"`
}

type Class struct {
	Name    string   `json:"name"`
	Methods []Method `json:"methods"`
	Fields  []Field  `json:"fields"`
}

// Metadata is the format specific part of a record. ELF records fill Strings, Symbols and
// Telfhash; DEX records fill Classes.
type Metadata struct {
	Strings  []string `json:"strings"`
	Symbols  []Symbol `json:"symbols"`
	Telfhash string   `json:"telfhash,omitempty"`
	Classes  []Class  `json:"classes"`
}

// Record is the analysis result for a single artifact.
type Record struct {
	TLSH     string    `json:"tlsh,omitempty"`
	Metadata *Metadata `json:"metadata"`
}

// ParseRecord decodes a record document.
func ParseRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidationError, "decode artifact record")
	}
	return &r, nil
}

// RecordPath returns the uncompressed record location for hash under resultsDir.
func RecordPath(resultsDir, hash string) string {
	return filepath.Join(resultsDir, hash+recordExt)
}

// ReadRecord loads the record for hash from resultsDir, preferring <hash>.json and falling
// back to the zstd compressed <hash>.json.zst.
func ReadRecord(resultsDir, hash string) (*Record, error) {
	if !isHexDigest(hash) {
		return nil, domainerrors.AddContext(
			domainerrors.New(domainerrors.CodeValidationError, "artifact hash is not a hex digest"),
			domainerrors.CtxHash, hash)
	}

	plain := RecordPath(resultsDir, hash)
	data, err := os.ReadFile(plain)
	if err == nil {
		return ParseRecord(data)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodePermissionDenied, "cannot read artifact record"), domainerrors.CtxPath, plain)
	}

	compressed := filepath.Join(resultsDir, hash+compressedRecordExt)
	f, err := os.Open(compressed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domainerrors.AddContext(domainerrors.New(domainerrors.CodeNotFound, "artifact record not found"), domainerrors.CtxHash, hash)
		}
		return nil, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodePermissionDenied, "cannot read artifact record"), domainerrors.CtxPath, compressed)
	}
	defer f.Close()
	return decodeCompressedRecord(f)
}

func decodeCompressedRecord(r io.Reader) (*Record, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidationError, "open zstd record")
	}
	defer dec.Close()

	var rec Record
	if err := json.NewDecoder(dec).Decode(&rec); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidationError, "decode compressed artifact record")
	}
	return &rec, nil
}

func isHexDigest(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
