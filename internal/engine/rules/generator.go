// Package rules renders extracted identifiers into YARA rule files.
package rules

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	domainerrors "yarasynth/internal/core/errors"
	"yarasynth/internal/engine/filter"
	"yarasynth/internal/shared/util"

	"github.com/google/uuid"
)

const (
	DefaultAuthor = "Generated by yarasynth"

	MetaName     = "name"
	MetaPackage  = "package"
	MetaSHA256   = "sha256"
	MetaTLSH     = "tlsh"
	MetaTelfhash = "telfhash"

	filePerm = 0o644
)

// Document is one fully resolved rule. Strings are expected to be escaped already;
// functions and variables are escaped while rendering.
type Document struct {
	ID        uuid.UUID
	Date      time.Time
	Author    string
	Metadata  map[string]string
	Tags      []string
	Strings   []string
	Functions []string
	Variables []string
}

// Empty reports whether the document declares no pattern at all.
func (d Document) Empty() bool {
	return len(d.Strings) == 0 && len(d.Functions) == 0 && len(d.Variables) == 0
}

// RuleName is the rule identifier derived from the document uuid.
func (d Document) RuleName() string {
	return "rule_" + strings.ReplaceAll(d.ID.String(), "-", "_")
}

// Render returns the rule text. Output depends only on the document fields.
func (d Document) Render() []byte {
	var b bytes.Buffer

	b.WriteString("rule " + d.RuleName())
	if len(d.Tags) > 0 {
		b.WriteString(": " + strings.Join(d.Tags, " "))
	}
	b.WriteString("\n{\n")

	b.WriteString("    meta:\n")
	fmt.Fprintf(&b, "        description = \"Rule for %s in %s\"\n",
		filter.Escape(d.Metadata[MetaName]), filter.Escape(d.Metadata[MetaPackage]))
	fmt.Fprintf(&b, "        author = \"%s\"\n", filter.Escape(d.Author))
	fmt.Fprintf(&b, "        date = \"%s\"\n", d.Date.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "        uuid = \"%s\"\n", d.ID.String())
	for _, key := range util.SortedStringKeys(d.Metadata) {
		fmt.Fprintf(&b, "        %s = \"%s\"\n", key, filter.Escape(d.Metadata[key]))
	}

	b.WriteString("\n    strings:\n")
	writeSection(&b, "strings", "string", d.Strings, false)
	writeSection(&b, "functions", "function", d.Functions, true)
	writeSection(&b, "variables", "variable", d.Variables, true)

	b.WriteString("\n    condition:\n")
	b.WriteString("        all of them\n")
	b.WriteString("\n}\n")
	return b.Bytes()
}

func writeSection(b *bytes.Buffer, title, prefix string, values []string, escape bool) {
	fmt.Fprintf(b, "\n        // Extracted %s\n\n", title)
	for i, v := range values {
		if escape {
			v = filter.Escape(v)
		}
		fmt.Fprintf(b, "        $%s%d = \"%s\"\n", prefix, i+1, v)
	}
}

// FileName is the per-artifact rule file name.
func FileName(pkg, artifact, ext string) string {
	return fmt.Sprintf("%s-%s.%s", pkg, artifact, ext)
}

// Generator builds and writes rule documents. Now and NewID are replaceable for tests.
type Generator struct {
	Extension string
	Author    string
	Now       func() time.Time
	NewID     func() uuid.UUID
}

func NewGenerator(ext string) *Generator {
	return &Generator{
		Extension: ext,
		Author:    DefaultAuthor,
		Now:       time.Now,
		NewID:     uuid.New,
	}
}

// Document assembles a rule with a fresh id and timestamp. Every collection is sorted.
func (g *Generator) Document(metadata map[string]string, functions, variables, strs, tags []string) Document {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return Document{
		ID:        g.NewID(),
		Date:      g.Now().UTC(),
		Author:    g.Author,
		Metadata:  md,
		Tags:      append([]string(nil), tags...),
		Strings:   util.SortedUnique(strs),
		Functions: util.SortedUnique(functions),
		Variables: util.SortedUnique(variables),
	}
}

// Emit writes a rule named after the package and name metadata keys into dir and returns the
// file name.
func (g *Generator) Emit(dir string, metadata map[string]string, functions, variables, strs, tags []string) (string, error) {
	name := FileName(metadata[MetaPackage], metadata[MetaName], g.Extension)
	return g.EmitFile(dir, name, metadata, functions, variables, strs, tags)
}

// EmitFile is Emit with an explicit file name.
func (g *Generator) EmitFile(dir, fileName string, metadata map[string]string, functions, variables, strs, tags []string) (string, error) {
	doc := g.Document(metadata, functions, variables, strs, tags)
	if doc.Empty() {
		return "", domainerrors.AddContext(
			domainerrors.New(domainerrors.CodeValidationError, "refusing to write rule without patterns"),
			domainerrors.CtxArtifact, metadata[MetaName])
	}
	target := filepath.Join(dir, fileName)
	if err := util.WriteFileWithDirs(target, doc.Render(), filePerm); err != nil {
		return "", domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeInternal, "write rule file"),
			domainerrors.CtxPath, target)
	}
	return fileName, nil
}
