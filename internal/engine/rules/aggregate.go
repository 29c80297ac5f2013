package rules

import (
	"bytes"
	"fmt"
	"path/filepath"

	domainerrors "yarasynth/internal/core/errors"
	"yarasynth/internal/shared/util"
)

const (
	functionCorpusExt = "func"
	variableCorpusExt = "var"
)

// Corpus collects every function and variable name emitted for one package.
type Corpus struct {
	functions map[string]struct{}
	variables map[string]struct{}
}

func NewCorpus() *Corpus {
	return &Corpus{
		functions: make(map[string]struct{}),
		variables: make(map[string]struct{}),
	}
}

func (c *Corpus) Add(functions, variables []string) {
	for _, f := range functions {
		c.functions[f] = struct{}{}
	}
	for _, v := range variables {
		c.variables[v] = struct{}{}
	}
}

func (c *Corpus) Functions() []string { return util.SortedStringKeys(c.functions) }
func (c *Corpus) Variables() []string { return util.SortedStringKeys(c.variables) }

// Aggregator writes the per-package include file and the optional identifier corpora.
type Aggregator struct {
	Extension    string
	BinarySubdir string
	WriteCorpora bool
}

// Render returns the include file content for the given rule files.
func (a *Aggregator) Render(pkg string, ruleFiles []string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "/*\nRules for %s\n*/\n", pkg)
	for _, f := range util.SortedUnique(ruleFiles) {
		fmt.Fprintf(&b, "include \"./%s/%s\"\n", a.BinarySubdir, f)
	}
	return b.Bytes()
}

// Write creates <pkg>.<ext> in dir. Nothing is written when ruleFiles is empty, in which case
// the returned bool is false. Corpora are written only when enabled and non-empty.
func (a *Aggregator) Write(dir, pkg string, ruleFiles []string, corpus *Corpus) (bool, error) {
	if len(ruleFiles) == 0 {
		return false, nil
	}

	target := filepath.Join(dir, pkg+"."+a.Extension)
	if err := util.WriteFileAtomic(target, a.Render(pkg, ruleFiles), filePerm); err != nil {
		return false, domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeInternal, "write aggregate rule file"),
			domainerrors.CtxPath, target)
	}

	if !a.WriteCorpora || corpus == nil {
		return true, nil
	}
	if err := writeCorpus(filepath.Join(dir, pkg+"."+functionCorpusExt), corpus.Functions()); err != nil {
		return true, err
	}
	if err := writeCorpus(filepath.Join(dir, pkg+"."+variableCorpusExt), corpus.Variables()); err != nil {
		return true, err
	}
	return true, nil
}

func writeCorpus(target string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	var b bytes.Buffer
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	if err := util.WriteFileAtomic(target, b.Bytes(), filePerm); err != nil {
		return domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeInternal, "write identifier corpus"),
			domainerrors.CtxPath, target)
	}
	return nil
}
