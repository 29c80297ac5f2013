package rules

import (
	"strconv"
	"strings"
)

const hashSuffixLen = 12

// FileNames hands out per-artifact rule file names within one package. An artifact whose
// name was already taken gets the first characters of its sha256 appended.
type FileNames struct {
	pkg  string
	ext  string
	used map[string]struct{}
}

func NewFileNames(pkg, ext string) *FileNames {
	return &FileNames{pkg: pkg, ext: ext, used: make(map[string]struct{})}
}

// Assign reserves and returns the file name for artifact.
func (f *FileNames) Assign(artifact, sha256 string) string {
	name := FileName(f.pkg, artifact, f.ext)
	if _, taken := f.used[name]; taken {
		suffix := strings.ToLower(sha256)
		if len(suffix) > hashSuffixLen {
			suffix = suffix[:hashSuffixLen]
		}
		base := artifact + "-" + suffix
		name = FileName(f.pkg, base, f.ext)
		// Identical copies of one artifact share a hash.
		for i := 2; f.taken(name); i++ {
			name = FileName(f.pkg, base+"-"+strconv.Itoa(i), f.ext)
		}
	}
	f.used[name] = struct{}{}
	return name
}

func (f *FileNames) taken(name string) bool {
	_, ok := f.used[name]
	return ok
}
