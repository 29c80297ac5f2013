package config

import (
	"fmt"
	"os"
	"strings"

	domainerrors "yarasynth/internal/core/errors"
	"yarasynth/internal/shared/util"

	"github.com/gobwas/glob"
)

func validateCutoffs(cfg *Config) error {
	if cfg.Yara.StringCutoff < 0 {
		return fmt.Errorf("yara.string_cutoff must be >= 0, got %d", cfg.Yara.StringCutoff)
	}
	if cfg.Yara.IdentifierCutoff < 0 {
		return fmt.Errorf("yara.identifier_cutoff must be >= 0, got %d", cfg.Yara.IdentifierCutoff)
	}
	if cfg.Yara.MaxIdentifiers < 0 {
		return fmt.Errorf("yara.max_identifiers must be >= 0 (0 disables the limit), got %d", cfg.Yara.MaxIdentifiers)
	}
	return nil
}

func validateRuntime(cfg *Config) error {
	if cfg.Runtime.JobTimeout < 0 {
		return fmt.Errorf("runtime.job_timeout must not be negative")
	}
	if cfg.Runtime.JobRetries < 0 || cfg.Runtime.JobRetries > 10 {
		return fmt.Errorf("runtime.job_retries must be between 0 and 10")
	}
	if cfg.Runtime.JobsPerSecond < 0 {
		return fmt.Errorf("runtime.jobs_per_second must be >= 0 (0 disables throttling)")
	}
	if util.ContainsPathSeparator(cfg.Runtime.ManifestName) {
		return fmt.Errorf("runtime.manifest_name must be a bare file name, got %q", cfg.Runtime.ManifestName)
	}
	return nil
}

func validateIgnoredFiles(cfg *Config) error {
	for i, pattern := range cfg.Yara.IgnoredFiles {
		ref := fmt.Sprintf("yara.ignored_files[%d]", i)
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("%s must not be empty", ref)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("%s is invalid: %w", ref, err)
		}
	}
	return nil
}

func validateTags(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Yara.Tags))
	for _, tag := range cfg.Yara.Tags {
		if !isRuleIdentifier(tag) {
			return fmt.Errorf("yara.tags entry %q is not a valid rule tag", tag)
		}
		if seen[tag] {
			return fmt.Errorf("duplicate yara tag %q", tag)
		}
		seen[tag] = true
	}
	return nil
}

func isRuleIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// validateOutputDirectory checks that yara_directory exists, is a directory and is writable.
func validateOutputDirectory(cfg *Config) error {
	dir := cfg.Yara.Directory
	if dir == "" {
		return domainerrors.New(domainerrors.CodeValidationError, "yara_directory must not be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, "yara_directory does not exist")
	}
	if !info.IsDir() {
		return domainerrors.New(domainerrors.CodeValidationError, "yara_directory is not a valid directory")
	}

	probe, err := os.CreateTemp(dir, ".yarasynth-probe-*")
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodePermissionDenied, "yara_directory is not writable")
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}

// PrepareOutput creates the binary rule subdirectory under yara_directory.
func PrepareOutput(cfg *Config) error {
	if err := os.MkdirAll(cfg.BinaryDirectory(), 0o755); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodePermissionDenied, "cannot create binary rule directory")
	}
	return nil
}
