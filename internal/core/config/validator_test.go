package config

import (
	"strings"
	"testing"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Yara.Directory = t.TempDir()
	return cfg
}

func TestValidateCutoffs(t *testing.T) {
	cfg := validConfig(t)
	if err := validateCutoffs(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Yara.IdentifierCutoff = -1
	err := validateCutoffs(cfg)
	if err == nil || !strings.Contains(err.Error(), "identifier_cutoff") {
		t.Fatalf("expected identifier_cutoff error, got %v", err)
	}
}

func TestValidateRuntime(t *testing.T) {
	cfg := validConfig(t)
	cfg.Runtime.JobRetries = 11
	if err := validateRuntime(cfg); err == nil {
		t.Fatal("expected job_retries bound error")
	}

	cfg = validConfig(t)
	cfg.Runtime.ManifestName = "nested/bang.json"
	if err := validateRuntime(cfg); err == nil || !strings.Contains(err.Error(), "bare file name") {
		t.Fatalf("expected manifest_name error, got %v", err)
	}
}

func TestValidateIgnoredFiles(t *testing.T) {
	cfg := validConfig(t)
	cfg.Yara.IgnoredFiles = []string{"*.o", "[unterminated"}
	err := validateIgnoredFiles(cfg)
	if err == nil || !strings.Contains(err.Error(), "yara.ignored_files[1]") {
		t.Fatalf("expected invalid glob error, got %v", err)
	}
}

func TestValidateTags(t *testing.T) {
	cfg := validConfig(t)
	cfg.Yara.Tags = []string{"debian", "debian11", "_x"}
	if err := validateTags(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Yara.Tags = []string{"11debian"}
	if err := validateTags(cfg); err == nil {
		t.Fatal("expected tag starting with a digit to be rejected")
	}

	cfg.Yara.Tags = []string{"has-dash"}
	if err := validateTags(cfg); err == nil {
		t.Fatal("expected tag with dash to be rejected")
	}

	cfg.Yara.Tags = []string{"dup", "dup"}
	if err := validateTags(cfg); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate tag error, got %v", err)
	}
}

func TestValidateOutputDirectoryWritable(t *testing.T) {
	cfg := validConfig(t)
	if err := validateOutputDirectory(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Yara.Directory = ""
	if err := validateOutputDirectory(cfg); err == nil {
		t.Fatal("expected empty directory to be rejected")
	}
}
