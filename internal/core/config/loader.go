package config

import (
	"fmt"
	"os"

	domainerrors "yarasynth/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Load reads the TOML configuration at path, applies env overrides and validates the result.
// The [general] and [yara] sections and yara.yara_directory are required.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.Wrap(err, domainerrors.CodeNotFound, fmt.Sprintf("configuration file %s does not exist", path))
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodePermissionDenied, "cannot stat configuration file")
	}
	if !info.Mode().IsRegular() {
		return nil, domainerrors.New(domainerrors.CodeValidationError, fmt.Sprintf("%s is not a regular file", path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodePermissionDenied, "cannot open configuration file")
	}

	cfg, err := Parse(string(data))
	if err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)
	normalize(cfg)

	if err := validateCutoffs(cfg); err != nil {
		return nil, err
	}
	if err := validateRuntime(cfg); err != nil {
		return nil, err
	}
	if err := validateIgnoredFiles(cfg); err != nil {
		return nil, err
	}
	if err := validateTags(cfg); err != nil {
		return nil, err
	}
	if err := validateOutputDirectory(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes TOML content on top of DefaultConfig and checks the required sections.
// It does not touch the filesystem.
func Parse(content string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(content, cfg)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidationError, "invalid configuration file")
	}

	for _, section := range []string{"general", "yara"} {
		if !md.IsDefined(section) {
			return nil, domainerrors.New(domainerrors.CodeValidationError, fmt.Sprintf("invalid configuration file, section %s missing", section))
		}
	}
	if !md.IsDefined("yara", "yara_directory") {
		return nil, domainerrors.New(domainerrors.CodeValidationError, "yara_directory not defined in configuration")
	}
	return cfg, nil
}
