package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none) into the process
// environment without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		existing = append(existing, p)
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: YARASYNTH_[SECTION]_[KEY] (e.g., YARASYNTH_GENERAL_THREADS).
func ApplyEnvOverrides(cfg *Config) {
	// General
	setEnvBool(&cfg.General.Verbose, "YARASYNTH_GENERAL_VERBOSE")
	setEnvInt(&cfg.General.Threads, "YARASYNTH_GENERAL_THREADS")
	setEnvBool(&cfg.General.StrictExit, "YARASYNTH_GENERAL_STRICT_EXIT")

	// Yara
	setEnvString(&cfg.Yara.Directory, "YARASYNTH_YARA_DIRECTORY")
	setEnvInt(&cfg.Yara.StringCutoff, "YARASYNTH_YARA_STRING_CUTOFF")
	setEnvInt(&cfg.Yara.IdentifierCutoff, "YARASYNTH_YARA_IDENTIFIER_CUTOFF")
	setEnvInt(&cfg.Yara.MaxIdentifiers, "YARASYNTH_YARA_MAX_IDENTIFIERS")
	setEnvBool(&cfg.Yara.IgnoreWeakSymbols, "YARASYNTH_YARA_IGNORE_WEAK_SYMBOLS")
	setEnvList(&cfg.Yara.Tags, "YARASYNTH_YARA_TAGS")
	setEnvBool(&cfg.Yara.GenerateIdentifierFiles, "YARASYNTH_YARA_GENERATE_IDENTIFIER_FILES")

	// Runtime
	setEnvDuration(&cfg.Runtime.JobTimeout, "YARASYNTH_RUNTIME_JOB_TIMEOUT")
	setEnvInt(&cfg.Runtime.JobRetries, "YARASYNTH_RUNTIME_JOB_RETRIES")
	setEnvFloat64(&cfg.Runtime.JobsPerSecond, "YARASYNTH_RUNTIME_JOBS_PER_SECOND")

	// Ledger
	setEnvString(&cfg.Ledger.Path, "YARASYNTH_LEDGER_PATH")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddress, "YARASYNTH_OBSERVABILITY_METRICS_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "YARASYNTH_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
