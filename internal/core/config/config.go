package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	DefaultStringCutoff     = 8
	DefaultIdentifierCutoff = 2
	DefaultMaxIdentifiers   = 10000
	DefaultBinarySubdir     = "binary"
	DefaultRuleExtension    = "yara"
	DefaultManifestName     = "bang.json"
	DefaultResultsDir       = "results"
	DefaultQueueCapacity    = 64
	DefaultJobRetries       = 1
	DefaultWatchDebounce    = 500 * time.Millisecond
)

// DefaultIgnoredFiles skips regular and GHC object files.
var DefaultIgnoredFiles = []string{"*.o", "*.p_o"}

type Config struct {
	General       General       `toml:"general"`
	Yara          Yara          `toml:"yara"`
	Runtime       Runtime       `toml:"runtime"`
	Ledger        Ledger        `toml:"ledger"`
	Observability Observability `toml:"observability"`

	// Denylist is loaded from the optional identifiers file, not from TOML.
	Denylist Denylist `toml:"-"`
}

type General struct {
	Verbose    bool `toml:"verbose"`
	Threads    int  `toml:"threads"`
	StrictExit bool `toml:"strict_exit"`
}

type Yara struct {
	Directory               string   `toml:"yara_directory"`
	BinarySubdir            string   `toml:"binary_subdir"`
	RuleExtension           string   `toml:"rule_extension"`
	StringCutoff            int      `toml:"string_cutoff"`
	IdentifierCutoff        int      `toml:"identifier_cutoff"`
	MaxIdentifiers          int      `toml:"max_identifiers"`
	IgnoreWeakSymbols       bool     `toml:"ignore_weak_symbols"`
	IgnoredFiles            []string `toml:"ignored_files"`
	Tags                    []string `toml:"tags"`
	GenerateIdentifierFiles bool     `toml:"generate_identifier_files"`
}

type Runtime struct {
	QueueCapacity int           `toml:"queue_capacity"`
	JobTimeout    time.Duration `toml:"job_timeout"`
	JobRetries    int           `toml:"job_retries"`
	JobsPerSecond float64       `toml:"jobs_per_second"`
	ManifestName  string        `toml:"manifest_name"`
	ResultsDir    string        `toml:"results_dir"`
	WatchDebounce time.Duration `toml:"watch_debounce"`
}

// Ledger selects the dedup ledger backend. An empty path keeps it in memory.
type Ledger struct {
	Path string `toml:"path"`
}

type Observability struct {
	MetricsAddress string `toml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
}

// BinaryDirectory is where per-artifact rules are written.
func (c *Config) BinaryDirectory() string {
	return filepath.Join(c.Yara.Directory, c.Yara.BinarySubdir)
}

// DefaultConfig returns a config with every default applied and no output directory.
// Load decodes the TOML file on top of it, so keys absent from the file keep these values.
func DefaultConfig() *Config {
	return &Config{
		General: General{
			Threads: runtime.NumCPU(),
		},
		Yara: Yara{
			BinarySubdir:     DefaultBinarySubdir,
			RuleExtension:    DefaultRuleExtension,
			StringCutoff:     DefaultStringCutoff,
			IdentifierCutoff: DefaultIdentifierCutoff,
			MaxIdentifiers:   DefaultMaxIdentifiers,
			IgnoredFiles:     append([]string(nil), DefaultIgnoredFiles...),
			Tags:             []string{},
		},
		Runtime: Runtime{
			QueueCapacity: DefaultQueueCapacity,
			JobRetries:    DefaultJobRetries,
			ManifestName:  DefaultManifestName,
			ResultsDir:    DefaultResultsDir,
			WatchDebounce: DefaultWatchDebounce,
		},
		Denylist: EmptyDenylist(),
	}
}

// normalize repairs values whose zero form is meaningless after decoding or env overrides.
func normalize(cfg *Config) {
	if cfg.General.Threads <= 0 {
		cfg.General.Threads = runtime.NumCPU()
	}

	cfg.Yara.Directory = strings.TrimSpace(cfg.Yara.Directory)
	cfg.Yara.BinarySubdir = strings.TrimSpace(cfg.Yara.BinarySubdir)
	if cfg.Yara.BinarySubdir == "" {
		cfg.Yara.BinarySubdir = DefaultBinarySubdir
	}
	cfg.Yara.RuleExtension = strings.TrimPrefix(strings.TrimSpace(cfg.Yara.RuleExtension), ".")
	if cfg.Yara.RuleExtension == "" {
		cfg.Yara.RuleExtension = DefaultRuleExtension
	}

	tags := make([]string, 0, len(cfg.Yara.Tags))
	for _, tag := range cfg.Yara.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	cfg.Yara.Tags = tags

	if cfg.Runtime.QueueCapacity <= 0 {
		cfg.Runtime.QueueCapacity = DefaultQueueCapacity
	}
	if strings.TrimSpace(cfg.Runtime.ManifestName) == "" {
		cfg.Runtime.ManifestName = DefaultManifestName
	}
	if strings.TrimSpace(cfg.Runtime.ResultsDir) == "" {
		cfg.Runtime.ResultsDir = DefaultResultsDir
	}
	if cfg.Runtime.WatchDebounce <= 0 {
		cfg.Runtime.WatchDebounce = DefaultWatchDebounce
	}

	cfg.Ledger.Path = strings.TrimSpace(cfg.Ledger.Path)
	cfg.Observability.MetricsAddress = strings.TrimSpace(cfg.Observability.MetricsAddress)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
}
