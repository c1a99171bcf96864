package config

import (
	"encoding/json"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"lore/internal/paths"
)

// Config represents the complete lore configuration (v1 schema)
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Notes    NotesConfig    `json:"notes" mapstructure:"notes"`
	Git      GitConfig      `json:"git" mapstructure:"git"`
	Query    QueryConfig    `json:"query" mapstructure:"query"`
	Identity IdentityConfig `json:"identity" mapstructure:"identity"`
	Cache    CacheConfig    `json:"cache" mapstructure:"cache"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// NotesConfig names the notes refs and the remote used for sync
type NotesConfig struct {
	Ref          string `json:"ref" mapstructure:"ref"`
	KnowledgeRef string `json:"knowledgeRef" mapstructure:"knowledgeRef"`
	Remote       string `json:"remote" mapstructure:"remote"`
	// StagingRef receives fetched remote notes before merge inspection
	StagingRef string `json:"stagingRef" mapstructure:"stagingRef"`
}

// GitConfig controls how git is invoked
type GitConfig struct {
	Binary    string `json:"binary" mapstructure:"binary"`
	TimeoutMs int    `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// QueryConfig contains read-pipeline tuning
type QueryConfig struct {
	// StalenessThreshold is the number of later commits touching a file
	// before an annotation is flagged stale
	StalenessThreshold int `json:"stalenessThreshold" mapstructure:"stalenessThreshold"`
	// MaxDependents caps the inverse-dependency result set
	MaxDependents int `json:"maxDependents" mapstructure:"maxDependents"`
	// MaxTimeline caps timeline results
	MaxTimeline int `json:"maxTimeline" mapstructure:"maxTimeline"`
	// FuzzyAnchorDistance is the max edit distance for fuzzy anchor matches
	FuzzyAnchorDistance int `json:"fuzzyAnchorDistance" mapstructure:"fuzzyAnchorDistance"`
}

// IdentityConfig controls author resolution for provenance stamping
type IdentityConfig struct {
	// AuthorsFile overrides the default .lore/authors.toml alias map
	AuthorsFile string `json:"authorsFile" mapstructure:"authorsFile"`
}

// CacheConfig contains dependency-index cache configuration
type CacheConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format"`
	Level      string `json:"level" mapstructure:"level"`
	File       bool   `json:"file" mapstructure:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays" mapstructure:"maxAgeDays"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Notes: NotesConfig{
			Ref:          "refs/notes/lore",
			KnowledgeRef: "refs/notes/lore-knowledge",
			Remote:       "origin",
			StagingRef:   "refs/notes/lore-staging",
		},
		Git: GitConfig{
			Binary:    "git",
			TimeoutMs: 30000,
		},
		Query: QueryConfig{
			StalenessThreshold:  5,
			MaxDependents:       50,
			MaxTimeline:         100,
			FuzzyAnchorDistance: 2,
		},
		Identity: IdentityConfig{},
		Cache: CacheConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			File:       true,
			MaxSize:    "10MB",
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// LoadConfig loads configuration from .lore/config.json
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("version", 1)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.LoreDir(repoRoot))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, return default config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	// Unmarshal into config struct, keeping defaults for absent sections
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .lore/config.json
func (c *Config) Save(repoRoot string) error {
	if _, err := paths.EnsureLoreDir(repoRoot); err != nil {
		return err
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Write to file
	return os.WriteFile(paths.ConfigPath(repoRoot), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Version, validation.Required, validation.In(1)),
		validation.Field(&c.Notes),
		validation.Field(&c.Git),
		validation.Field(&c.Query),
		validation.Field(&c.Logging),
	)
}

// Validate implements validation.Validatable
func (n NotesConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Ref, validation.Required, validation.By(notesRefRule)),
		validation.Field(&n.KnowledgeRef, validation.Required, validation.By(notesRefRule)),
		validation.Field(&n.StagingRef, validation.By(notesRefRule)),
		validation.Field(&n.Remote, validation.Required),
	)
}

// Validate implements validation.Validatable
func (g GitConfig) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Binary, validation.Required),
		validation.Field(&g.TimeoutMs, validation.Min(1000), validation.Max(600000)),
	)
}

// Validate implements validation.Validatable
func (q QueryConfig) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.StalenessThreshold, validation.Min(1)),
		validation.Field(&q.MaxDependents, validation.Min(1)),
		validation.Field(&q.MaxTimeline, validation.Min(1)),
		validation.Field(&q.FuzzyAnchorDistance, validation.Min(0), validation.Max(8)),
	)
}

// Validate implements validation.Validatable
func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.In("human", "json", "")),
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "warning", "error", "")),
		validation.Field(&l.MaxBackups, validation.Min(0)),
		validation.Field(&l.MaxAgeDays, validation.Min(0)),
	)
}

func notesRefRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "refs/notes/") {
		return validation.NewError("validation_notes_ref", "must start with refs/notes/")
	}
	return nil
}
