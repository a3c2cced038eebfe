// Package config provides configuration file, environment and .env support for crew.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/richhaase/code-review-crew/internal/agent"
	"github.com/richhaase/code-review-crew/internal/llm"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = ".crew.yaml"

// DotEnvFileName is the optional file of environment variables loaded at startup.
const DotEnvFileName = ".env"

// Duration handles YAML duration parsing.
// Supports both Go duration format ("5m", "300s") and numeric seconds.
type Duration time.Duration

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	default:
		return fmt.Errorf("invalid duration type: %T", v)
	}
	return nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Config represents the .crew.yaml file. Pointer fields distinguish
// "unset" from zero values.
type Config struct {
	Provider *string       `yaml:"provider"`
	Model    *string       `yaml:"model"`
	BaseURL  *string       `yaml:"base_url"`
	Timeout  *Duration     `yaml:"timeout"`
	Retries  *int          `yaml:"retries"`
	Agents   []string      `yaml:"agents"`
	Server   ServerConfig  `yaml:"server"`
	History  HistoryConfig `yaml:"history"`
	Archive  ArchiveConfig `yaml:"archive"`
	Cache    CacheConfig   `yaml:"cache"`
}

// ServerConfig configures `crew serve`.
type ServerConfig struct {
	Addr        *string  `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	RateLimit   *float64 `yaml:"rate_limit"`
	Burst       *int     `yaml:"burst"`
}

// HistoryConfig configures the SQL review history.
type HistoryConfig struct {
	Driver *string `yaml:"driver"`
	DSN    *string `yaml:"dsn"`
}

// ArchiveConfig configures the S3-compatible report archive.
// Credentials come from the environment only.
type ArchiveConfig struct {
	Endpoint *string `yaml:"endpoint"`
	Bucket   *string `yaml:"bucket"`
	Region   *string `yaml:"region"`
	UseSSL   *bool   `yaml:"use_ssl"`
}

// CacheConfig configures the review result cache.
type CacheConfig struct {
	Backend  *string   `yaml:"backend"`
	Dir      *string   `yaml:"dir"`
	RedisURL *string   `yaml:"redis_url"`
	TTL      *Duration `yaml:"ttl"`
}

// LoadResult contains the loaded config and any warnings encountered.
type LoadResult struct {
	Config *Config
	// Path is the file that was read, or "" when none existed.
	Path     string
	Warnings []string
}

// LoadWithWarnings reads .crew.yaml from the working directory.
// Returns an empty config (not error) if the file doesn't exist.
func LoadWithWarnings() (*LoadResult, error) {
	wd, err := os.Getwd()
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}
	return LoadFromDirWithWarnings(wd)
}

// LoadFromDirWithWarnings reads .crew.yaml from dir.
func LoadFromDirWithWarnings(dir string) (*LoadResult, error) {
	return LoadFromPathWithWarnings(filepath.Join(dir, ConfigFileName))
}

// LoadFromPathWithWarnings reads a config file and returns warnings for unknown keys.
// Returns an empty config (not error) if the file doesn't exist.
// Returns an error if the file exists but is invalid YAML or holds invalid values.
func LoadFromPathWithWarnings(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &LoadResult{Config: &Config{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	warnings := checkUnknownKeys(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFileName, err)
	}

	return &LoadResult{Config: &cfg, Path: path, Warnings: warnings}, nil
}

// knownTopLevelKeys are the valid top-level keys in the config file.
var knownTopLevelKeys = []string{"provider", "model", "base_url", "timeout", "retries", "agents", "server", "history", "archive", "cache"}

// knownSectionKeys are the valid keys of each nested section.
var knownSectionKeys = map[string][]string{
	"server":  {"addr", "cors_origins", "rate_limit", "burst"},
	"history": {"driver", "dsn"},
	"archive": {"endpoint", "bucket", "region", "use_ssl"},
	"cache":   {"backend", "dir", "redis_url", "ttl"},
}

// checkUnknownKeys checks for unknown keys in the YAML data and returns warnings.
func checkUnknownKeys(data []byte) []string {
	var warnings []string

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Let the main parser report the error.
		return nil
	}

	for _, key := range sortedKeys(raw) {
		if !slices.Contains(knownTopLevelKeys, key) {
			warning := fmt.Sprintf("unknown key %q in %s", key, ConfigFileName)
			if suggestion := findSimilar(key, knownTopLevelKeys); suggestion != "" {
				warning += fmt.Sprintf(" (did you mean %q?)", suggestion)
			}
			warnings = append(warnings, warning)
			continue
		}

		known, isSection := knownSectionKeys[key]
		section, ok := raw[key].(map[string]any)
		if !isSection || !ok {
			continue
		}
		for _, sub := range sortedKeys(section) {
			if slices.Contains(known, sub) {
				continue
			}
			warning := fmt.Sprintf("unknown key %q in %s section of %s", sub, key, ConfigFileName)
			if suggestion := findSimilar(sub, known); suggestion != "" {
				warning += fmt.Sprintf(" (did you mean %q?)", suggestion)
			}
			warnings = append(warnings, warning)
		}
	}

	return warnings
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// findSimilar finds the most similar string from candidates using Levenshtein distance.
// Returns empty string if no candidate is similar enough (threshold: 3 edits).
func findSimilar(input string, candidates []string) string {
	const maxDistance = 3
	bestMatch := ""
	bestDistance := maxDistance + 1

	for _, candidate := range candidates {
		if dist := levenshtein(input, candidate); dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshtein calculates the edit distance between two strings using two rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Validate checks the values present in the file.
func (c *Config) Validate() error {
	if c.Provider != nil && !llm.IsSupported(strings.ToLower(strings.TrimSpace(*c.Provider))) {
		return fmt.Errorf("provider must be one of %v, got %q", llm.SupportedProviders, *c.Provider)
	}
	if c.Retries != nil && *c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", *c.Retries)
	}
	if c.Timeout != nil && *c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %s", time.Duration(*c.Timeout))
	}
	if len(c.Agents) > 0 {
		if err := agent.ValidateRoleNames(agent.ParseRoleNames(strings.Join(c.Agents, ","))); err != nil {
			return fmt.Errorf("agents: %w", err)
		}
	}
	if c.Server.RateLimit != nil && *c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be >= 0, got %v", *c.Server.RateLimit)
	}
	if c.Server.Burst != nil && *c.Server.Burst < 0 {
		return fmt.Errorf("server.burst must be >= 0, got %d", *c.Server.Burst)
	}
	if c.History.Driver != nil && !slices.Contains(HistoryDrivers, *c.History.Driver) {
		return fmt.Errorf("history.driver must be one of %v, got %q", HistoryDrivers, *c.History.Driver)
	}
	if c.Cache.Backend != nil && !slices.Contains(CacheBackends, *c.Cache.Backend) {
		return fmt.Errorf("cache.backend must be one of %v, got %q", CacheBackends, *c.Cache.Backend)
	}
	if c.Cache.TTL != nil && *c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0, got %s", time.Duration(*c.Cache.TTL))
	}
	return nil
}

// Supported history drivers and cache backends.
var (
	HistoryDrivers = []string{"mysql", "postgres"}
	CacheBackends  = []string{"none", "file", "redis"}
)

// ResolvedConfig holds the final resolved configuration values.
type ResolvedConfig struct {
	Provider string
	Model    string
	BaseURL  string
	// APIKey is read from the provider's environment variable, never from the file.
	APIKey  string
	Timeout time.Duration
	Retries int
	Agents  []string

	Server  ResolvedServer
	History ResolvedHistory
	Archive ResolvedArchive
	Cache   ResolvedCache
}

// ResolvedServer holds HTTP server settings.
type ResolvedServer struct {
	Addr        string
	CORSOrigins []string
	RateLimit   float64
	Burst       int
}

// ResolvedHistory holds review history settings. Empty DSN disables history.
type ResolvedHistory struct {
	Driver string
	DSN    string
}

// ResolvedArchive holds report archive settings. Empty Endpoint disables archiving.
type ResolvedArchive struct {
	Endpoint  string
	Bucket    string
	Region    string
	UseSSL    bool
	AccessKey string
	SecretKey string
}

// ResolvedCache holds result cache settings.
type ResolvedCache struct {
	Backend  string
	Dir      string
	RedisURL string
	TTL      time.Duration
}

// Enabled reports whether review history is configured.
func (h ResolvedHistory) Enabled() bool { return h.DSN != "" }

// Enabled reports whether archiving is configured.
func (a ResolvedArchive) Enabled() bool { return a.Endpoint != "" && a.Bucket != "" }

// Defaults returns the built-in default values.
func Defaults() ResolvedConfig {
	return ResolvedConfig{
		Provider: llm.DefaultProvider,
		Timeout:  2 * time.Minute,
		Retries:  2,
		Agents:   slices.Clone(agent.DefaultOrder),
		Server: ResolvedServer{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			RateLimit:   1,
			Burst:       5,
		},
		History: ResolvedHistory{Driver: "postgres"},
		Archive: ResolvedArchive{Bucket: "code-reviews", Region: "us-east-1", UseSSL: true},
		Cache:   ResolvedCache{Backend: "none", TTL: 24 * time.Hour},
	}
}

// FlagState tracks whether a flag was explicitly set.
type FlagState struct {
	ProviderSet bool
	ModelSet    bool
	BaseURLSet  bool
	TimeoutSet  bool
	RetriesSet  bool
	AgentsSet   bool
	AddrSet     bool
}

// EnvState captures CREW_* variables and provider keys.
type EnvState struct {
	Provider    string
	ProviderSet bool
	Model       string
	ModelSet    bool
	BaseURL     string
	BaseURLSet  bool
	Timeout     time.Duration
	TimeoutSet  bool
	Retries     int
	RetriesSet  bool
	Agents      []string
	AgentsSet   bool
	Addr        string
	AddrSet     bool

	// Secrets and backend settings. Empty means unset.
	GoogleAPIKey     string
	OpenAIAPIKey     string
	HistoryDriver    string
	HistoryDSN       string
	ArchiveEndpoint  string
	ArchiveBucket    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	CacheBackend     string
	RedisURL         string
}

// LoadEnvState reads environment variables and returns their state plus
// warnings for values that could not be parsed. Unparseable values are ignored.
func LoadEnvState() (EnvState, []string) {
	var state EnvState
	var warnings []string

	if v := os.Getenv("CREW_PROVIDER"); v != "" {
		state.Provider, state.ProviderSet = v, true
	}
	if v := os.Getenv("CREW_MODEL"); v != "" {
		state.Model, state.ModelSet = v, true
	}
	if v := os.Getenv("CREW_BASE_URL"); v != "" {
		state.BaseURL, state.BaseURLSet = v, true
	}
	if v := os.Getenv("CREW_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			state.Timeout, state.TimeoutSet = d, true
		} else if secs, err := strconv.Atoi(v); err == nil {
			state.Timeout, state.TimeoutSet = time.Duration(secs)*time.Second, true
		} else {
			warnings = append(warnings, fmt.Sprintf("CREW_TIMEOUT=%q is not a duration", v))
		}
	}
	if v := os.Getenv("CREW_RETRIES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			state.Retries, state.RetriesSet = i, true
		} else {
			warnings = append(warnings, fmt.Sprintf("CREW_RETRIES=%q is not an integer", v))
		}
	}
	if v := os.Getenv("CREW_AGENTS"); v != "" {
		state.Agents, state.AgentsSet = agent.ParseRoleNames(v), true
	}
	if v := os.Getenv("CREW_ADDR"); v != "" {
		state.Addr, state.AddrSet = v, true
	}

	state.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	if state.GoogleAPIKey == "" {
		state.GoogleAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	state.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	state.HistoryDriver = os.Getenv("CREW_HISTORY_DRIVER")
	state.HistoryDSN = os.Getenv("CREW_HISTORY_DSN")
	state.ArchiveEndpoint = os.Getenv("CREW_ARCHIVE_ENDPOINT")
	state.ArchiveBucket = os.Getenv("CREW_ARCHIVE_BUCKET")
	state.ArchiveAccessKey = os.Getenv("CREW_ARCHIVE_ACCESS_KEY")
	state.ArchiveSecretKey = os.Getenv("CREW_ARCHIVE_SECRET_KEY")
	state.CacheBackend = os.Getenv("CREW_CACHE_BACKEND")
	state.RedisURL = os.Getenv("CREW_REDIS_URL")

	return state, warnings
}

// APIKeyFor returns the API key for provider from the environment state.
func (e EnvState) APIKeyFor(provider string) string {
	switch provider {
	case llm.ProviderGemini:
		return e.GoogleAPIKey
	case llm.ProviderOpenAI:
		return e.OpenAIAPIKey
	default:
		return ""
	}
}

// LoadDotEnv loads variables from path into the process environment without
// overriding variables that are already set. It reports whether the file existed.
func LoadDotEnv(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return true, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return true, nil
}

// Resolve merges config file values with env vars and flags.
// Precedence: flags > env vars > config file > defaults
func Resolve(cfg *Config, env EnvState, flags FlagState, flagValues ResolvedConfig) ResolvedConfig {
	result := Defaults()

	if cfg != nil {
		applyFile(&result, cfg)
	}

	if env.ProviderSet {
		result.Provider = env.Provider
	}
	if env.ModelSet {
		result.Model = env.Model
	}
	if env.BaseURLSet {
		result.BaseURL = env.BaseURL
	}
	if env.TimeoutSet {
		result.Timeout = env.Timeout
	}
	if env.RetriesSet {
		result.Retries = env.Retries
	}
	if env.AgentsSet {
		result.Agents = env.Agents
	}
	if env.AddrSet {
		result.Server.Addr = env.Addr
	}
	setIfNotEmpty(&result.History.Driver, env.HistoryDriver)
	setIfNotEmpty(&result.History.DSN, env.HistoryDSN)
	setIfNotEmpty(&result.Archive.Endpoint, env.ArchiveEndpoint)
	setIfNotEmpty(&result.Archive.Bucket, env.ArchiveBucket)
	setIfNotEmpty(&result.Cache.Backend, env.CacheBackend)
	setIfNotEmpty(&result.Cache.RedisURL, env.RedisURL)
	result.Archive.AccessKey = env.ArchiveAccessKey
	result.Archive.SecretKey = env.ArchiveSecretKey

	if flags.ProviderSet {
		result.Provider = flagValues.Provider
	}
	if flags.ModelSet {
		result.Model = flagValues.Model
	}
	if flags.BaseURLSet {
		result.BaseURL = flagValues.BaseURL
	}
	if flags.TimeoutSet {
		result.Timeout = flagValues.Timeout
	}
	if flags.RetriesSet {
		result.Retries = flagValues.Retries
	}
	if flags.AgentsSet {
		result.Agents = flagValues.Agents
	}
	if flags.AddrSet {
		result.Server.Addr = flagValues.Server.Addr
	}

	result.Provider = strings.ToLower(strings.TrimSpace(result.Provider))
	if result.Model == "" {
		result.Model = llm.DefaultModel(result.Provider)
	}
	result.APIKey = env.APIKeyFor(result.Provider)
	if result.Cache.Dir == "" {
		result.Cache.Dir = defaultCacheDir()
	}

	return result
}

func applyFile(result *ResolvedConfig, cfg *Config) {
	setIfPresent(&result.Provider, cfg.Provider)
	setIfPresent(&result.Model, cfg.Model)
	setIfPresent(&result.BaseURL, cfg.BaseURL)
	if cfg.Timeout != nil {
		result.Timeout = cfg.Timeout.AsDuration()
	}
	setIfPresent(&result.Retries, cfg.Retries)
	if len(cfg.Agents) > 0 {
		result.Agents = agent.ParseRoleNames(strings.Join(cfg.Agents, ","))
	}

	setIfPresent(&result.Server.Addr, cfg.Server.Addr)
	if len(cfg.Server.CORSOrigins) > 0 {
		result.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	}
	setIfPresent(&result.Server.RateLimit, cfg.Server.RateLimit)
	setIfPresent(&result.Server.Burst, cfg.Server.Burst)

	setIfPresent(&result.History.Driver, cfg.History.Driver)
	setIfPresent(&result.History.DSN, cfg.History.DSN)

	setIfPresent(&result.Archive.Endpoint, cfg.Archive.Endpoint)
	setIfPresent(&result.Archive.Bucket, cfg.Archive.Bucket)
	setIfPresent(&result.Archive.Region, cfg.Archive.Region)
	setIfPresent(&result.Archive.UseSSL, cfg.Archive.UseSSL)

	setIfPresent(&result.Cache.Backend, cfg.Cache.Backend)
	setIfPresent(&result.Cache.Dir, cfg.Cache.Dir)
	setIfPresent(&result.Cache.RedisURL, cfg.Cache.RedisURL)
	if cfg.Cache.TTL != nil {
		result.Cache.TTL = cfg.Cache.TTL.AsDuration()
	}
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setIfNotEmpty(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// defaultCacheDir returns the per-user cache directory for file-backed caching.
func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "crew")
	}
	return filepath.Join(dir, "crew")
}

// ValidateAll checks resolved values, returning every problem found.
func (r ResolvedConfig) ValidateAll() []string {
	var errs []string
	if !llm.IsSupported(r.Provider) {
		errs = append(errs, fmt.Sprintf("provider must be one of %v, got %q", llm.SupportedProviders, r.Provider))
	}
	if r.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("timeout must be > 0, got %s", r.Timeout))
	}
	if r.Retries < 0 {
		errs = append(errs, fmt.Sprintf("retries must be >= 0, got %d", r.Retries))
	}
	if err := agent.ValidateRoleNames(r.Agents); err != nil {
		errs = append(errs, err.Error())
	}
	if r.History.Enabled() && !slices.Contains(HistoryDrivers, r.History.Driver) {
		errs = append(errs, fmt.Sprintf("history driver must be one of %v, got %q", HistoryDrivers, r.History.Driver))
	}
	if !slices.Contains(CacheBackends, r.Cache.Backend) {
		errs = append(errs, fmt.Sprintf("cache backend must be one of %v, got %q", CacheBackends, r.Cache.Backend))
	}
	if r.Cache.Backend == "redis" && r.Cache.RedisURL == "" {
		errs = append(errs, "cache backend redis requires redis_url or CREW_REDIS_URL")
	}
	if r.Archive.Enabled() && (r.Archive.AccessKey == "" || r.Archive.SecretKey == "") {
		errs = append(errs, "archive requires CREW_ARCHIVE_ACCESS_KEY and CREW_ARCHIVE_SECRET_KEY")
	}
	return errs
}

// Validate returns the first problem found by ValidateAll, if any.
func (r ResolvedConfig) Validate() error {
	if errs := r.ValidateAll(); len(errs) > 0 {
		return errors.New(errs[0])
	}
	return nil
}

// RequireAPIKey fails when the provider needs an API key that is not set.
func (r ResolvedConfig) RequireAPIKey() error {
	if !llm.RequiresAPIKey(r.Provider) || r.APIKey != "" {
		return nil
	}
	name := "GOOGLE_API_KEY"
	if r.Provider == llm.ProviderOpenAI {
		name = "OPENAI_API_KEY"
	}
	return fmt.Errorf("%s is not set (required by provider %s): %w", name, r.Provider, llm.ErrNoAPIKey)
}

// Starter is the commented template written by `crew config init`.
const Starter = `# crew configuration file

# LLM provider: gemini, openai, claude-cli, codex-cli, gemini-cli (default: gemini)
# provider: gemini

# Model name (default depends on provider)
# model: gemini-2.0-flash

# API root for gemini or an OpenAI-compatible server
# base_url: ""

# Timeout per agent, Go duration format (default: 2m)
# timeout: 2m

# Retries for transient provider errors (default: 2)
# retries: 2

# Agents to run, in order (default: all four)
# agents:
#   - security
#   - style
#   - performance
#   - documentation

# HTTP server settings for 'crew serve'
# server:
#   addr: ":8080"
#   cors_origins: ["*"]
#   rate_limit: 1     # requests per second per client
#   burst: 5

# Review history (DSN may also come from CREW_HISTORY_DSN)
# history:
#   driver: postgres  # or mysql
#   dsn: ""

# Report archive on S3-compatible storage
# (credentials from CREW_ARCHIVE_ACCESS_KEY / CREW_ARCHIVE_SECRET_KEY)
# archive:
#   endpoint: ""
#   bucket: code-reviews
#   region: us-east-1
#   use_ssl: true

# Result cache: none, file, redis
# cache:
#   backend: none
#   dir: ""
#   redis_url: ""
#   ttl: 24h
`
