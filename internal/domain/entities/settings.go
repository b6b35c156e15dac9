package entities

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is the public GitHub REST API root.
	DefaultBaseURL = "https://api.github.com/"
	// DefaultWorkers is the size of the resolution worker pool.
	DefaultWorkers = 4
	// DefaultCallTimeout bounds every remote call.
	DefaultCallTimeout = 15 * time.Second

	SourceTags     = "tags"
	SourceReleases = "releases"
	SourceGit      = "git"
)

var validSources = []string{SourceTags, SourceReleases, SourceGit}

// tokenEnvVars are consulted in order when no token is configured.
var tokenEnvVars = []string{"GITHUB_TOKEN", "GH_TOKEN"} //nolint:gochecknoglobals // env var names, not credentials

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Settings is the top-level configuration.
type Settings struct {
	BaseURL        string         `yaml:"base-url"`
	Token          string         `yaml:"token"`  // Inline, ${ENV_VAR}, or file path
	Source         string         `yaml:"source"` // "tags", "releases" or "git"
	BreakingPolicy BreakingPolicy `yaml:"breaking-policy"`
	Run            RunSettings    `yaml:"run"`
}

// RunSettings tunes the orchestrator.
type RunSettings struct {
	Workers           int     `yaml:"workers"`
	CallTimeout       string  `yaml:"call-timeout"` // Duration string (e.g., "15s")
	RequestsPerSecond float64 `yaml:"requests-per-second"`
}

// NewDefaultSettings returns settings with every default applied and the token
// taken from the environment.
func NewDefaultSettings() *Settings {
	settings := &Settings{}
	settings.ensureDefaults()
	return settings
}

// NewSettings reads and parses a configuration file, expanding environment
// variables and resolving token file paths.
func NewSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var settings Settings
	if unmarshalErr := yaml.Unmarshal(data, &settings); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	settings.Token = ResolveToken(settings.Token)
	settings.ensureDefaults()

	if validateErr := settings.Validate(); validateErr != nil {
		return nil, validateErr
	}

	return &settings, nil
}

// ensureDefaults fills every unset field.
func (s *Settings) ensureDefaults() {
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	if s.Token == "" {
		s.Token = tokenFromEnv()
	}
	if s.Source == "" {
		s.Source = SourceTags
	}
	if s.BreakingPolicy == "" {
		s.BreakingPolicy = BreakingPolicyMajor
	}
	if s.Run.Workers == 0 {
		s.Run.Workers = DefaultWorkers
	}
}

// Validate checks all configuration values for validity.
func (s *Settings) Validate() error {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base-url must be an absolute URL, got %q", s.BaseURL)
	}
	if !slices.Contains(validSources, s.Source) {
		return fmt.Errorf("source must be one of %v, got %q", validSources, s.Source)
	}
	if !s.BreakingPolicy.Valid() {
		return fmt.Errorf("breaking-policy must be %q or %q, got %q",
			BreakingPolicyMajor, BreakingPolicyZeroVer, s.BreakingPolicy)
	}
	if s.Run.Workers < 1 {
		return fmt.Errorf("run.workers must be at least 1, got %d", s.Run.Workers)
	}
	if s.Run.CallTimeout != "" {
		if _, parseErr := time.ParseDuration(s.Run.CallTimeout); parseErr != nil {
			return fmt.Errorf("invalid run.call-timeout %q: %w", s.Run.CallTimeout, parseErr)
		}
	}
	if s.Run.RequestsPerSecond < 0 {
		return fmt.Errorf("run.requests-per-second must not be negative, got %v", s.Run.RequestsPerSecond)
	}
	return nil
}

// GetCallTimeout returns the configured per-call timeout.
// Returns DefaultCallTimeout if not configured or invalid.
func (s *Settings) GetCallTimeout() time.Duration {
	if s == nil || s.Run.CallTimeout == "" {
		return DefaultCallTimeout
	}
	d, err := time.ParseDuration(s.Run.CallTimeout)
	if err != nil || d <= 0 {
		return DefaultCallTimeout
	}
	return d
}

// configFileNames are tried in order inside every search directory.
var configFileNames = []string{ //nolint:gochecknoglobals // fixed lookup order
	".pinbump.yaml", ".pinbump.yml", "pinbump.yaml", "pinbump.yml",
}

// FindConfigFile returns the first config file in the working directory,
// ./.config, ./configs, the home directory or ~/.config.
func FindConfigFile() (string, error) {
	for _, dir := range configSearchDirs() {
		for _, name := range configFileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	return "", ErrConfigNotFound
}

func configSearchDirs() []string {
	dirs := []string{".", ".config", "configs"}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs, home, filepath.Join(home, ".config"))
	}
	return dirs
}

// ResolveToken expands environment variable references (${VAR}) and, if the
// resulting string is a path to an existing file, reads the token from the file.
func ResolveToken(raw string) string {
	if raw == "" {
		return raw
	}

	resolved := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		logger.Warnf("Environment variable %q is not set", varName)
		return ""
	})

	if resolved == "" {
		return resolved
	}

	if info, statErr := os.Stat(resolved); statErr == nil && !info.IsDir() {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			logger.Warnf("Failed to read token file %q: %v", resolved, readErr)
			return resolved
		}
		logger.Debugf("Read token from file %q", resolved)
		return strings.TrimSpace(string(data))
	}

	return resolved
}

func tokenFromEnv() string {
	for _, name := range tokenEnvVars {
		if token := os.Getenv(name); token != "" {
			return token
		}
	}
	return ""
}
