package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

func init() {
	// Auto-load .env file if present (don't override existing env vars)
	loadDotEnv(".env")
}

func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		// Remove surrounding quotes
		if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
			val = val[1 : len(val)-1]
		}
		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

const (
	defaultPort            = "4300"
	defaultEnvironment     = "development"
	defaultAnalyzerTimeout = 15 * time.Second
	defaultAnalyzerBaseURL = "http://localhost:8089"
)

// AnalyzerConfig controls the content analysis service client used to enrich
// tasks created from code-host issues.
type AnalyzerConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Config struct {
	Port        string
	DatabaseURL string
	Environment string
	Analyzer    AnalyzerConfig
}

func Load() (Config, error) {
	cfg := Config{
		Port:        firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), defaultPort),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Environment: resolveEnvironment(),
		Analyzer: AnalyzerConfig{
			BaseURL: firstNonEmpty(
				strings.TrimSpace(os.Getenv("ANALYZER_BASE_URL")),
				defaultAnalyzerBaseURL,
			),
			APIKey: strings.TrimSpace(os.Getenv("ANALYZER_API_KEY")),
		},
	}

	analyzerEnabled, err := parseBool("ANALYZER_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	cfg.Analyzer.Enabled = analyzerEnabled

	analyzerTimeout, err := parseDuration("ANALYZER_TIMEOUT", defaultAnalyzerTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.Analyzer.Timeout = analyzerTimeout

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if !c.Analyzer.Enabled {
		return nil
	}

	if c.Analyzer.BaseURL == "" {
		return fmt.Errorf("ANALYZER_BASE_URL must not be empty when the analyzer is enabled")
	}

	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("ANALYZER_TIMEOUT must be greater than zero")
	}

	if !isNonDevelopment(c.Environment) {
		return nil
	}

	if c.Analyzer.APIKey == "" {
		return fmt.Errorf("ANALYZER_API_KEY is required when the analyzer is enabled in non-development environments")
	}

	return nil
}

func resolveEnvironment() string {
	return strings.ToLower(firstNonEmpty(
		strings.TrimSpace(os.Getenv("APP_ENV")),
		strings.TrimSpace(os.Getenv("ENVIRONMENT")),
		strings.TrimSpace(os.Getenv("GO_ENV")),
		defaultEnvironment,
	))
}

func isNonDevelopment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "dev", "development", "local", "test":
		return false
	default:
		return true
	}
}

func parseBool(name string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return defaultValue, nil
	}

	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be a boolean value", name)
	}
}

func parseDuration(name string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", name, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", name)
	}

	return parsed, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
