package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Queue       QueueConfig     `toml:"queue"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Site        SiteConfig      `toml:"site"`
	Solver      SolverConfig    `toml:"solver"`
	Browser     BrowserConfig   `toml:"browser"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// QueueConfig controls the job runner poll loop
type QueueConfig struct {
	PollInterval string `toml:"poll_interval"` // e.g., "10s" - how often the runner polls for pending jobs
	MaxRetries   int    `toml:"max_retries"`   // Max attempts per job before terminal failure
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// SiteConfig holds the target site endpoints and account credentials.
// Username/Password may use {key-name} references resolved from the KV store.
type SiteConfig struct {
	BaseURL     string `toml:"base_url"`      // Site root, also the login page
	ChatURLBase string `toml:"chat_url_base"` // Chat page prefix, target user ID is appended
	Username    string `toml:"username"`
	Password    string `toml:"password"`
}

// SolverConfig holds the external challenge-solving service configuration.
// An empty APIKey means challenges cannot be solved; login still works on
// accounts that are not challenged.
type SolverConfig struct {
	APIKey       string        `toml:"api_key"`
	BaseURL      string        `toml:"base_url"`      // Solving service endpoint
	SolveTimeout time.Duration `toml:"solve_timeout"` // Upper bound for one solve round-trip
	PollInterval time.Duration `toml:"poll_interval"` // Result poll cadence
	MaxAttempts  int           `toml:"max_attempts"`  // Retries for transient solver errors
	RetryDelay   time.Duration `toml:"retry_delay"`   // Fixed delay between solver retries
}

// BrowserConfig controls the Chrome instance used for site automation
type BrowserConfig struct {
	Headless          bool          `toml:"headless"`
	UserAgent         string        `toml:"user_agent"`
	UserDataDir       string        `toml:"user_data_dir"`      // Optional persistent profile directory
	NavigationTimeout time.Duration `toml:"navigation_timeout"` // Per-navigation timeout
	StepTimeout       time.Duration `toml:"step_timeout"`       // Per-UI-step timeout (waits, clicks)
	LoginTimeout      time.Duration `toml:"login_timeout"`      // Cumulative bound for one login attempt
	MaxLoginAttempts  int           `toml:"max_login_attempts"` // Login retries before terminal failure
	DiagnosticsDir    string        `toml:"diagnostics_dir"`    // Screenshots/HTML snapshots on failure
	ActionRate        time.Duration `toml:"action_rate"`        // Minimum spacing between site navigations
}

// SchedulerConfig configures recurring ad posts enqueued by cron
type SchedulerConfig struct {
	Enabled bool               `toml:"enabled"`
	Ads     []AdScheduleConfig `toml:"ads"`
}

// AdScheduleConfig is one recurring ad slot: at each cron tick a create_post
// job is enqueued with the rendered template as caption.
type AdScheduleConfig struct {
	Name       string            `toml:"name"`
	Schedule   string            `toml:"schedule"` // Cron expression
	TemplateID string            `toml:"template_id"`
	MediaPath  string            `toml:"media_path"`
	Variables  map[string]string `toml:"variables"` // Template placeholder values
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval: "10s",
			MaxRetries:   3,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Site: SiteConfig{
			BaseURL:     "https://onlyfans.com/",
			ChatURLBase: "https://onlyfans.com/my/chats/chat/",
		},
		Solver: SolverConfig{
			BaseURL:      "https://api.2captcha.com",
			SolveTimeout: 120 * time.Second,
			PollInterval: 5 * time.Second,
			MaxAttempts:  3,
			RetryDelay:   5 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
			NavigationTimeout: 90 * time.Second,
			StepTimeout:       15 * time.Second,
			LoginTimeout:      120 * time.Second,
			MaxLoginAttempts:  2,
			DiagnosticsDir:    "./data/diagnostics",
			ActionRate:        2 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files override
// earlier files. Priority: env > last file > ... > first file > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// PollIntervalDuration parses the queue poll interval, falling back to 10s
func (q QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(q.PollInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// applyEnvOverrides applies FANFLOW_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FANFLOW_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("FANFLOW_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FANFLOW_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Queue configuration
	if pollInterval := os.Getenv("FANFLOW_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if maxRetries := os.Getenv("FANFLOW_QUEUE_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Queue.MaxRetries = mr
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("FANFLOW_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("FANFLOW_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("FANFLOW_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("FANFLOW_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Site credentials
	if username := os.Getenv("FANFLOW_SITE_USERNAME"); username != "" {
		config.Site.Username = username
	}
	if password := os.Getenv("FANFLOW_SITE_PASSWORD"); password != "" {
		config.Site.Password = password
	}
	if baseURL := os.Getenv("FANFLOW_SITE_BASE_URL"); baseURL != "" {
		config.Site.BaseURL = baseURL
	}

	// Solver configuration
	if apiKey := os.Getenv("FANFLOW_SOLVER_API_KEY"); apiKey != "" {
		config.Solver.APIKey = apiKey
	}
	if baseURL := os.Getenv("FANFLOW_SOLVER_BASE_URL"); baseURL != "" {
		config.Solver.BaseURL = baseURL
	}
	if timeout := os.Getenv("FANFLOW_SOLVER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Solver.SolveTimeout = d
		}
	}

	// Browser configuration
	if headless := os.Getenv("FANFLOW_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if userAgent := os.Getenv("FANFLOW_BROWSER_USER_AGENT"); userAgent != "" {
		config.Browser.UserAgent = userAgent
	}
	if userDataDir := os.Getenv("FANFLOW_BROWSER_USER_DATA_DIR"); userDataDir != "" {
		config.Browser.UserDataDir = userDataDir
	}
	if maxAttempts := os.Getenv("FANFLOW_BROWSER_MAX_LOGIN_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.Browser.MaxLoginAttempts = ma
		}
	}
	if diagDir := os.Getenv("FANFLOW_BROWSER_DIAGNOSTICS_DIR"); diagDir != "" {
		config.Browser.DiagnosticsDir = diagDir
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string, headless *bool) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if headless != nil {
		config.Browser.Headless = *headless
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Queue.MaxRetries <= 0 {
		return fmt.Errorf("queue.max_retries must be positive, got %d", c.Queue.MaxRetries)
	}
	if c.Browser.MaxLoginAttempts <= 0 {
		return fmt.Errorf("browser.max_login_attempts must be positive, got %d", c.Browser.MaxLoginAttempts)
	}
	if _, err := time.ParseDuration(c.Queue.PollInterval); err != nil {
		return fmt.Errorf("queue.poll_interval is not a valid duration: %w", err)
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	return nil
}
