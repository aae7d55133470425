// Package config loads dealprep configuration from a YAML or TOML file,
// environment overrides and an optional service discovery file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/longhornrumble/dealprep/internal/version"
)

// Duration decodes "30s"-style strings from both YAML and TOML.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Log        Log        `yaml:"log" toml:"log"`
	Store      Store      `yaml:"store" toml:"store"`
	LLM        LLM        `yaml:"llm" toml:"llm"`
	Scrape     Scrape     `yaml:"scrape" toml:"scrape"`
	Validation Validation `yaml:"validation" toml:"validation"`
	Delivery   Delivery   `yaml:"delivery" toml:"delivery"`
	Worker     Worker     `yaml:"worker" toml:"worker"`
	Relay      Relay      `yaml:"relay" toml:"relay"`
}

type Log struct {
	Level  string `yaml:"level" toml:"level"`
	File   string `yaml:"file" toml:"file"`
	Format string `yaml:"format" toml:"format"`
}

// Store selects the artifact backend: memory, fs, sqlite, postgres, badger or remote.
type Store struct {
	Driver    string   `yaml:"driver" toml:"driver"`
	Dir       string   `yaml:"dir" toml:"dir"`
	DSN       string   `yaml:"dsn" toml:"dsn"`
	BaseURL   string   `yaml:"base_url" toml:"base_url"`
	Token     string   `yaml:"token" toml:"token"`
	TokenFile string   `yaml:"token_file" toml:"token_file"`
	CAPath    string   `yaml:"ca_path" toml:"ca_path"`
	Timeout   Duration `yaml:"timeout" toml:"timeout"`
}

type LLM struct {
	Provider     string   `yaml:"provider" toml:"provider"`
	APIKey       string   `yaml:"api_key" toml:"api_key"`
	Model        string   `yaml:"model" toml:"model"`
	BaseURL      string   `yaml:"base_url" toml:"base_url"`
	GoogleSearch bool     `yaml:"google_search" toml:"google_search"`
	URLContext   bool     `yaml:"url_context" toml:"url_context"`
	Timeout      Duration `yaml:"timeout" toml:"timeout"`
}

type Scrape struct {
	MaxPages     int      `yaml:"max_pages" toml:"max_pages"`
	Timeout      Duration `yaml:"timeout" toml:"timeout"`
	RateLimitRPS float64  `yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	UserAgent    string   `yaml:"user_agent" toml:"user_agent"`
	MaxTextChars int      `yaml:"max_text_chars" toml:"max_text_chars"`
	Disabled     bool     `yaml:"disabled" toml:"disabled"`
}

type Validation struct {
	SkipSourceValidation bool   `yaml:"skip_source_validation" toml:"skip_source_validation"`
	NotFoundMarker       string `yaml:"not_found_marker" toml:"not_found_marker"`
	MaxSynthesisAttempts int    `yaml:"max_synthesis_attempts" toml:"max_synthesis_attempts"`
}

type Delivery struct {
	CRM    CRM    `yaml:"crm" toml:"crm"`
	Email  Email  `yaml:"email" toml:"email"`
	Motion Motion `yaml:"motion" toml:"motion"`
}

type CRM struct {
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	Token     string `yaml:"token" toml:"token"`
	TokenFile string `yaml:"token_file" toml:"token_file"`
}

// Enabled reports whether the CRM adapter has somewhere to post.
func (c CRM) Enabled() bool { return strings.TrimSpace(c.BaseURL) != "" }

type Email struct {
	Sender       string `yaml:"sender" toml:"sender"`
	ClientID     string `yaml:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret"`
	RefreshToken string `yaml:"refresh_token" toml:"refresh_token"`
	AccessToken  string `yaml:"access_token" toml:"access_token"`
	// Endpoint overrides the Gmail API base URL (tests, proxies).
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// Enabled reports whether enough is configured to send mail.
func (e Email) Enabled() bool {
	if strings.TrimSpace(e.Sender) == "" {
		return false
	}
	return e.AccessToken != "" || (e.RefreshToken != "" && e.ClientID != "")
}

type Motion struct {
	BaseURL    string `yaml:"base_url" toml:"base_url"`
	APIKey     string `yaml:"api_key" toml:"api_key"`
	APIKeyFile string `yaml:"api_key_file" toml:"api_key_file"`
}

func (m Motion) Enabled() bool { return strings.TrimSpace(m.BaseURL) != "" }

type Worker struct {
	Workers        int      `yaml:"workers" toml:"workers"`
	MaxRetries     int      `yaml:"max_retries" toml:"max_retries"`
	RequestTimeout Duration `yaml:"request_timeout" toml:"request_timeout"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	FailFast       bool     `yaml:"fail_fast" toml:"fail_fast"`
}

type Relay struct {
	URL       string `yaml:"url" toml:"url"`
	Token     string `yaml:"token" toml:"token"`
	TokenFile string `yaml:"token_file" toml:"token_file"`
	CAPath    string `yaml:"ca_path" toml:"ca_path"`
}

// DataDir is the default home for file-backed stores.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "dealprep")
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:   Log{Level: "info", Format: "text"},
		Store: Store{Driver: "fs", Dir: DataDir(), Timeout: Duration(30 * time.Second)},
		LLM: LLM{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  Duration(2 * time.Minute),
		},
		Scrape: Scrape{
			MaxPages:     8,
			Timeout:      Duration(15 * time.Second),
			RateLimitRPS: 2,
			UserAgent:    version.UserAgent(),
			MaxTextChars: 6000,
		},
		Validation: Validation{MaxSynthesisAttempts: 2},
		Worker: Worker{
			Workers:        4,
			MaxRetries:     3,
			RequestTimeout: Duration(5 * time.Minute),
		},
	}
}

// Load reads path (YAML or TOML by extension) over the defaults, then applies
// environment overrides, service discovery and secret files. An empty path
// skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if p := strings.TrimSpace(path); p != "" {
		if err := decodeFile(p, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if p := strings.TrimSpace(os.Getenv("DEALPREP_SERVICE_DISCOVERY")); p != "" {
		svc, err := LoadServices(p)
		if err != nil {
			return Config{}, err
		}
		svc.apply(&cfg)
	}
	if err := cfg.resolveSecrets(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse config YAML %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse config TOML %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return nil
}

func (c *Config) resolveSecrets() error {
	var err error
	if c.Store.Token, err = secret(c.Store.Token, c.Store.TokenFile, "store.token"); err != nil {
		return err
	}
	if c.Delivery.CRM.Token, err = secret(c.Delivery.CRM.Token, c.Delivery.CRM.TokenFile, "delivery.crm.token"); err != nil {
		return err
	}
	if c.Delivery.Motion.APIKey, err = secret(c.Delivery.Motion.APIKey, c.Delivery.Motion.APIKeyFile, "delivery.motion.api_key"); err != nil {
		return err
	}
	if c.Relay.Token, err = secret(c.Relay.Token, c.Relay.TokenFile, "relay.token"); err != nil {
		return err
	}
	for _, p := range []*string{&c.LLM.APIKey, &c.Delivery.Email.ClientSecret, &c.Delivery.Email.RefreshToken, &c.Delivery.Email.AccessToken} {
		if *p, err = readValueOrFile(*p, "secret"); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations that cannot work at all.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "fs", "sqlite", "badger":
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	case "remote":
		if strings.TrimSpace(c.Store.BaseURL) == "" {
			return fmt.Errorf("store.base_url is required for the remote driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown llm.provider %q (want gemini or openai)", c.LLM.Provider)
	}
	if c.Worker.Workers <= 0 {
		return fmt.Errorf("worker.workers must be > 0")
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must be >= 0")
	}
	if c.Validation.MaxSynthesisAttempts <= 0 {
		return fmt.Errorf("validation.max_synthesis_attempts must be > 0")
	}
	return nil
}

// secret prefers an inline value and falls back to file.
func secret(inline, file, name string) (string, error) {
	if v, err := readValueOrFile(inline, name); err != nil || v != "" {
		return v, err
	}
	file = strings.TrimSpace(file)
	if file == "" {
		return "", nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s file: %w", name, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// readValueOrFile returns v itself, or the contents of the file v names.
func readValueOrFile(v string, name string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	if strings.Contains(v, "\n") || strings.Contains(v, "\r") {
		return v, nil
	}
	if fi, err := os.Stat(v); err == nil && !fi.IsDir() {
		b, err := os.ReadFile(v)
		if err != nil {
			return "", fmt.Errorf("read %s file: %w", name, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return v, nil
}
