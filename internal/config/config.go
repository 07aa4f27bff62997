package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"eve_analyst/internal/analysis"
	"eve_analyst/internal/ipclass"
	"eve_analyst/internal/sink"
	"eve_analyst/internal/tail"
)

// ErrMissing marks a required value that is absent.
var ErrMissing = errors.New("required configuration missing")

const (
	OutputFile = "file"
	OutputNATS = "nats"

	StartBeginning = "beginning"
	StartEnd       = "end"
)

type Config struct {
	EVELogPath            string   `yaml:"eve_log_path"`
	CustomPrivateNetworks []string `yaml:"custom_private_networks"`
	KnownResolvers        []string `yaml:"known_resolvers"`
	MetricsBind           string   `yaml:"metrics_bind"`

	Output   OutputConfig   `yaml:"output"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Tail     TailConfig     `yaml:"tail"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type OutputConfig struct {
	Kind        string `yaml:"kind"`
	Dir         string `yaml:"dir"`
	Format      string `yaml:"format"`
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

type AnalysisConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryMax    int           `yaml:"retry_max"`
	RetryBase   time.Duration `yaml:"retry_base"`
}

type TailConfig struct {
	StartAt       string        `yaml:"start_at"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxBatchBytes int64         `yaml:"max_batch_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var defaultCustomPrivate = []string{"20.20.20.0/24", "192.168.0.0/16"}

var defaultResolvers = []string{
	"1.1.1.1", "1.1.1.3", "1.0.0.1", "8.8.8.8", "8.8.4.4", "9.9.9.9", "149.112.112.112",
	"208.67.222.222", "208.67.220.220", "64.6.64.6", "64.6.65.6", "185.228.168.9",
	"185.228.169.9", "76.76.19.19", "76.76.2.0",
}

// Load reads the YAML file at path, fills defaults, applies environment
// overrides and validates the result. An empty path or a missing file is
// accepted when the environment supplies every required value.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that only need part of
// the configuration.
func Read(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CustomPrivateNetworks == nil {
		c.CustomPrivateNetworks = append([]string(nil), defaultCustomPrivate...)
	}
	if c.KnownResolvers == nil {
		c.KnownResolvers = append([]string(nil), defaultResolvers...)
	}
	if c.MetricsBind == "" {
		c.MetricsBind = "127.0.0.1:9110"
	}
	if c.Output.Kind == "" {
		c.Output.Kind = OutputFile
	}
	if c.Output.Format == "" {
		c.Output.Format = sink.FormatText
	}
	if c.Analysis.BaseURL == "" {
		c.Analysis.BaseURL = analysis.DefaultBaseURL
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = "mixtral-8x7b-32768"
	}
	if c.Analysis.MaxTokens == 0 {
		c.Analysis.MaxTokens = 200
	}
	if c.Analysis.Temperature == nil {
		t := 0.5
		c.Analysis.Temperature = &t
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = 30 * time.Second
	}
	if c.Analysis.RetryMax == 0 {
		c.Analysis.RetryMax = 2
	}
	if c.Analysis.RetryBase == 0 {
		c.Analysis.RetryBase = time.Second
	}
	if c.Tail.StartAt == "" {
		c.Tail.StartAt = StartBeginning
	}
	if c.Tail.PollInterval == 0 {
		c.Tail.PollInterval = time.Second
	}
	if c.Tail.MaxBatchBytes == 0 {
		c.Tail.MaxBatchBytes = tail.DefaultMaxBatchBytes
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("EVE_JSON_LOG_PATH"); v != "" {
		c.EVELogPath = v
	}
	if v := getenv("OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := getenv("GROQ_API_KEY"); v != "" {
		c.Analysis.APIKey = v
	}
	if v := getenv("EVE_ANALYST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) validate() error {
	if c.EVELogPath == "" {
		return fmt.Errorf("%w: eve_log_path (or EVE_JSON_LOG_PATH)", ErrMissing)
	}
	switch c.Output.Kind {
	case OutputFile:
		if c.Output.Dir == "" {
			return fmt.Errorf("%w: output.dir (or OUTPUT_DIR)", ErrMissing)
		}
		if c.Output.Format != sink.FormatText && c.Output.Format != sink.FormatJSONL {
			return fmt.Errorf("output.format must be %q or %q", sink.FormatText, sink.FormatJSONL)
		}
	case OutputNATS:
		if c.Output.NATSURL == "" {
			return fmt.Errorf("%w: output.nats_url", ErrMissing)
		}
		if c.Output.NATSSubject == "" {
			return fmt.Errorf("%w: output.nats_subject", ErrMissing)
		}
	default:
		return fmt.Errorf("output.kind must be %q or %q", OutputFile, OutputNATS)
	}
	if c.Analysis.APIKey == "" {
		return fmt.Errorf("%w: analysis.api_key (or GROQ_API_KEY)", ErrMissing)
	}
	if c.Tail.StartAt != StartBeginning && c.Tail.StartAt != StartEnd {
		return fmt.Errorf("tail.start_at must be %q or %q", StartBeginning, StartEnd)
	}
	if c.Tail.PollInterval < 0 {
		return errors.New("tail.poll_interval must not be negative")
	}
	if _, err := c.RuleSet(); err != nil {
		return err
	}
	return nil
}

// RuleSet builds the address classification layers from the config.
func (c *Config) RuleSet() (*ipclass.RuleSet, error) {
	return ipclass.NewRuleSet(c.CustomPrivateNetworks, c.KnownResolvers)
}

// AnalysisClientConfig maps the analysis section onto the client settings.
func (c *Config) AnalysisClientConfig() analysis.Config {
	return analysis.Config{
		BaseURL:     c.Analysis.BaseURL,
		APIKey:      c.Analysis.APIKey,
		Model:       c.Analysis.Model,
		MaxTokens:   c.Analysis.MaxTokens,
		Temperature: *c.Analysis.Temperature,
		Timeout:     c.Analysis.Timeout,
		RetryMax:    c.Analysis.RetryMax,
		RetryBase:   c.Analysis.RetryBase,
	}
}
