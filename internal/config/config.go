package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// LLM
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Dashboard server
	Port        int    `mapstructure:"port" yaml:"port"`
	StaticDir   string `mapstructure:"static_dir" yaml:"static_dir"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Analysis engine
	SampleSize       int     `mapstructure:"sample_size" yaml:"sample_size"`
	NumericThreshold float64 `mapstructure:"numeric_threshold" yaml:"numeric_threshold"`
	TopValues        int     `mapstructure:"top_values" yaml:"top_values"`
	ChunkSize        int     `mapstructure:"chunk_size" yaml:"chunk_size"`
	MaxHistory       int     `mapstructure:"max_history" yaml:"max_history"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists every recognised configuration key.
var Keys = []string{
	"api_key", "provider", "model", "base_url", "max_tokens", "temperature",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"ollama_host", "ollama_timeout_sec",
	"port", "static_dir", "max_upload_mb",
	"sample_size", "numeric_threshold", "top_values", "chunk_size", "max_history",
	"log_level", "log_format",
}

func defaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("provider", "groq")
	v.SetDefault("model", "deepseek-r1-distill-qwen-32b")
	v.SetDefault("base_url", "")
	v.SetDefault("max_tokens", 1000)
	v.SetDefault("temperature", 0.7)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)

	v.SetDefault("port", 3000)
	v.SetDefault("static_dir", "dist")
	v.SetDefault("max_upload_mb", 50)

	v.SetDefault("sample_size", 1000)
	v.SetDefault("numeric_threshold", 0.7)
	v.SetDefault("top_values", 5)
	v.SetDefault("chunk_size", 10000)
	v.SetDefault("max_history", 0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// DefaultPath is ~/.csvdash/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".csvdash", "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default .env) into
// the process environment without overriding variables already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
// Env vars use the CSVDASH_ prefix; GROQ_API_KEY and PORT are also honored.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CSVDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", "CSVDASH_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("port", "CSVDASH_PORT", "PORT")
	defaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.csvdash/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Set assigns one key from its string form, parsing numbers as needed.
func (c *Global) Set(key, value string) error {
	v := viper.New()
	defaults(v)
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	var cur map[string]any
	if err := yaml.Unmarshal(b, &cur); err != nil {
		return fmt.Errorf("unmarshal yaml: %w", err)
	}
	if _, ok := cur[key]; !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		parsed = value
	}
	cur[key] = parsed
	if err := v.MergeConfigMap(cur); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	var out Global
	if err := v.Unmarshal(&out); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*c = out
	return nil
}

// Masked returns a copy with the API key redacted for display.
func (c Global) Masked() Global {
	if n := len(c.APIKey); n > 8 {
		c.APIKey = c.APIKey[:4] + strings.Repeat("*", n-8) + c.APIKey[n-4:]
	} else if n > 0 {
		c.APIKey = "****"
	}
	return c
}
