// Package config holds the run settings for nppes-extract.
//
// Defaults reproduce the canonical run: the CMS index page, Delaware, 250,000-row
// batches and a 120 second HTTP timeout. An optional .env file and NPPES_*
// environment variables override the defaults; command-line flags override both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultIndexURL  = "https://download.cms.gov/nppes/NPI_Files.html"
	DefaultState     = "DE"
	DefaultOutput    = "nppes_active_DE_v2_latest.csv"
	DefaultBatchSize = 250000
	DefaultTimeout   = 120 * time.Second
	DefaultEncoding  = EncodingUTF8
)

// Supported input encodings
const (
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
)

// Environment variable names
const (
	EnvIndexURL  = "NPPES_INDEX_URL"
	EnvState     = "NPPES_STATE"
	EnvOutput    = "NPPES_OUTPUT"
	EnvBatchSize = "NPPES_BATCH_SIZE"
	EnvTimeout   = "NPPES_TIMEOUT"
	EnvEncoding  = "NPPES_ENCODING"
)

// Config holds all settings for one extraction run
type Config struct {
	IndexURL  string
	State     string
	Output    string
	BatchSize int
	Timeout   time.Duration
	Encoding  string
	Manifest  bool
	Verbose   bool
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		IndexURL:  DefaultIndexURL,
		State:     DefaultState,
		Output:    DefaultOutput,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Encoding:  DefaultEncoding,
		Manifest:  true,
	}
}

// Load returns the defaults overridden by the given .env files (if they exist)
// and then by the process environment. A missing .env file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// godotenv.Load never overrides variables already set in the environment
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays non-empty environment values onto cfg
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvIndexURL); v != "" {
		c.IndexURL = v
	}
	if v := getenv(EnvState); v != "" {
		c.State = v
	}
	if v := getenv(EnvOutput); v != "" {
		c.Output = v
	}
	if v := getenv(EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvBatchSize, v)
		}
		c.BatchSize = n
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := getenv(EnvEncoding); v != "" {
		c.Encoding = v
	}
	return nil
}

// parseTimeout accepts a Go duration ("90s") or a bare number of seconds ("90")
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// Normalize canonicalizes the state code and encoding name
func (c *Config) Normalize() {
	c.State = strings.ToUpper(strings.TrimSpace(c.State))
	c.Encoding = strings.ToLower(strings.TrimSpace(c.Encoding))
	c.IndexURL = strings.TrimSpace(c.IndexURL)
	if c.Encoding == "utf8" {
		c.Encoding = EncodingUTF8
	}
	if c.Encoding == "iso-8859-1" {
		c.Encoding = EncodingLatin1
	}
}

// Validate checks that the settings describe a runnable extraction
func (c Config) Validate() error {
	if c.IndexURL == "" {
		return fmt.Errorf("index URL is required")
	}
	if len(c.State) != 2 || !isLetters(c.State) {
		return fmt.Errorf("invalid state code: %q (must be two letters)", c.State)
	}
	if c.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d (must be positive)", c.BatchSize)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %s (must be positive)", c.Timeout)
	}
	switch c.Encoding {
	case EncodingUTF8, EncodingLatin1, EncodingWindows1252:
	default:
		return fmt.Errorf("invalid encoding: %q (must be %s, %s or %s)", c.Encoding, EncodingUTF8, EncodingLatin1, EncodingWindows1252)
	}
	return nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
