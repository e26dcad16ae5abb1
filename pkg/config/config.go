package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// GitHubConfig holds the listing API settings.
type GitHubConfig struct {
	Token  string `toml:"token"`
	APIURL string `toml:"api_url"`
}

// CaptureConfig holds browser and screenshot settings.
type CaptureConfig struct {
	Driver    string `toml:"driver"`
	ChromeBin string `toml:"chrome_bin"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Timeout   int    `toml:"timeout"` // navigation timeout (seconds)
	Delay     int    `toml:"delay"`   // settle delay before capture (milliseconds)
	Label     bool   `toml:"label"`
}

// PublishConfig holds the optional S3-compatible mirror settings.
type PublishConfig struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Enabled reports whether a bucket has been configured.
func (p PublishConfig) Enabled() bool {
	return strings.TrimSpace(p.Bucket) != "" && strings.TrimSpace(p.Endpoint) != ""
}

// Config holds all pageshots configuration.
type Config struct {
	Owner       string        `toml:"owner"`
	Exclude     string        `toml:"exclude"`
	Output      string        `toml:"output"`
	PagesDomain string        `toml:"pages_domain"`
	GitHub      GitHubConfig  `toml:"github"`
	Capture     CaptureConfig `toml:"capture"`
	Publish     PublishConfig `toml:"publish"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Output:      "previews",
		PagesDomain: "github.io",
		Capture: CaptureConfig{
			Driver:  "rod",
			Width:   1200,
			Height:  800,
			Timeout: 60,
			Delay:   3000,
		},
		Publish: PublishConfig{
			Region: "us-east-1",
			Prefix: "previews",
			UseSSL: true,
		},
	}
}

// DefaultConfigPath returns PAGESHOTS_CONFIG, or pageshots.toml in the
// working directory.
func DefaultConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("PAGESHOTS_CONFIG")); v != "" {
		return v
	}
	return "pageshots.toml"
}

// Load reads the given dotenv files (".env" when none are given) into the
// process environment, then loads the TOML file at path. Missing dotenv
// files are ignored.
func Load(path string, envFiles ...string) (Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return Config{}, err
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from the given TOML file path on top of
// Default. If the file does not exist, the defaults are used without error.
// Environment variables always take precedence over file values:
//   - GITHUB_TOKEN (or GH_TOKEN) overrides github.token
//   - PAGESHOTS_OWNER            overrides owner
//   - PAGESHOTS_OUTPUT           overrides output
//   - PAGESHOTS_S3_ACCESS_KEY    overrides publish.access_key
//   - PAGESHOTS_S3_SECRET_KEY    overrides publish.secret_key
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("decoding %s: %w", path, err)
			}
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := firstNonEmpty(os.Getenv("GITHUB_TOKEN"), os.Getenv("GH_TOKEN")); v != "" {
		cfg.GitHub.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGESHOTS_OWNER")); v != "" {
		cfg.Owner = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGESHOTS_OUTPUT")); v != "" {
		cfg.Output = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGESHOTS_S3_ACCESS_KEY")); v != "" {
		cfg.Publish.AccessKey = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGESHOTS_S3_SECRET_KEY")); v != "" {
		cfg.Publish.SecretKey = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
