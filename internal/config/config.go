package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath     = "STATUSBOT_CONFIG"
	DefaultConfigPath = "/etc/statusbot/config.yaml"
)

// Duration is a time.Duration that unmarshals from yaml strings such as
// "90s" or "2m", or from a bare integer number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got %v", value.Kind)
	}
	if parsed, err := time.ParseDuration(value.Value); err == nil {
		*d = Duration(parsed)
		return nil
	}
	var seconds int64
	if err := value.Decode(&seconds); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(time.Duration(seconds) * time.Second)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Storage StorageConfig `yaml:"storage"`
	Admin   AdminConfig   `yaml:"admin"`
	Query   QueryConfig   `yaml:"query"`
}

type BotConfig struct {
	Token                  string   `yaml:"token"`
	TokenFile              string   `yaml:"token_file"`
	UpdateInterval         Duration `yaml:"update_interval"`
	DisplayPlayerGearLevel bool     `yaml:"display_player_gear_level"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type AdminConfig struct {
	Addr        string `yaml:"addr"`
	BearerToken string `yaml:"bearer_token"`
}

type QueryConfig struct {
	Timeout       Duration `yaml:"timeout"`
	GlobalQPSCap  int      `yaml:"global_qps_cap"`
	PerHostQPSCap int      `yaml:"per_host_qps_cap"`
}

func Load(ctx context.Context, path string) (Config, error) {
	var cfg Config

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	return cfg, nil
}

func LoadFromEnv(ctx context.Context) (Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	return Load(ctx, path)
}

// ResolveToken returns the bot token from the inline field or, when set,
// from the referenced token file.
func (c BotConfig) ResolveToken() (string, error) {
	if c.TokenFile != "" {
		data, err := os.ReadFile(filepath.Clean(c.TokenFile))
		if err != nil {
			return "", fmt.Errorf("read token file %q: %w", c.TokenFile, err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("token file %q is empty", c.TokenFile)
		}
		return token, nil
	}
	if strings.TrimSpace(c.Token) == "" {
		return "", fmt.Errorf("bot token must be configured")
	}
	return strings.TrimSpace(c.Token), nil
}
