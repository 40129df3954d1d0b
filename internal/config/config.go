package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are separated
// by a double underscore: FRICON_REALTIME__ACCESS_TOKEN -> realtime.access_token.
const EnvPrefix = "FRICON_"

// Config represents the messaging core configuration.
type Config struct {
	User struct {
		ID string `koanf:"id"`
	} `koanf:"user"`

	Realtime struct {
		URL                      string        `koanf:"url"`
		AccessToken              string        `koanf:"access_token"`
		DialTimeout              time.Duration `koanf:"dial_timeout"`
		InvokeTimeout            time.Duration `koanf:"invoke_timeout"`
		ReconnectInitialInterval time.Duration `koanf:"reconnect_initial_interval"`
		ReconnectMaxInterval     time.Duration `koanf:"reconnect_max_interval"`
		InvokeRate               float64       `koanf:"invoke_rate"`
		InvokeBurst              int           `koanf:"invoke_burst"`
	} `koanf:"realtime"`

	REST struct {
		BaseURL string        `koanf:"base_url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"rest"`

	Core struct {
		BaseTitle     string `koanf:"base_title"`
		SeenBatchSize int    `koanf:"seen_batch_size"`
		PageSize      int    `koanf:"page_size"`
	} `koanf:"core"`

	HTTP struct {
		Addr   string `koanf:"addr"`
		APIKey string `koanf:"api_key"`
	} `koanf:"http"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`

	AMQP struct {
		URL      string `koanf:"url"`
		Exchange string `koanf:"exchange"`
	} `koanf:"amqp"`

	Telemetry struct {
		ServiceName  string `koanf:"service_name"`
		Environment  string `koanf:"environment"`
		OTLPEndpoint string `koanf:"otlp_endpoint"`
	} `koanf:"telemetry"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"realtime.url":                        "ws://localhost:5000/hubs/chat",
		"realtime.dial_timeout":               "10s",
		"realtime.invoke_timeout":             "10s",
		"realtime.reconnect_initial_interval": "500ms",
		"realtime.reconnect_max_interval":     "30s",
		"realtime.invoke_rate":                20.0,
		"realtime.invoke_burst":               10,
		"rest.base_url":                       "http://localhost:5000/api/",
		"rest.timeout":                        "15s",
		"core.base_title":                     "FriCon",
		"core.seen_batch_size":                4,
		"core.page_size":                      20,
		"http.addr":                           "127.0.0.1:8787",
		"log.level":                           "info",
		"amqp.exchange":                       "fricon.events",
		"telemetry.service_name":              "fricon-core",
		"telemetry.environment":               "dev",
	}
}

// Load builds the configuration from defaults, an optional TOML file and the
// environment, in that order of precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks the fields the core cannot run without.
func Validate(cfg *Config) error {
	if cfg.User.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if cfg.Realtime.URL == "" {
		return fmt.Errorf("realtime url is required")
	}
	if !strings.HasPrefix(cfg.Realtime.URL, "ws://") && !strings.HasPrefix(cfg.Realtime.URL, "wss://") {
		return fmt.Errorf("realtime url must use ws or wss, got %q", cfg.Realtime.URL)
	}
	if cfg.REST.BaseURL == "" {
		return fmt.Errorf("rest base url is required")
	}
	if cfg.Realtime.InvokeTimeout <= 0 {
		return fmt.Errorf("realtime invoke_timeout must be positive")
	}
	if cfg.Core.SeenBatchSize <= 0 {
		return fmt.Errorf("core seen_batch_size must be positive")
	}
	if cfg.Core.PageSize <= 0 {
		return fmt.Errorf("core page_size must be positive")
	}
	return nil
}

// InitConfig writes a sample configuration file.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# fricon-core configuration

[user]
id = "00000000-0000-0000-0000-000000000000"

[realtime]
url = "wss://fricon.example.com/hubs/chat"
access_token = "your-access-token"
invoke_timeout = "10s"
reconnect_initial_interval = "500ms"
reconnect_max_interval = "30s"

[rest]
base_url = "https://fricon.example.com/api/"

[core]
base_title = "FriCon"
seen_batch_size = 4
page_size = 20

[http]
addr = "127.0.0.1:8787"

[log]
level = "info"
pretty = true

[amqp]
url = ""
exchange = "fricon.events"
`
	return os.WriteFile(configPath, []byte(sample), 0o600)
}
