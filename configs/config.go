package configs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i2y/apiportal/internal/adapter/outbound/docsource"
)

// Storage backends.
const (
	StorageS3     = "s3"
	StorageFS     = "fs"
	StorageBolt   = "bolt"
	StorageMemory = "memory"
)

// Gateway backends.
const (
	GatewayAWS    = "aws"
	GatewayStatic = "static"
)

// Rebuild modes.
const (
	RebuildLocal  = "local"
	RebuildLambda = "lambda"
	RebuildHTTP   = "http"
)

// GenericSource is an external description document imported as a generic API.
type GenericSource struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	GenericSources []interface{} `yaml:"generic_sources"`
}

// Config holds the final application configuration, merged from file and environment variables.
// Fields are loaded from environment variables with the prefix "PORTAL_", overriding file settings.
type Config struct {
	ConfigFilePath string `envconfig:"CONFIG_FILE"`

	// File-loaded fields
	GenericSources []GenericSource `ignored:"true"`

	StorageBackend string        `envconfig:"STORAGE_BACKEND" default:"s3"`
	Bucket         string        `envconfig:"BUCKET"`
	StorageDir     string        `envconfig:"STORAGE_DIR" default:"data"`
	BoltPath       string        `envconfig:"BOLT_PATH" default:"data/portal.db"`
	Watch          bool          `envconfig:"WATCH" default:"true"`
	WatchDebounce  time.Duration `envconfig:"WATCH_DEBOUNCE" default:"500ms"`

	GatewayBackend string `envconfig:"GATEWAY_BACKEND" default:"aws"`
	GatewayFixture string `envconfig:"GATEWAY_FIXTURE"`
	AWSRegion      string `envconfig:"AWS_REGION"`
	AWSEndpoint    string `envconfig:"AWS_ENDPOINT"`

	RebuildMode      string `envconfig:"REBUILD_MODE" default:"local"`
	RebuildFunction  string `envconfig:"REBUILD_FUNCTION"`
	RebuildURL       string `envconfig:"REBUILD_URL"`
	FetchConcurrency int    `envconfig:"FETCH_CONCURRENCY" default:"8"`

	ListenAddr         string        `envconfig:"LISTEN_ADDR" default:":8080"`
	HTTPClientTimeout  time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ServerReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	ServerWriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ServerIdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`

	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat                string `envconfig:"LOG_FORMAT" default:"text"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageS3:
		if c.Bucket == "" {
			return fmt.Errorf("PORTAL_BUCKET is required for the s3 storage backend")
		}
	case StorageFS, StorageBolt, StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	switch c.GatewayBackend {
	case GatewayAWS:
	case GatewayStatic:
		if c.GatewayFixture == "" {
			return fmt.Errorf("PORTAL_GATEWAY_FIXTURE is required for the static gateway backend")
		}
	default:
		return fmt.Errorf("unknown gateway backend %q", c.GatewayBackend)
	}

	switch c.RebuildMode {
	case RebuildLocal:
	case RebuildLambda:
		if c.RebuildFunction == "" {
			return fmt.Errorf("PORTAL_REBUILD_FUNCTION is required for the lambda rebuild mode")
		}
	case RebuildHTTP:
		if c.RebuildURL == "" {
			return fmt.Errorf("PORTAL_REBUILD_URL is required for the http rebuild mode")
		}
	default:
		return fmt.Errorf("unknown rebuild mode %q", c.RebuildMode)
	}

	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be at least 1, got %d", c.FetchConcurrency)
	}
	return nil
}

// Load loads configuration first from environment variables (to get file path),
// then from the specified YAML file, and finally merges/overrides with environment variables again.
func Load() (*Config, error) {
	// 1. Load initial config from Env (primarily to get ConfigFilePath)
	var initialCfg Config
	if err := envconfig.Process("portal", &initialCfg); err != nil {
		return nil, fmt.Errorf("failed to process initial environment variables: %w", err)
	}

	// 2. Load config from YAML file if path is specified
	fileCfg := FileConfig{}
	if initialCfg.ConfigFilePath != "" {
		data, err := readConfigFile(initialCfg.ConfigFilePath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		slog.Info("Loaded configuration file.", "path", initialCfg.ConfigFilePath)
	}

	// 3. Create final config, starting with file values, then process Env vars again for overrides.
	finalCfg := initialCfg
	finalCfg.GenericSources = parseGenericSources(fileCfg.GenericSources)

	if err := envconfig.Process("portal", &finalCfg); err != nil {
		return nil, fmt.Errorf("failed to process overriding environment variables: %w", err)
	}
	if err := finalCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &finalCfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	if docsource.IsGitHubURL(path) {
		data, err := docsource.NewGHClient(nil).FetchFile(context.Background(), path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from GitHub '%s': %w", path, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return data, nil
}

// parseGenericSources accepts both plain URL strings and {url, headers} objects.
func parseGenericSources(raw []interface{}) []GenericSource {
	sources := make([]GenericSource, 0, len(raw))
	for _, source := range raw {
		switch v := source.(type) {
		case string:
			sources = append(sources, GenericSource{URL: v})
		case map[string]interface{}:
			gs := GenericSource{}
			if url, ok := v["url"].(string); ok {
				gs.URL = url
			}
			if headers, ok := v["headers"].(map[string]interface{}); ok {
				gs.Headers = make(map[string]string, len(headers))
				for k, val := range headers {
					if s, ok := val.(string); ok {
						gs.Headers[k] = s
					}
				}
			}
			if gs.URL == "" {
				slog.Warn("Ignoring generic source without url", "source", source)
				continue
			}
			sources = append(sources, gs)
		default:
			slog.Warn("Ignoring invalid generic source format", "source", source)
		}
	}
	return sources
}
