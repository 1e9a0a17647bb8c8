// Package config loads queryassist settings from defaults, an optional YAML
// file, QUERYASSIST_ environment variables and command line flags, in that
// order of increasing precedence.
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is looked up in the working directory when no file is given
const DefaultFile = "queryassist.yaml"

// EnvPrefix namespaces environment overrides. A double underscore separates
// levels: QUERYASSIST_SERVER__PORT -> server.port
const EnvPrefix = "QUERYASSIST_"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Import   ImportConfig   `koanf:"import"`
	Parser   ParserConfig   `koanf:"parser"`
	Postgres PostgresConfig `koanf:"postgres"`
	Data     DataConfig     `koanf:"data"`
}

type ServerConfig struct {
	Port           int      `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type ImportConfig struct {
	SampleSize    int     `koanf:"sample_size"`
	TypeThreshold float64 `koanf:"type_threshold"`
	MaxUploadMB   int     `koanf:"max_upload_mb"`
}

type ParserConfig struct {
	ConceptCacheSize int `koanf:"concept_cache_size"`
}

// PostgresConfig is the optional database an operator can import tables from
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
	Schema   string `koanf:"schema"`
	RowLimit int    `koanf:"row_limit"`
}

// DataConfig lists datasets imported at startup
type DataConfig struct {
	Files []string `koanf:"files"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.port": 8001,
		"server.allowed_origins": []string{
			"http://localhost:3000", "http://localhost:3001", "http://localhost:3002", "http://127.0.0.1:3000",
		},
		"log.level":                 "info",
		"log.format":                "text",
		"import.sample_size":        20,
		"import.type_threshold":     0.8,
		"import.max_upload_mb":      100,
		"parser.concept_cache_size": 256,
		"postgres.host":             "localhost",
		"postgres.port":             5432,
		"postgres.sslmode":          "disable",
		"postgres.schema":           "public",
		"postgres.row_limit":        10000,
	}
}

// Default returns the built-in settings without reading a file, the
// environment or flags
func Default() *Config {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(defaults(), "."), nil)
	var cfg Config
	_ = k.Unmarshal("", &cfg)
	return &cfg
}

// Load builds the config. path may be empty, in which case DefaultFile is
// read when present. flags may be nil; only flags the user set are applied.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env vars")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys maps command line flags onto config keys
var flagKeys = map[string]string{
	"port":         "server.port",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"file":         "data.files",
	"sample-size":  "import.sample_size",
	"pg-host":      "postgres.host",
	"pg-port":      "postgres.port",
	"pg-user":      "postgres.user",
	"pg-password":  "postgres.password",
	"pg-dbname":    "postgres.dbname",
	"pg-sslmode":   "postgres.sslmode",
	"pg-schema":    "postgres.schema",
	"pg-row-limit": "postgres.row_limit",
}

// Validate rejects values the rest of the program cannot work with
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, "log.format must be text or json")
	}
	if c.Import.SampleSize <= 0 {
		problems = append(problems, "import.sample_size must be positive")
	}
	if c.Import.TypeThreshold <= 0 || c.Import.TypeThreshold > 1 {
		problems = append(problems, "import.type_threshold must be in (0, 1]")
	}
	if c.Import.MaxUploadMB <= 0 {
		problems = append(problems, "import.max_upload_mb must be positive")
	}
	if c.Parser.ConceptCacheSize < 0 {
		problems = append(problems, "parser.concept_cache_size must not be negative")
	}
	if c.Postgres.Port < 0 || c.Postgres.Port > 65535 {
		problems = append(problems, "postgres.port must be between 1 and 65535")
	}
	if len(problems) > 0 {
		return errors.Wrapf(ErrInvalidConfig, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseLevel reads a log level name
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, errors.Newf("unknown log level %q", s)
	}
	return lvl, nil
}

// NewLogger builds the root logger described by the log section
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// MaxUploadBytes is the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Import.MaxUploadMB) << 20
}
