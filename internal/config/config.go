// Package config merges pairgen settings from command-line flags, an optional
// JSON file and PAIRGEN_* environment variables.
//
// Priority, lowest first: flag defaults, config file, environment, flags set
// explicitly on the command line. Nested keys use "__" in environment
// variable names, so PAIRGEN_S3__BUCKET sets s3.bucket.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "PAIRGEN_"

// Config holds every setting a pairgen command may use. Commands only read
// the fields their flags cover.
type Config struct {
	Words         []string `koanf:"words" validate:"max=2,dive,required"`
	Out           string   `koanf:"out"`
	Count         uint64   `koanf:"count"`
	Seed          int64    `koanf:"seed"`
	Shuffle       bool     `koanf:"shuffle"`
	Step          uint64   `koanf:"step"`
	LegacyStep    bool     `koanf:"legacy_step"`
	ProgressEvery uint64   `koanf:"progress_every"`

	Addr string `koanf:"addr" validate:"omitempty,listen_addr"`

	S3    S3    `koanf:"s3"`
	Redis Redis `koanf:"redis"`
}

// S3 configures uploading output to object storage.
type S3 struct {
	Addr     string        `koanf:"addr" validate:"required_with=Bucket"`
	Region   string        `koanf:"region" validate:"required_with=Bucket"`
	Bucket   string        `koanf:"bucket"`
	User     string        `koanf:"user"`
	Password string        `koanf:"password"`
	Timeout  time.Duration `koanf:"timeout" validate:"gte=0"`
}

// Redis configures pushing output to a Redis list.
type Redis struct {
	Addr    string        `koanf:"addr" validate:"omitempty,listen_addr"`
	Key     string        `koanf:"key" validate:"required_with=Addr"`
	Batch   int           `koanf:"batch" validate:"gte=0"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// flagKeys maps flag names to config keys. Flags not listed here, such as
// --config itself, aren't part of the merged configuration.
var flagKeys = map[string]string{
	"words":          "words",
	"out":            "out",
	"count":          "count",
	"seed":           "seed",
	"shuffle":        "shuffle",
	"step":           "step",
	"legacy-step":    "legacy_step",
	"progress-every": "progress_every",
	"addr":           "addr",
	"s3-addr":        "s3.addr",
	"s3-region":      "s3.region",
	"s3-bucket":      "s3.bucket",
	"s3-user":        "s3.user",
	"s3-pass":        "s3.password",
	"s3-timeout":     "s3.timeout",
	"redis-addr":     "redis.addr",
	"redis-key":      "redis.key",
	"redis-batch":    "redis.batch",
	"redis-timeout":  "redis.timeout",
}

// ErrConflictingSinks is returned when more than one remote output is
// configured.
var ErrConflictingSinks = errors.New("s3 and redis outputs are mutually exclusive")

// Load merges the configuration for a command. path may be empty, in which
// case no config file is read; a non-empty path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	var setErr error
	flags.VisitAll(func(f *pflag.Flag) {
		setErr = errors.Join(setErr, setFlag(k, flags, f))
	})
	if setErr != nil {
		return nil, setErr
	}

	if path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	flags.Visit(func(f *pflag.Flag) {
		setErr = errors.Join(setErr, setFlag(k, flags, f))
	})
	if setErr != nil {
		return nil, setErr
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Words = splitLists(cfg.Words)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("listen_addr", isHostPort); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.S3.Bucket != "" && cfg.Redis.Addr != "" {
		return nil, ErrConflictingSinks
	}
	return &cfg, nil
}

func setFlag(k *koanf.Koanf, flags *pflag.FlagSet, f *pflag.Flag) error {
	key, ok := flagKeys[f.Name]
	if !ok {
		return nil
	}
	switch f.Value.Type() {
	case "stringSlice":
		v, err := flags.GetStringSlice(f.Name)
		if err != nil {
			return err
		}
		return k.Set(key, v)
	default:
		return k.Set(key, f.Value.String())
	}
}

// isHostPort accepts anything net.Listen and net.Dial take as a TCP address:
// IPv4 and bracketed IPv6 literals, hostnames, an empty host, and port 0.
func isHostPort(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	_, err = strconv.ParseUint(port, 10, 16)
	return err == nil
}

// envTransform converts environment variable names to config keys.
// Example: PAIRGEN_S3__BUCKET -> s3.bucket
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// splitLists accepts comma-separated paths from files and the environment.
func splitLists(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
