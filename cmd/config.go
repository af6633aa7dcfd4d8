package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bisegni/jsldal/pkg/database"
	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the content of the optional --config file. Command line flags
// override it.
//
//	backend: sqlite
//	args:
//	  path: cities.db
//	  table: docs
//	log:
//	  level: debug
//	output:
//	  format: json
//	  pretty: true
//	workers: 8
type Config struct {
	Backend string                 `yaml:"backend"`
	Args    map[string]interface{} `yaml:"args"`
	Log     LogConfig              `yaml:"log"`
	Output  OutputConfig           `yaml:"output"`
	Workers int                    `yaml:"workers"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type OutputConfig struct {
	Format string `yaml:"format"`
	Pretty bool   `yaml:"pretty"`
}

func DefaultConfig() Config {
	return Config{
		Backend: database.JSONLBackend,
		Args:    map[string]interface{}{},
		Log:     LogConfig{Level: "info"},
		Output:  OutputConfig{Format: parser.FormatJSONL},
		Workers: 4,
	}
}

// LoadConfig reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if cfg.Args == nil {
		cfg.Args = map[string]interface{}{}
	}
	return cfg, nil
}

// Validate checks the values which are not checked by the backends.
func (c Config) Validate() error {
	if c.Backend == "" {
		return errors.New("backend is required")
	}
	switch c.Output.Format {
	case parser.FormatJSONL, parser.FormatJSON:
	default:
		return errors.Errorf("unknown output format %q, use %s or %s", c.Output.Format, parser.FormatJSONL, parser.FormatJSON)
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return errors.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// options holds the persistent flags of the root command.
type options struct {
	configPath  string
	backend     string
	args        []string
	logLevel    string
	format      string
	pretty      bool
	workers     int
	interactive bool
}

func (o *options) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	f.StringVarP(&o.backend, "backend", "b", database.JSONLBackend, "Storage backend (jsonl, memory, sqlite)")
	f.StringArrayVarP(&o.args, "arg", "a", nil, "Backend argument as key=value, repeatable (e.g. table=docs)")
	f.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVarP(&o.format, "format", "f", parser.FormatJSONL, "Output format (jsonl or json)")
	f.BoolVar(&o.pretty, "pretty", false, "Pretty print output")
	f.IntVarP(&o.workers, "workers", "w", 4, "Number of cursors evaluated concurrently by count")
}

// resolve merges the config file, the flags which were set explicitly and the
// positional target, in that order.
func (o *options) resolve(cmd *cobra.Command, target string) (Config, error) {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = o.backend
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("format") {
		cfg.Output.Format = strings.ToLower(o.format)
	}
	if flags.Changed("pretty") {
		cfg.Output.Pretty = o.pretty
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	for _, kv := range o.args {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return cfg, errors.Errorf("invalid --arg %q, expected key=value", kv)
		}
		cfg.Args[k] = v
	}
	if target != "" {
		cfg.Args["path"] = target
	}

	return cfg, cfg.Validate()
}

// prepare resolves the configuration and installs the logger.
func (o *options) prepare(cmd *cobra.Command, target string) (Config, error) {
	cfg, err := o.resolve(cmd, target)
	if err != nil {
		return cfg, err
	}
	setupLogging(cmd.ErrOrStderr(), cfg.Log.Level)
	return cfg, nil
}
