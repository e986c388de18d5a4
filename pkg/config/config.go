// Package config loads taskquest settings from ~/.config/taskquest/config.yaml
// with TASKQUEST_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/taskquest/pkg/scheduler"
)

const (
	xdgAppName = "taskquest"
	configFile = "config.yaml"
	envPrefix  = "TASKQUEST"
)

type Config struct {
	Calendar string    `mapstructure:"calendar" validate:"required"`
	Database string    `mapstructure:"database" validate:"required"`
	Day      DayConfig `mapstructure:"day"`
	Log      LogConfig `mapstructure:"log"`
}

// DayConfig is the working window slots are generated in.
type DayConfig struct {
	Start  string        `mapstructure:"start" validate:"required,clock"`
	End    string        `mapstructure:"end" validate:"required,clock"`
	Sprint time.Duration `mapstructure:"sprint" validate:"gt=0"`
	Break  time.Duration `mapstructure:"break" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	Output string `mapstructure:"output"`
}

// Dir returns the directory holding config, credentials, token and caches.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	dir, err := Dir()
	if err != nil {
		dir = "."
	}
	return &Config{
		Calendar: "Tasks",
		Database: filepath.Join(dir, "taskquest.db"),
		Day: DayConfig{
			Start:  "09:00",
			End:    "17:00",
			Sprint: 45 * time.Minute,
			Break:  15 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "console", Output: "stderr"},
	}
}

// Load reads path (the default location when empty), applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, err
		}
	}

	def := Default()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("calendar", def.Calendar)
	v.SetDefault("database", def.Database)
	v.SetDefault("day.start", def.Day.Start)
	v.SetDefault("day.end", def.Day.End)
	v.SetDefault("day.sprint", def.Day.Sprint)
	v.SetDefault("day.break", def.Day.Break)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.output", def.Log.Output)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Database = expandHome(cfg.Database)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := scheduler.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks field formats and that the day window can hold a sprint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Window(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Window converts the day settings into a scheduler window.
func (c *Config) Window() (scheduler.Window, error) {
	start, err := scheduler.ParseClock(c.Day.Start)
	if err != nil {
		return scheduler.Window{}, err
	}
	end, err := scheduler.ParseClock(c.Day.End)
	if err != nil {
		return scheduler.Window{}, err
	}
	w := scheduler.Window{DayStart: start, DayEnd: end, Sprint: c.Day.Sprint, Break: c.Day.Break}
	return w, w.Validate()
}

// document is the on-disk shape; durations are written as "45m" strings.
type document struct {
	Calendar string `yaml:"calendar"`
	Database string `yaml:"database"`
	Day      struct {
		Start  string `yaml:"start"`
		End    string `yaml:"end"`
		Sprint string `yaml:"sprint"`
		Break  string `yaml:"break"`
	} `yaml:"day"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
}

// Save writes cfg to path (the default location when empty).
func Save(path string, cfg *Config) error {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders cfg in the on-disk YAML shape.
func Marshal(cfg *Config) ([]byte, error) {
	var doc document
	doc.Calendar = cfg.Calendar
	doc.Database = cfg.Database
	doc.Day.Start, doc.Day.End = cfg.Day.Start, cfg.Day.End
	doc.Day.Sprint, doc.Day.Break = cfg.Day.Sprint.String(), cfg.Day.Break.String()
	doc.Log.Level, doc.Log.Format, doc.Log.Output = cfg.Log.Level, cfg.Log.Format, cfg.Log.Output

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
