package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration.
type Config struct {
	Scheduler SchedulerConfig
	Perf      PerfConfig
	Database  DatabaseConfig
}

// SchedulerConfig sizes the context pool and the processor set.
type SchedulerConfig struct {
	RoutineNum   int `mapstructure:"routine_num"`
	ProcessorNum int `mapstructure:"processor_num"`
}

// PerfConfig controls scheduling trace collection.
type PerfConfig struct {
	Enabled       bool
	BufferSize    int           `mapstructure:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// Load reads configuration from path, or from STRAND_CONFIG, or from
// ~/.config/strand/config.toml. Env var overrides use prefix STRAND_.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("scheduler.routine_num", 100)
	v.SetDefault("scheduler.processor_num", runtime.NumCPU())
	v.SetDefault("perf.enabled", false)
	v.SetDefault("perf.buffer_size", 4096)
	v.SetDefault("perf.flush_interval", 200*time.Millisecond)
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "strand", "trace.db"))

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("STRAND_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "strand"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("STRAND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Scheduler.RoutineNum <= 0:
		return fmt.Errorf("scheduler.routine_num must be positive, got %d", c.Scheduler.RoutineNum)
	case c.Scheduler.ProcessorNum <= 0:
		return fmt.Errorf("scheduler.processor_num must be positive, got %d", c.Scheduler.ProcessorNum)
	case c.Perf.BufferSize <= 0:
		return fmt.Errorf("perf.buffer_size must be positive, got %d", c.Perf.BufferSize)
	case c.Perf.FlushInterval <= 0:
		return fmt.Errorf("perf.flush_interval must be positive, got %s", c.Perf.FlushInterval)
	case c.Perf.Enabled && c.Database.Path == "":
		return errors.New("database.path is required when perf.enabled is set")
	}
	return nil
}
