// Package config loads launcher settings and service profiles.
//
// Sources, lowest to highest precedence: built-in defaults, the YAML config
// file, SVCLAUNCH_* environment variables, then command line flags bound by
// the CLI. SERVICE_NAME only changes the display name of the selected service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/svclaunch/internal/codegen"
	"github.com/psantana5/svclaunch/internal/supervisor"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "SVCLAUNCH"

// DisplayNameEnv overrides the selected service's display name
const DisplayNameEnv = "SERVICE_NAME"

// ErrUnknownService is returned when a service name has no profile
var ErrUnknownService = errors.New("unknown service")

// Mode selects how a service is started
type Mode string

const (
	// ModeBackground starts a detached child and follows its log
	ModeBackground Mode = "background"
	// ModeExec optionally generates sources, then replaces the launcher
	ModeExec Mode = "exec"
)

// GenerateConfig describes a one-time source generation step
type GenerateConfig struct {
	Marker  string   `mapstructure:"marker" yaml:"marker" json:"marker"`
	Command []string `mapstructure:"command" yaml:"command" json:"command"`
}

// ServiceConfig is one service profile
type ServiceConfig struct {
	Name        string          `mapstructure:"-" yaml:"-" json:"-"`
	DisplayName string          `mapstructure:"display_name" yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Mode        Mode            `mapstructure:"mode" yaml:"mode" json:"mode"`
	Command     []string        `mapstructure:"command" yaml:"command" json:"command"`
	Dir         string          `mapstructure:"dir" yaml:"dir,omitempty" json:"dir,omitempty"`
	Env         []string        `mapstructure:"env" yaml:"env,omitempty" json:"env,omitempty"`
	PIDFile     string          `mapstructure:"pid_file" yaml:"pid_file,omitempty" json:"pid_file,omitempty"`
	LogFile     string          `mapstructure:"log_file" yaml:"log_file,omitempty" json:"log_file,omitempty"`
	LogMode     string          `mapstructure:"log_mode" yaml:"log_mode,omitempty" json:"log_mode,omitempty"`
	Generate    *GenerateConfig `mapstructure:"generate" yaml:"generate,omitempty" json:"generate,omitempty"`
}

// HistoryConfig controls the launch history database
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}

// MetricsConfig controls metrics export
type MetricsConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr,omitempty" json:"addr,omitempty"`
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty" json:"textfile,omitempty"`
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Environment string `mapstructure:"environment" yaml:"environment,omitempty" json:"environment,omitempty"`
}

// StopConfig controls how stop waits for a server to exit
type StopConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Grace   time.Duration `mapstructure:"grace" yaml:"grace" json:"grace"`
}

// Config is the complete launcher configuration
type Config struct {
	DefaultService string                   `mapstructure:"default_service" yaml:"default_service,omitempty" json:"default_service,omitempty"`
	LogLevel       string                   `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogJSON        bool                     `mapstructure:"log_json" yaml:"log_json" json:"log_json"`
	History        HistoryConfig            `mapstructure:"history" yaml:"history" json:"history"`
	Metrics        MetricsConfig            `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Tracing        TracingConfig            `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
	Stop           StopConfig               `mapstructure:"stop" yaml:"stop" json:"stop"`
	Services       map[string]ServiceConfig `mapstructure:"services" yaml:"services" json:"services"`

	// DisplayOverride comes from SERVICE_NAME
	DisplayOverride string `mapstructure:"service_name" yaml:"-" json:"-"`
	// File is the config file that was read, empty when none
	File string `mapstructure:"-" yaml:"-" json:"-"`
}

func uvicornService(name, display string) ServiceConfig {
	return ServiceConfig{
		Name:        name,
		DisplayName: display,
		Mode:        ModeBackground,
		Command:     []string{"uvicorn", "main:app", "--host", "0.0.0.0", "--port", "80", "--reload"},
		PIDFile:     filepath.Join("/tmp", name+".pid"),
		LogFile:     filepath.Join("/tmp", name+".log"),
		LogMode:     string(supervisor.LogTruncate),
	}
}

// DefaultServices are the profiles of the original deployment
func DefaultServices() map[string]ServiceConfig {
	return map[string]ServiceConfig{
		"photo-service":        uvicornService("photo-service", "Photo Service"),
		"photographer-service": uvicornService("photographer-service", "Photographer Service"),
		"reaction-service":     uvicornService("reaction-service", "Reaction Service"),
		"photo-of-day-service": {
			Name:        "photo-of-day-service",
			DisplayName: "Photo of the Day Service",
			Mode:        ModeExec,
			Command:     []string{"python", "grpc_server.py"},
			Generate: &GenerateConfig{
				Marker: "photo_of_day_pb2.py",
				Command: []string{
					"python", "-m", "grpc_tools.protoc", "-I.",
					"--python_out=.", "--grpc_python_out=.", "photo_of_day.proto",
				},
			},
		},
	}
}

// Defaults returns the configuration used when nothing is overridden
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(os.TempDir(), "svclaunch", "history.db"),
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			Environment: "production",
		},
		Stop: StopConfig{
			Timeout: 10 * time.Second,
			Grace:   5 * time.Second,
		},
		Services: DefaultServices(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("default_service", d.DefaultService)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_json", d.LogJSON)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.environment", d.Tracing.Environment)
	v.SetDefault("stop.timeout", d.Stop.Timeout)
	v.SetDefault("stop.grace", d.Stop.Grace)
	v.SetDefault("service_name", "")
}

// candidateFiles are searched in order when no --config is given
func candidateFiles() []string {
	files := []string{"svclaunch.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".svclaunch", "config.yaml"))
	}
	return files
}

// Init prepares v with defaults, env bindings and the config file, if any.
// A missing default file is not an error; a missing explicit file is.
func Init(v *viper.Viper, cfgFile string) error {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("service_name", DisplayNameEnv); err != nil {
		return err
	}

	if cfgFile == "" {
		for _, candidate := range candidateFiles() {
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	if cfgFile == "" {
		return nil
	}

	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}

// Load builds the configuration from an initialised viper instance.
// Services from the file are merged over the built-ins by name.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	services := DefaultServices()
	for name, sc := range cfg.Services {
		sc.Name = name
		if base, ok := services[name]; ok {
			sc = mergeService(base, sc)
		}
		services[name] = sc
	}
	cfg.Services = services
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeService overlays the non-empty fields of override on base
func mergeService(base, override ServiceConfig) ServiceConfig {
	out := base
	if override.DisplayName != "" {
		out.DisplayName = override.DisplayName
	}
	if override.Mode != "" {
		out.Mode = override.Mode
	}
	if len(override.Command) > 0 {
		out.Command = override.Command
	}
	if override.Dir != "" {
		out.Dir = override.Dir
	}
	if len(override.Env) > 0 {
		out.Env = override.Env
	}
	if override.PIDFile != "" {
		out.PIDFile = override.PIDFile
	}
	if override.LogFile != "" {
		out.LogFile = override.LogFile
	}
	if override.LogMode != "" {
		out.LogMode = override.LogMode
	}
	if override.Generate != nil {
		g := GenerateConfig{}
		if base.Generate != nil {
			g = *base.Generate
		}
		if override.Generate.Marker != "" {
			g.Marker = override.Generate.Marker
		}
		if len(override.Generate.Command) > 0 {
			g.Command = override.Generate.Command
		}
		out.Generate = &g
	}
	return out
}

// Validate checks every service profile and the global settings
func (c *Config) Validate() error {
	var errs []error

	if c.DefaultService != "" {
		if _, ok := c.Services[c.DefaultService]; !ok {
			errs = append(errs, fmt.Errorf("default_service: %w %q", ErrUnknownService, c.DefaultService))
		}
	}
	if c.Stop.Timeout <= 0 {
		errs = append(errs, errors.New("stop.timeout must be positive"))
	}
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history.path is required when history is enabled"))
	}

	for _, name := range c.ServiceNames() {
		if err := c.Services[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("service %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks a single profile
func (s ServiceConfig) Validate() error {
	if len(s.Command) == 0 || s.Command[0] == "" {
		return errors.New("command is required")
	}
	for _, kv := range s.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("env entry %q is not KEY=VALUE", kv)
		}
	}
	if s.Generate != nil && (s.Generate.Marker == "" || len(s.Generate.Command) == 0) {
		return errors.New("generate needs both marker and command")
	}

	switch s.Mode {
	case ModeBackground:
		if s.PIDFile == "" || s.LogFile == "" {
			return errors.New("background services need pid_file and log_file")
		}
		switch supervisor.LogMode(s.LogMode) {
		case supervisor.LogTruncate, supervisor.LogAppend:
		default:
			return fmt.Errorf("log_mode must be truncate or append, got %q", s.LogMode)
		}
	case ModeExec:
	default:
		return fmt.Errorf("mode must be background or exec, got %q", s.Mode)
	}
	return nil
}

// ServiceNames returns the configured service names, sorted
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Service resolves name, or the default service when name is empty,
// applying the SERVICE_NAME display override.
func (c *Config) Service(name string) (ServiceConfig, error) {
	if name == "" {
		name = c.DefaultService
	}
	if name == "" {
		return ServiceConfig{}, fmt.Errorf("no service given and no default_service configured (known: %s)",
			strings.Join(c.ServiceNames(), ", "))
	}

	sc, ok := c.Services[name]
	if !ok {
		return ServiceConfig{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownService, name, strings.Join(c.ServiceNames(), ", "))
	}
	sc.Name = name
	if c.DisplayOverride != "" {
		sc.DisplayName = c.DisplayOverride
	}
	return sc, nil
}

// Supervised converts the profile for the supervisor
func (s ServiceConfig) Supervised() supervisor.Service {
	return supervisor.Service{
		Name:        s.Name,
		DisplayName: s.DisplayName,
		Command:     s.Command,
		Dir:         s.Dir,
		Env:         s.Env,
		PIDFile:     s.PIDFile,
		LogFile:     s.LogFile,
		LogMode:     supervisor.LogMode(s.LogMode),
	}
}

// Generator returns the profile's generation step, nil when it has none
func (s ServiceConfig) Generator() *codegen.Generator {
	if s.Generate == nil {
		return nil
	}
	return &codegen.Generator{
		Marker:  s.Generate.Marker,
		Command: s.Generate.Command,
		Dir:     s.Dir,
		Env:     s.Env,
	}
}
