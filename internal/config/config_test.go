package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/svclaunch/internal/supervisor"
)

func load(t *testing.T, file string) *Config {
	t.Helper()
	v := viper.New()
	require.NoError(t, Init(v, file))
	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "svclaunch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg := load(t, "")

	assert.Equal(t, []string{"photo-of-day-service", "photo-service", "photographer-service", "reaction-service"}, cfg.ServiceNames())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Stop.Timeout)
	assert.Empty(t, cfg.File)

	photo, err := cfg.Service("photo-service")
	require.NoError(t, err)
	assert.Equal(t, ModeBackground, photo.Mode)
	assert.Equal(t, []string{"uvicorn", "main:app", "--host", "0.0.0.0", "--port", "80", "--reload"}, photo.Command)
	assert.Equal(t, "/tmp/photo-service.pid", photo.PIDFile)
	assert.Equal(t, "/tmp/photo-service.log", photo.LogFile)

	pod, err := cfg.Service("photo-of-day-service")
	require.NoError(t, err)
	assert.Equal(t, ModeExec, pod.Mode)
	assert.Equal(t, []string{"python", "grpc_server.py"}, pod.Command)
	require.NotNil(t, pod.Generate)
	assert.Equal(t, "photo_of_day_pb2.py", pod.Generate.Marker)
}

func TestLoad_FileMergesOverBuiltins(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
default_service: reaction-service
stop:
  timeout: 30s
services:
  photo-service:
    command: [uvicorn, "main:app", "--host", 127.0.0.1, "--port", "8080"]
    log_mode: append
  thumbnail-service:
    mode: background
    command: [python, worker.py]
    pid_file: /run/thumb.pid
    log_file: /var/log/thumb.log
    log_mode: truncate
    env: [WORKERS=4]
`)
	cfg := load(t, path)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Stop.Timeout)

	photo, err := cfg.Service("photo-service")
	require.NoError(t, err)
	assert.Equal(t, []string{"uvicorn", "main:app", "--host", "127.0.0.1", "--port", "8080"}, photo.Command)
	assert.Equal(t, "append", photo.LogMode)
	assert.Equal(t, "/tmp/photo-service.pid", photo.PIDFile, "unset fields keep the built-in value")
	assert.Equal(t, "Photo Service", photo.DisplayName)

	thumb, err := cfg.Service("thumbnail-service")
	require.NoError(t, err)
	assert.Equal(t, []string{"WORKERS=4"}, thumb.Env)

	def, err := cfg.Service("")
	require.NoError(t, err)
	assert.Equal(t, "reaction-service", def.Name)

	assert.Len(t, cfg.Services, 5)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SVCLAUNCH_LOG_LEVEL", "warn")
	t.Setenv("SVCLAUNCH_HISTORY_ENABLED", "false")
	t.Setenv("SVCLAUNCH_METRICS_ADDR", ":9400")

	cfg := load(t, writeConfig(t, "log_level: debug\n"))

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, ":9400", cfg.Metrics.Addr)
}

func TestService_DisplayOverride(t *testing.T) {
	t.Setenv(DisplayNameEnv, "Photos (staging)")

	cfg := load(t, writeConfig(t, "{}\n"))

	photo, err := cfg.Service("photo-service")
	require.NoError(t, err)
	assert.Equal(t, "Photos (staging)", photo.DisplayName)
	assert.Equal(t, "/tmp/photo-service.pid", photo.PIDFile, "display override never changes paths")
	assert.Equal(t, "Photos (staging)", photo.Supervised().Display())
}

func TestService_Unknown(t *testing.T) {
	cfg := Defaults()

	_, err := cfg.Service("billing-service")
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = cfg.Service("")
	assert.Error(t, err)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	err := Init(v, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := DefaultServices()["photo-service"]

	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
	}{
		{"no command", func(s *ServiceConfig) { s.Command = nil }},
		{"bad mode", func(s *ServiceConfig) { s.Mode = "daemon" }},
		{"bad log mode", func(s *ServiceConfig) { s.LogMode = "rotate" }},
		{"no pid file", func(s *ServiceConfig) { s.PIDFile = "" }},
		{"bad env", func(s *ServiceConfig) { s.Env = []string{"NOEQUALS"} }},
		{"half generate", func(s *ServiceConfig) { s.Generate = &GenerateConfig{Marker: "x_pb2.py"} }},
	}

	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := base
			tt.mutate(&sc)
			assert.Error(t, sc.Validate())
		})
	}

	t.Run("exec needs no files", func(t *testing.T) {
		sc := DefaultServices()["photo-of-day-service"]
		assert.Empty(t, sc.PIDFile)
		assert.NoError(t, sc.Validate())
	})

	t.Run("unknown default service", func(t *testing.T) {
		cfg := Defaults()
		cfg.DefaultService = "nope"
		assert.ErrorIs(t, cfg.Validate(), ErrUnknownService)
	})
}

func TestConversions(t *testing.T) {
	cfg := Defaults()

	photo, err := cfg.Service("photo-service")
	require.NoError(t, err)
	svc := photo.Supervised()
	assert.Equal(t, "photo-service", svc.Name)
	assert.Equal(t, supervisor.LogTruncate, svc.LogMode)
	assert.Nil(t, photo.Generator())

	pod, err := cfg.Service("photo-of-day-service")
	require.NoError(t, err)
	g := pod.Generator()
	require.NotNil(t, g)
	assert.Equal(t, "photo_of_day_pb2.py", g.Marker)
	assert.Equal(t, "python", g.Command[0])
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Defaults().Render(&buf))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	services, ok := decoded["services"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, services, "photo-of-day-service")
	assert.Contains(t, buf.String(), "timeout: 10s")
}

func TestWriteSample_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteSample(path, false))

	assert.Error(t, WriteSample(path, false), "existing file is not replaced")
	require.NoError(t, WriteSample(path, true))

	cfg := load(t, path)
	want := Defaults()
	assert.Equal(t, want.Services, cfg.Services)
	assert.Equal(t, want.Stop, cfg.Stop)
	assert.Equal(t, want.History, cfg.History)
}
