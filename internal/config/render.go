package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# svclaunch configuration
#
# Services listed here are merged over the built-in profiles by name.
# Environment overrides use the SVCLAUNCH_ prefix, e.g. SVCLAUNCH_LOG_LEVEL=debug.
# SERVICE_NAME changes the display name of the launched service.

`

// Render writes c as YAML
func (c *Config) Render(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// WriteSample writes the default configuration to path. An existing file
// is only replaced when overwrite is set.
func WriteSample(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, sampleHeader); err != nil {
		return err
	}
	if err := Defaults().Render(f); err != nil {
		return err
	}
	return f.Close()
}
