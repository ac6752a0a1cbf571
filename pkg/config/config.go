// Package config is the persisted-settings collaborator: which microphone
// the user picked, whether sessions may switch the system default input,
// and where the surrounding application's services live.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/petrzlen/dictate-golang/pkg/models"
)

type Settings struct {
	// InputDeviceUID selects the capture device; empty means system default.
	InputDeviceUID string `mapstructure:"input_device_uid"`
	// SwitchDefaultInput allows sessions to temporarily repoint the
	// system default input at InputDeviceUID.
	SwitchDefaultInput bool `mapstructure:"switch_default_input"`
	// OutputDirectory for finished recordings; empty means the OS temp dir.
	OutputDirectory string `mapstructure:"output_directory"`
	// StreamEndpoint is the websocket URL of the streaming recognizer.
	StreamEndpoint string `mapstructure:"stream_endpoint"`
}

// Load reads settings from the given file, or from the default location
// (~/.config/dictate/config.yaml) when path is empty. A missing file
// yields defaults, not an error; a malformed one is an error.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("input_device_uid", "")
	v.SetDefault("switch_default_input", false)
	v.SetDefault("output_directory", "")
	v.SetDefault("stream_endpoint", "")

	v.SetEnvPrefix("DICTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "dictate"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		// No config yet is normal on first run; anything else is real.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &s, nil
}

// DeviceSelection maps the persisted device choice onto the capture API.
func (s *Settings) DeviceSelection() models.DeviceSelection {
	if s.InputDeviceUID == "" {
		return models.SystemDefault()
	}
	return models.DeviceID(s.InputDeviceUID)
}
