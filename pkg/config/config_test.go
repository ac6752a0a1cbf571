package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.InputDeviceUID != "" || s.SwitchDefaultInput {
		t.Errorf("expected zero-value defaults, got %+v", s)
	}
	if !s.DeviceSelection().IsSystemDefault() {
		t.Error("empty device UID must map to system default")
	}
}

func TestLoad_ReadsYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "input_device_uid: usb-mic\nswitch_default_input: true\noutput_directory: /tmp/dictations\nstream_endpoint: ws://localhost:9090/stream\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.InputDeviceUID != "usb-mic" {
		t.Errorf("expected usb-mic, got %q", s.InputDeviceUID)
	}
	if !s.SwitchDefaultInput {
		t.Error("expected switch_default_input true")
	}
	if s.OutputDirectory != "/tmp/dictations" {
		t.Errorf("unexpected output directory %q", s.OutputDirectory)
	}
	if s.StreamEndpoint != "ws://localhost:9090/stream" {
		t.Errorf("unexpected stream endpoint %q", s.StreamEndpoint)
	}
}

func TestLoad_MalformedYamlIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("input_device_uid: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestDeviceSelection_ExplicitUID(t *testing.T) {
	s := &Settings{InputDeviceUID: "usb-mic"}
	sel := s.DeviceSelection()
	if sel.IsSystemDefault() {
		t.Error("explicit UID must not be system default")
	}
	if sel.UID() != "usb-mic" {
		t.Errorf("expected usb-mic, got %q", sel.UID())
	}
}
