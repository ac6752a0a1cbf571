package devices

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// switcher performs the platform-specific pieces the audio library cannot:
// changing the system default input and adjusting input gain.
type switcher interface {
	setDefaultInput(uid string) error
	inputGain(uid string) (float64, error)
	setInputGain(uid string, gain float64) error
}

func platformSwitcher() switcher {
	switch runtime.GOOS {
	case "darwin":
		return darwinSwitcher{}
	case "linux":
		return pipewireSwitcher{}
	default:
		return unsupportedSwitcher{}
	}
}

// darwinSwitcher shells out to SwitchAudioSource (brew install
// switchaudio-osx) for the default device and to osascript for gain.
type darwinSwitcher struct{}

func (darwinSwitcher) setDefaultInput(uid string) error {
	out, err := exec.Command("SwitchAudioSource", "-t", "input", "-u", uid).CombinedOutput()
	if err != nil {
		return pkgerrors.Wrapf(err, "SwitchAudioSource failed for %s: %s", uid, strings.TrimSpace(string(out)))
	}
	return nil
}

// Gain on macOS applies to the default input device; there is no
// per-device volume via osascript, so uid is only used for errors.
func (darwinSwitcher) inputGain(uid string) (float64, error) {
	out, err := exec.Command("osascript", "-e", "input volume of (get volume settings)").Output()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "cannot read input volume for %s", uid)
	}
	volume, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "unexpected osascript output %q", out)
	}
	return float64(volume) / 100.0, nil
}

func (darwinSwitcher) setInputGain(uid string, gain float64) error {
	script := fmt.Sprintf("set volume input volume %d", int(gain*100))
	if out, err := exec.Command("osascript", "-e", script).CombinedOutput(); err != nil {
		return pkgerrors.Wrapf(err, "cannot set input volume for %s: %s", uid, strings.TrimSpace(string(out)))
	}
	return nil
}

// pipewireSwitcher drives wpctl, following the pw-cli/pw-link subprocess
// approach common on PipeWire desktops.
type pipewireSwitcher struct{}

func (pipewireSwitcher) setDefaultInput(uid string) error {
	out, err := exec.Command("wpctl", "set-default", uid).CombinedOutput()
	if err != nil {
		return pkgerrors.Wrapf(err, "wpctl set-default failed for %s: %s", uid, strings.TrimSpace(string(out)))
	}
	return nil
}

func (pipewireSwitcher) inputGain(uid string) (float64, error) {
	out, err := exec.Command("wpctl", "get-volume", uid).Output()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "wpctl get-volume failed for %s", uid)
	}
	// Output looks like "Volume: 0.75" (possibly with a [MUTED] suffix).
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return 0, pkgerrors.Errorf("unexpected wpctl output %q", out)
	}
	volume, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "unexpected wpctl volume %q", fields[1])
	}
	return volume, nil
}

func (pipewireSwitcher) setInputGain(uid string, gain float64) error {
	arg := strconv.FormatFloat(gain, 'f', 2, 64)
	if out, err := exec.Command("wpctl", "set-volume", uid, arg).CombinedOutput(); err != nil {
		return pkgerrors.Wrapf(err, "wpctl set-volume failed for %s: %s", uid, strings.TrimSpace(string(out)))
	}
	return nil
}

type unsupportedSwitcher struct{}

func (unsupportedSwitcher) setDefaultInput(string) error       { return ErrNotSupported }
func (unsupportedSwitcher) inputGain(string) (float64, error)  { return 0, ErrNotSupported }
func (unsupportedSwitcher) setInputGain(string, float64) error { return ErrNotSupported }
