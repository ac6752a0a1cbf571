package devices

import (
	"bytes"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/gen2brain/malgo"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// MalgoDirectory enumerates capture devices through miniaudio and drives
// default-input switching and gain through small platform utilities
// (SwitchAudioSource / osascript on macOS, wpctl on PipeWire systems).
type MalgoDirectory struct {
	ctx      *malgo.AllocatedContext
	log      zerolog.Logger
	switcher switcher
}

func NewMalgoDirectory(logger zerolog.Logger) (*MalgoDirectory, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug().Msg(strings.Replace("malgo devices: "+message, "\n", "", -1))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "cannot init malgo context for device directory")
	}
	return &MalgoDirectory{ctx: ctx, log: logger, switcher: platformSwitcher()}, nil
}

func (d *MalgoDirectory) CaptureDevices() ([]InputDeviceInfo, error) {
	infos, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "cannot enumerate capture devices")
	}

	devices := make([]InputDeviceInfo, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, InputDeviceInfo{
			UID:       deviceUID(info.ID),
			Name:      info.Name(),
			IsDefault: info.IsDefault == 1,
		})
	}
	return devices, nil
}

func (d *MalgoDirectory) DefaultInputUID() (string, error) {
	devices, err := d.CaptureDevices()
	if err != nil {
		return "", err
	}
	for _, dev := range devices {
		if dev.IsDefault {
			return dev.UID, nil
		}
	}
	return "", pkgerrors.New("no default capture device reported")
}

func (d *MalgoDirectory) SetDefaultInputUID(uid string) error {
	return d.switcher.setDefaultInput(uid)
}

func (d *MalgoDirectory) InputGain(uid string) (float64, error) {
	return d.switcher.inputGain(uid)
}

func (d *MalgoDirectory) SetInputGain(uid string, gain float64) error {
	return d.switcher.setInputGain(uid, gain)
}

func (d *MalgoDirectory) Close() error {
	if err := d.ctx.Uninit(); err != nil {
		return pkgerrors.Wrap(err, "cannot uninit device directory context")
	}
	d.ctx.Free()
	return nil
}

// deviceUID renders a malgo device ID as a stable string key. CoreAudio
// IDs are printable UID strings already; elsewhere fall back to hex.
func deviceUID(id malgo.DeviceID) string {
	raw := bytes.TrimRight(id[:], "\x00")
	if len(raw) == 0 {
		return ""
	}
	printable := true
	for _, b := range raw {
		if b > unicode.MaxASCII || !unicode.IsPrint(rune(b)) {
			printable = false
			break
		}
	}
	if printable {
		return string(raw)
	}
	return hex.EncodeToString(raw)
}

var _ DeviceDirectory = (*MalgoDirectory)(nil)
