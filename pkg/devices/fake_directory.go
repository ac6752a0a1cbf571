package devices

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// FakeDirectory is the in-memory DeviceDirectory for tests.
type FakeDirectory struct {
	mu         sync.Mutex
	devices    []InputDeviceInfo
	defaultUID string
	gains      map[string]float64

	// Error injection.
	FailSetDefault error
	FailGetDefault error
	FailGetGain    error
	FailSetGain    error

	setDefaultCalls []string
	setGainCalls    []string
}

func NewFakeDirectory(defaultUID string, devices ...InputDeviceInfo) *FakeDirectory {
	return &FakeDirectory{
		devices:    devices,
		defaultUID: defaultUID,
		gains:      make(map[string]float64),
	}
}

func (f *FakeDirectory) CaptureDevices() ([]InputDeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]InputDeviceInfo, len(f.devices))
	copy(out, f.devices)
	for i := range out {
		out[i].IsDefault = out[i].UID == f.defaultUID
	}
	return out, nil
}

func (f *FakeDirectory) DefaultInputUID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailGetDefault != nil {
		return "", f.FailGetDefault
	}
	return f.defaultUID, nil
}

func (f *FakeDirectory) SetDefaultInputUID(uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setDefaultCalls = append(f.setDefaultCalls, uid)
	if f.FailSetDefault != nil {
		return f.FailSetDefault
	}
	f.defaultUID = uid
	return nil
}

func (f *FakeDirectory) InputGain(uid string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailGetGain != nil {
		return 0, f.FailGetGain
	}
	gain, ok := f.gains[uid]
	if !ok {
		return 0, pkgerrors.Errorf("unknown device %s", uid)
	}
	return gain, nil
}

func (f *FakeDirectory) SetInputGain(uid string, gain float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setGainCalls = append(f.setGainCalls, uid)
	if f.FailSetGain != nil {
		return f.FailSetGain
	}
	f.gains[uid] = gain
	return nil
}

// SetGain seeds a device gain without recording a call.
func (f *FakeDirectory) SetGain(uid string, gain float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gains[uid] = gain
}

func (f *FakeDirectory) SetDefaultCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.setDefaultCalls))
	copy(out, f.setDefaultCalls)
	return out
}

func (f *FakeDirectory) SetGainCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.setGainCalls))
	copy(out, f.setGainCalls)
	return out
}

var _ DeviceDirectory = (*FakeDirectory)(nil)
