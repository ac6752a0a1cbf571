package devices

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/petrzlen/dictate-golang/pkg/models"
)

const (
	// Below minUsableGain a microphone records near-silence and the
	// downstream recognizer returns garbage; raise it to raisedGain.
	minUsableGain = 0.3
	raisedGain    = 0.75
)

// Override records a system-default-input swap so it can be undone.
// Restoration is mandatory and idempotent.
type Override struct {
	PreviousUID string
	TargetUID   string

	restored bool
}

// OverrideManager swaps the process-wide default input for the duration
// of a session. Everything here is best-effort: a dictation session must
// not die because the OS refused a device switch.
type OverrideManager struct {
	dir         DeviceDirectory
	allowSwitch bool
	log         zerolog.Logger

	gainWG sync.WaitGroup
}

func NewOverrideManager(dir DeviceDirectory, allowSwitch bool, logger zerolog.Logger) *OverrideManager {
	return &OverrideManager{dir: dir, allowSwitch: allowSwitch, log: logger}
}

// Install swaps the system default input to the selected device and
// returns the override to undo later. Returns nil when no swap is
// needed (switching disabled, system default requested, or the target
// already is the default) or when the swap failed.
func (m *OverrideManager) Install(selection models.DeviceSelection) *Override {
	if !m.allowSwitch || selection.IsSystemDefault() {
		return nil
	}

	previous, err := m.dir.DefaultInputUID()
	if err != nil {
		m.log.Warn().Err(err).Msg("cannot read current default input, skipping device override")
		return nil
	}
	target := selection.UID()
	if previous == target {
		return nil
	}

	if err = m.dir.SetDefaultInputUID(target); err != nil {
		m.log.Warn().Err(err).Str("target_uid", target).Msg("cannot switch default input, recording on current default")
		return nil
	}
	m.log.Info().Str("previous_uid", previous).Str("target_uid", target).Msg("default input overridden for session")

	// Gain adjustment must not delay session start; failure is invisible
	// to the caller.
	m.gainWG.Add(1)
	go func() {
		defer m.gainWG.Done()
		m.ensureUsableGain(target)
	}()

	return &Override{PreviousUID: previous, TargetUID: target}
}

// Restore undoes an override exactly once. Nil and already-restored
// overrides are no-ops. Failures are logged, never propagated: stop must
// succeed regardless.
func (m *OverrideManager) Restore(o *Override) {
	if o == nil || o.restored {
		return
	}
	o.restored = true

	if err := m.dir.SetDefaultInputUID(o.PreviousUID); err != nil {
		m.log.Error().Err(err).Str("previous_uid", o.PreviousUID).Msg("cannot restore default input")
		return
	}
	m.log.Info().Str("previous_uid", o.PreviousUID).Msg("default input restored")
}

func (m *OverrideManager) ensureUsableGain(uid string) {
	gain, err := m.dir.InputGain(uid)
	if err != nil {
		m.log.Debug().Err(err).Str("device_uid", uid).Msg("cannot read input gain")
		return
	}
	if gain >= minUsableGain {
		return
	}
	if err = m.dir.SetInputGain(uid, raisedGain); err != nil {
		m.log.Debug().Err(err).Str("device_uid", uid).Msg("cannot raise input gain")
		return
	}
	m.log.Info().Str("device_uid", uid).Float64("previous_gain", gain).Float64("gain", raisedGain).Msg("raised input gain")
}

// waitGainAdjustments blocks until pending async gain work finishes.
func (m *OverrideManager) waitGainAdjustments() {
	m.gainWG.Wait()
}
