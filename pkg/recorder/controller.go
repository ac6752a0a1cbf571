// Package recorder orchestrates recording sessions: device override,
// capture stream, level metering, and either durable-file encoding or
// live chunk streaming.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/petrzlen/dictate-golang/pkg/audio_utils"
	"github.com/petrzlen/dictate-golang/pkg/audioio"
	"github.com/petrzlen/dictate-golang/pkg/devices"
	"github.com/petrzlen/dictate-golang/pkg/levelmeter"
	"github.com/petrzlen/dictate-golang/pkg/models"
	"github.com/petrzlen/dictate-golang/pkg/streaming"
)

var (
	// ErrAlreadyActive is returned by Start while another session runs;
	// the existing session is left untouched.
	ErrAlreadyActive = errors.New("recording session already active")
	// ErrDeviceUnavailable is returned when the capture device cannot be
	// opened; the controller is back in Idle afterwards.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// CompletionTimeout bounds StopAndAwait: if the writer's finished signal
// never arrives, the best-known file location is returned after this long.
const CompletionTimeout = 300 * time.Millisecond

// State is the controller lifecycle position.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActiveFile
	StateActiveStream
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActiveFile:
		return "active-file"
	case StateActiveStream:
		return "active-stream"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

func (s State) active() bool {
	return s == StateActiveFile || s == StateActiveStream
}

// Config wires the controller's collaborators. Everything is injected;
// the controller holds no process-wide state.
type Config struct {
	Input     audioio.InputProvider
	Converter audio_utils.FormatConverter
	Directory devices.DeviceDirectory
	Fs        afero.Fs

	// AllowDefaultSwitch enables temporary system-default-input switching.
	AllowDefaultSwitch bool
	// TempDir for File-mode output; defaults to os.TempDir().
	TempDir string

	// OnChunk receives Stream-mode chunks (1600 bytes each, in order).
	OnChunk streaming.ChunkSink
	// OnLevel receives normalized loudness at 20 Hz, plus a final 0 on stop.
	OnLevel func(float64)

	Logger zerolog.Logger
}

// SessionHandle identifies one started session.
type SessionHandle struct {
	ID         string
	Mode       models.Mode
	StartedAt  time.Time
	OutputPath string // File mode only
}

type activeSession struct {
	handle   SessionHandle
	stream   audioio.CaptureStream
	meter    *levelmeter.Meter
	chunker  *streaming.Converter
	writer   *fileWriter
	override *devices.Override
	done     *completion
}

// Controller owns the single active recording session.
//
// All state mutation happens on the caller's (control) goroutine under
// mu; the audio callback only ever feeds the chunker/writer, both of
// which gate on their own stop flags.
type Controller struct {
	cfg       Config
	overrides *devices.OverrideManager
	log       zerolog.Logger

	mu    sync.Mutex
	state State
	sess  *activeSession
}

func NewController(cfg Config) *Controller {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Converter == nil {
		cfg.Converter = audio_utils.NewPCMConverter()
	}
	return &Controller{
		cfg:       cfg,
		overrides: devices.NewOverrideManager(cfg.Directory, cfg.AllowDefaultSwitch, cfg.Logger),
		log:       cfg.Logger,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the capture device and begins recording in the given mode.
// Exactly one session may be active; a second Start fails with
// ErrAlreadyActive and leaves the running session untouched.
func (c *Controller) Start(mode models.Mode, selection models.DeviceSelection) (SessionHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return SessionHandle{}, fmt.Errorf("%w (state=%s)", ErrAlreadyActive, c.state)
	}
	c.state = StateStarting

	sess := &activeSession{
		handle: SessionHandle{
			ID:        uuid.New().String(),
			Mode:      mode,
			StartedAt: time.Now(),
		},
		override: c.overrides.Install(selection),
		done:     newCompletion(),
	}

	var onFrame audioio.DataCallback
	switch mode {
	case models.ModeFile:
		sess.handle.OutputPath = filepath.Join(c.cfg.TempDir, fmt.Sprintf("dictation-%s.wav", sess.handle.ID))
		writer, err := newFileWriter(c.cfg.Fs, c.cfg.Converter, sess.handle.OutputPath, sess.done, c.log)
		if err != nil {
			c.overrides.Restore(sess.override)
			c.state = StateIdle
			return SessionHandle{}, err
		}
		sess.writer = writer
		onFrame = writer.push
	case models.ModeStream:
		sess.chunker = streaming.NewConverter(c.cfg.Converter, c.onChunk(), c.log)
		onFrame = sess.chunker.Push
	default:
		c.overrides.Restore(sess.override)
		c.state = StateIdle
		return SessionHandle{}, fmt.Errorf("unknown recording mode %d", mode)
	}

	stream, err := c.cfg.Input.Open(audioio.CaptureConfig{
		Format:  models.FormatF32,
		OnFrame: onFrame,
	})
	if err != nil {
		c.abortStart(sess)
		return SessionHandle{}, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	sess.stream = stream

	sess.meter = levelmeter.NewMeter(c.cfg.OnLevel, c.log)
	sess.meter.Start(stream)

	c.sess = sess
	switch mode {
	case models.ModeFile:
		c.state = StateActiveFile
	default:
		c.state = StateActiveStream
	}

	c.log.Info().
		Str("session_id", sess.handle.ID).
		Str("mode", mode.String()).
		Str("device", selection.String()).
		Bool("override_installed", sess.override != nil).
		Msg("recording session started")
	return sess.handle, nil
}

// onChunk returns the configured chunk sink, or a drop-everything sink.
func (c *Controller) onChunk() streaming.ChunkSink {
	if c.cfg.OnChunk != nil {
		return c.cfg.OnChunk
	}
	return func([]byte) {}
}

// abortStart unwinds a partially started session.
func (c *Controller) abortStart(sess *activeSession) {
	if sess.chunker != nil {
		sess.chunker.Close()
	}
	if sess.writer != nil {
		sess.writer.close()
		sess.writer.discard()
	}
	c.overrides.Restore(sess.override)
	c.state = StateIdle
}

// Stop tears the active session down best-effort and returns the output
// file path for File-mode sessions (possibly still being finalized).
// Calling Stop while Idle is a no-op returning ("", false).
func (c *Controller) Stop() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.teardownLocked()
	if sess == nil {
		return "", false
	}
	if sess.handle.Mode == models.ModeFile {
		return sess.handle.OutputPath, true
	}
	return "", true
}

// StopAndAwait tears the session down and waits for the finished file.
// It resolves exactly once: normally when the writer finalizes the WAV,
// and no later than CompletionTimeout with the best-known path if that
// signal never arrives. Stream-mode and Idle stops return "".
func (c *Controller) StopAndAwait() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.teardownLocked()
	if sess == nil || sess.handle.Mode != models.ModeFile {
		return ""
	}
	return sess.done.await(CompletionTimeout, sess.handle.OutputPath)
}

// teardownLocked transitions Active -> Stopping -> Idle and releases all
// session resources. Returns nil when there was nothing to stop.
func (c *Controller) teardownLocked() *activeSession {
	if !c.state.active() {
		return nil
	}
	c.state = StateStopping
	sess := c.sess
	c.sess = nil

	// Order matters: the capture stream's stop flag must be set before
	// the chunker/writer stop accepting, so no in-flight frame can
	// resurrect a closed pipeline.
	if err := sess.stream.Close(); err != nil {
		c.log.Debug().Err(err).Msg("capture stream close failed")
	}
	sess.meter.Stop()
	if sess.chunker != nil {
		sess.chunker.Close()
	}
	if sess.writer != nil {
		sess.writer.close()
	}
	c.overrides.Restore(sess.override)

	c.state = StateIdle
	c.log.Info().
		Str("session_id", sess.handle.ID).
		Dur("session_duration", time.Since(sess.handle.StartedAt)).
		Msg("recording session stopped")
	return sess
}
