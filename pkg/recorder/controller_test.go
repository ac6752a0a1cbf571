package recorder

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/petrzlen/dictate-golang/pkg/audioio"
	"github.com/petrzlen/dictate-golang/pkg/devices"
	"github.com/petrzlen/dictate-golang/pkg/models"
)

type testHarness struct {
	input  *audioio.FakeInput
	dir    *devices.FakeDirectory
	fs     afero.Fs
	ctrl   *Controller
	mu     sync.Mutex
	chunks [][]byte
	levels []float64
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		input: audioio.NewFakeInput(),
		dir: devices.NewFakeDirectory("built-in",
			devices.InputDeviceInfo{UID: "built-in", Name: "Built-in Microphone"},
			devices.InputDeviceInfo{UID: "usb-mic", Name: "USB Microphone"},
		),
		fs: afero.NewMemMapFs(),
	}
	h.dir.SetGain("usb-mic", 0.5)
	h.ctrl = NewController(Config{
		Input:              h.input,
		Directory:          h.dir,
		Fs:                 h.fs,
		AllowDefaultSwitch: true,
		TempDir:            "/recordings",
		OnChunk: func(chunk []byte) {
			h.mu.Lock()
			h.chunks = append(h.chunks, chunk)
			h.mu.Unlock()
		},
		OnLevel: func(v float64) {
			h.mu.Lock()
			h.levels = append(h.levels, v)
			h.mu.Unlock()
		},
		Logger: zerolog.Nop(),
	})
	return h
}

func (h *testHarness) chunkCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.chunks)
}

func (h *testHarness) lastLevel() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.levels) == 0 {
		return 0, false
	}
	return h.levels[len(h.levels)-1], true
}

// f32MonoFrame builds a native-format frame of n samples at 16 kHz.
func f32MonoFrame(n int, value float32) models.AudioFrame {
	data := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(value))
	}
	return models.AudioFrame{Data: data, Format: models.FormatF32, SampleRate: 16000, Channels: 1}
}

func TestStart_WhileActiveReturnsAlreadyActive(t *testing.T) {
	h := newHarness(t)

	first, err := h.ctrl.Start(models.ModeStream, models.SystemDefault())
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	_, err = h.ctrl.Start(models.ModeFile, models.SystemDefault())
	if !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}

	// The running session must be untouched.
	if h.ctrl.State() != StateActiveStream {
		t.Errorf("expected state active-stream, got %s", h.ctrl.State())
	}
	if h.input.LastStream().Closed() {
		t.Error("existing capture stream must not be closed by a rejected start")
	}
	_ = first
	h.ctrl.Stop()
}

func TestStart_DeviceUnavailable(t *testing.T) {
	h := newHarness(t)
	h.input.OpenErr = pkgerrors.New("no such device")

	_, err := h.ctrl.Start(models.ModeFile, models.DeviceID("usb-mic"))
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected state idle after failed start, got %s", h.ctrl.State())
	}
	// The override installed during the failed start must be rolled back.
	if uid, _ := h.dir.DefaultInputUID(); uid != "built-in" {
		t.Errorf("expected default input restored, got %s", uid)
	}
}

func TestStop_WhileIdleIsNoop(t *testing.T) {
	h := newHarness(t)

	if path, ok := h.ctrl.Stop(); ok || path != "" {
		t.Errorf("expected no-op stop, got (%q, %v)", path, ok)
	}
	if got := h.ctrl.StopAndAwait(); got != "" {
		t.Errorf("expected empty result from idle StopAndAwait, got %q", got)
	}
}

func TestStop_TwiceSecondIsNoop(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ctrl.Start(models.ModeFile, models.SystemDefault()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if _, ok := h.ctrl.Stop(); !ok {
		t.Fatal("first stop should have stopped the session")
	}
	if _, ok := h.ctrl.Stop(); ok {
		t.Error("second stop must be a no-op")
	}
}

func TestFileMode_WritesWavAndResolvesOnce(t *testing.T) {
	h := newHarness(t)

	handle, err := h.ctrl.Start(models.ModeFile, models.SystemDefault())
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if handle.OutputPath == "" {
		t.Fatal("file-mode session must have an output path")
	}

	stream := h.input.LastStream()
	for i := 0; i < 10; i++ {
		stream.Feed(f32MonoFrame(1600, 0.25))
	}

	got := h.ctrl.StopAndAwait()
	if got != handle.OutputPath {
		t.Errorf("expected resolved path %s, got %s", handle.OutputPath, got)
	}

	data, err := afero.ReadFile(h.fs, got)
	if err != nil {
		t.Fatalf("cannot read recording: %v", err)
	}
	if len(data) <= 44 {
		t.Fatalf("expected wav payload beyond the header, got %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("output is not a RIFF/WAVE file")
	}
}

func TestStreamMode_DeliversChunks(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ctrl.Start(models.ModeStream, models.SystemDefault()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// 2400 samples in one burst: exactly 3 chunks, nothing left over.
	h.input.LastStream().Feed(f32MonoFrame(2400, 0.1))
	h.ctrl.StopAndAwait()

	if got := h.chunkCount(); got != 3 {
		t.Errorf("expected 3 chunks, got %d", got)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, chunk := range h.chunks {
		if len(chunk) != models.ChunkSizeBytes {
			t.Errorf("chunk %d: expected %d bytes, got %d", i, models.ChunkSizeBytes, len(chunk))
		}
	}
}

func TestStreamMode_RemainderDiscardedOnStop(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ctrl.Start(models.ModeStream, models.SystemDefault()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	h.input.LastStream().Feed(f32MonoFrame(850, 0.1))
	h.ctrl.Stop()

	if got := h.chunkCount(); got != 1 {
		t.Errorf("expected 1 full chunk, no short final chunk, got %d", got)
	}
}

func TestStreamMode_FramesAfterStopAreDropped(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ctrl.Start(models.ModeStream, models.SystemDefault()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	stream := h.input.LastStream()
	h.ctrl.Stop()

	stream.Feed(f32MonoFrame(1600, 0.1)) // in-flight frame after stop

	if got := h.chunkCount(); got != 0 {
		t.Errorf("expected no chunks from post-stop frames, got %d", got)
	}
}

func TestOverride_InstalledAndRestoredAcrossSession(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ctrl.Start(models.ModeFile, models.DeviceID("usb-mic")); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if uid, _ := h.dir.DefaultInputUID(); uid != "usb-mic" {
		t.Errorf("expected default switched to usb-mic during session, got %s", uid)
	}

	h.ctrl.StopAndAwait()

	if uid, _ := h.dir.DefaultInputUID(); uid != "built-in" {
		t.Errorf("expected default restored after stop, got %s", uid)
	}
}

func TestStop_EmitsFinalZeroLevel(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ctrl.Start(models.ModeStream, models.SystemDefault()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	h.input.LastStream().SetPower(-10, -5)
	h.ctrl.Stop()

	last, ok := h.lastLevel()
	if !ok {
		t.Fatal("expected at least one level emission")
	}
	if last != 0 {
		t.Errorf("expected final level 0, got %f", last)
	}
}

func TestStopAndAwait_ResolvesWithinSafetyWindow(t *testing.T) {
	h := newHarness(t)

	handle, err := h.ctrl.Start(models.ModeFile, models.SystemDefault())
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	start := time.Now()
	got := h.ctrl.StopAndAwait()
	elapsed := time.Since(start)

	if got != handle.OutputPath {
		t.Errorf("expected output path %s, got %s", handle.OutputPath, got)
	}
	// Writer resolution is fast here; the hard bound is the safety timer
	// plus scheduling jitter.
	if elapsed > CompletionTimeout+200*time.Millisecond {
		t.Errorf("StopAndAwait exceeded the safety window: %v", elapsed)
	}
}

func TestStateTransitions(t *testing.T) {
	h := newHarness(t)

	if got := h.ctrl.State(); got != StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if _, err := h.ctrl.Start(models.ModeFile, models.SystemDefault()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if got := h.ctrl.State(); got != StateActiveFile {
		t.Errorf("expected active-file, got %s", got)
	}
	h.ctrl.StopAndAwait()
	if got := h.ctrl.State(); got != StateIdle {
		t.Errorf("expected idle after stop, got %s", got)
	}
}
