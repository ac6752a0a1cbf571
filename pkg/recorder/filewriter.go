package recorder

import (
	"sync"

	"github.com/go-audio/wav"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/petrzlen/dictate-golang/pkg/audio_utils"
	"github.com/petrzlen/dictate-golang/pkg/models"
)

// wavFormatIEEEFloat is the RIFF audio format tag for 32-bit float PCM,
// which keeps maximum fidelity for the downstream recognizer.
const wavFormatIEEEFloat = 3

// frameQueueSize buffers a few seconds of hardware frames between the
// capture callback and the disk writer.
const frameQueueSize = 256

// fileWriter drains capture frames onto disk as a mono float32 16 kHz
// WAV. The capture callback pushes, one goroutine writes; the callback
// never touches the filesystem.
type fileWriter struct {
	fs   afero.Fs
	fc   audio_utils.FormatConverter
	log  zerolog.Logger
	path string
	done *completion

	frames    chan models.AudioFrame
	stopped   chan struct{} // closed by close(); gates pushes
	closeOnce sync.Once

	droppedFrames int64
}

func newFileWriter(fs afero.Fs, fc audio_utils.FormatConverter, path string, done *completion, logger zerolog.Logger) (*fileWriter, error) {
	file, err := fs.Create(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "cannot create recording file %s", path)
	}

	w := &fileWriter{
		fs:      fs,
		fc:      fc,
		log:     logger,
		path:    path,
		done:    done,
		frames:  make(chan models.AudioFrame, frameQueueSize),
		stopped: make(chan struct{}),
	}

	go w.writeRoutine(file)
	return w, nil
}

// push enqueues a frame for encoding. Runs on the real-time callback:
// a full queue drops the frame rather than blocking.
func (w *fileWriter) push(frame models.AudioFrame) {
	select {
	case <-w.stopped:
		return
	default:
	}
	select {
	case w.frames <- frame:
	default:
		w.droppedFrames++
		w.log.Warn().Int64("dropped_frames", w.droppedFrames).Msg("disk writer behind, dropping frame")
	}
}

func (w *fileWriter) writeRoutine(file afero.File) {
	enc := wav.NewEncoder(file, models.TargetSampleRate, 32, models.TargetChannels, wavFormatIEEEFloat)

	var writeErr error
	for frame := range w.frames {
		samples, err := w.fc.ToFloat32Mono(frame, models.TargetSampleRate)
		if err != nil {
			w.log.Warn().Err(err).Msg("frame conversion failed, skipping in file output")
			continue
		}
		for _, s := range samples {
			if err = enc.WriteFrame(s); err != nil {
				writeErr = err
				break
			}
		}
		if writeErr != nil {
			w.log.Error().Err(writeErr).Str("path", w.path).Msg("wav write failed, stopping file output")
			break
		}
	}

	// Drain anything left if we bailed early on a write error.
	for range w.frames {
	}

	if err := enc.Close(); err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("cannot finalize wav encoding")
	}
	if err := file.Close(); err != nil {
		w.log.Debug().Err(err).Str("path", w.path).Msg("recording file close failed")
	}

	w.log.Info().Str("path", w.path).Msg("recording file finalized")
	// This is the primary exactly-once resolution path; the safety timer
	// in StopAndAwait covers us if this goroutine never gets here.
	w.done.resolve(w.path)
}

// close stops accepting frames and lets the writer finish the file.
// Safe to call more than once. Must only run after the capture stream
// is closed, so no push can race the channel close.
func (w *fileWriter) close() {
	w.closeOnce.Do(func() {
		close(w.stopped)
		close(w.frames)
	})
}

// discard removes the (partial) output file, for failed session starts.
func (w *fileWriter) discard() {
	if err := w.fs.Remove(w.path); err != nil {
		w.log.Debug().Err(err).Str("path", w.path).Msg("cannot remove abandoned recording file")
	}
}
