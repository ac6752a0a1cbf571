// Package streaming converts live capture into the fixed-size PCM chunks
// a streaming recognition service consumes.
package streaming

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/petrzlen/dictate-golang/pkg/audio_utils"
	"github.com/petrzlen/dictate-golang/pkg/models"
)

// ChunkSink receives converted chunks, in order, on the hand-off
// goroutine. It may block; the capture callback never waits for it.
type ChunkSink func(chunk []byte)

// handoffQueueSize buffers about 1.6s of audio between the capture
// callback and a slow consumer before chunks start getting dropped.
const handoffQueueSize = 32

// Converter accumulates converted PCM16 bytes and cuts them into
// models.ChunkSizeBytes chunks.
//
// Threading: Push runs on the real-time capture callback; the
// accumulator has that single writer and needs no lock. Chunks travel
// to the sink over a buffered channel serviced by one dispatch
// goroutine, so consumer latency never reaches the audio thread.
type Converter struct {
	fc   audio_utils.FormatConverter
	sink ChunkSink
	log  zerolog.Logger

	buf     []byte
	stopped atomic.Bool
	handoff chan []byte
	quit    chan struct{}
	done    chan struct{}

	failedFrames  atomic.Int64
	droppedChunks atomic.Int64
}

func NewConverter(fc audio_utils.FormatConverter, sink ChunkSink, logger zerolog.Logger) *Converter {
	c := &Converter{
		fc:      fc,
		sink:    sink,
		log:     logger,
		buf:     make([]byte, 0, 4*models.ChunkSizeBytes),
		handoff: make(chan []byte, handoffQueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.dispatchRoutine()
	return c
}

// Push converts one native frame and emits any complete chunks.
// Called from the real-time capture callback: no locks, no blocking.
// Frames arriving after Close are dropped.
func (c *Converter) Push(frame models.AudioFrame) {
	if c.stopped.Load() {
		return
	}

	pcm, err := c.fc.ToPCM16Mono(frame, models.TargetSampleRate)
	if err != nil {
		c.failedFrames.Add(1)
		c.log.Warn().Err(err).Int("frame_bytes", len(frame.Data)).Msg("frame conversion failed, dropping frame")
		return
	}
	c.buf = append(c.buf, pcm...)

	cut := (len(c.buf) / models.ChunkSizeBytes) * models.ChunkSizeBytes
	for offset := 0; offset < cut; offset += models.ChunkSizeBytes {
		chunk := make([]byte, models.ChunkSizeBytes)
		copy(chunk, c.buf[offset:offset+models.ChunkSizeBytes])
		select {
		case c.handoff <- chunk:
		default:
			c.droppedChunks.Add(1)
			c.log.Warn().Int64("dropped_chunks", c.droppedChunks.Load()).Msg("chunk consumer too slow, dropping chunk")
		}
	}
	if cut > 0 {
		remaining := copy(c.buf, c.buf[cut:])
		c.buf = c.buf[:remaining]
	}
}

func (c *Converter) dispatchRoutine() {
	defer close(c.done)
	for {
		select {
		case chunk := <-c.handoff:
			c.sink(chunk)
		case <-c.quit:
			// Deliver what is already queued, then stop.
			for {
				select {
				case chunk := <-c.handoff:
					c.sink(chunk)
				default:
					return
				}
			}
		}
	}
}

// Close stops accepting frames, delivers all queued chunks, and discards
// any sub-chunk remainder in the accumulator. Consumers only ever see
// full-size chunks; the discard loses at most 799 samples (~50ms).
func (c *Converter) Close() {
	if c.stopped.Swap(true) {
		return
	}
	close(c.quit)
	<-c.done

	if n := len(c.buf); n > 0 {
		c.log.Debug().Int("discarded_bytes", n).Msg("discarding sub-chunk remainder on stop")
	}
	c.buf = nil
}

// PendingBytes reports the sub-chunk remainder currently accumulated.
func (c *Converter) PendingBytes() int {
	return len(c.buf)
}

// FailedFrames reports how many frames failed conversion and were dropped.
func (c *Converter) FailedFrames() int64 {
	return c.failedFrames.Load()
}

// DroppedChunks reports how many chunks were dropped on a full hand-off queue.
func (c *Converter) DroppedChunks() int64 {
	return c.droppedChunks.Load()
}
