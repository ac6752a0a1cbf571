package audioio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
)

// Speakers plays back finished recordings for auditioning.
//
// The state flow is:
//  1. currentPlayer == nil => nothing going on
//  2. Play grabs the mutex => starting to play
//  3. Stop (or end of stream) grabs the mutex and waits until playback stops.
//
// Invariant: at most one playerMonitorRoutine runs at a time.
type Speakers struct {
	otoContext *oto.Context
	log        zerolog.Logger

	currentPlayer *oto.Player
	currentDone   *sync.WaitGroup

	mutex    sync.Mutex // protects currentPlayer and stopFlag
	stopFlag bool
}

// NewSpeakers opens the playback device. Do not create more than one
// oto context per process.
func NewSpeakers(sampleRate int, numChannels int, logger zerolog.Logger) (*Speakers, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: numChannels,
		Format:       oto.FormatSignedInt16LE,
	}

	logger.Info().Int("sample_rate", sampleRate).Msg("oto context init, waiting until ready")
	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan // about 200ms empirically
	logger.Info().Msg("oto context ready")

	return &Speakers{otoContext: otoCtx, log: logger}, nil
}

// Play plays the whole PCM16LE stream; the returned WaitGroup unblocks
// when playback finishes or is stopped.
func (s *Speakers) Play(pcm io.Reader) (*sync.WaitGroup, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.currentPlayer != nil {
		return nil, fmt.Errorf("playback already in progress, call Stop first")
	}

	s.currentDone = &sync.WaitGroup{}
	s.currentDone.Add(1)

	s.currentPlayer = s.otoContext.NewPlayer(pcm)
	s.currentPlayer.Play()

	go s.playerMonitorRoutine()

	return s.currentDone, nil
}

// Stop interrupts the current playback, if any, and waits until the
// player has fully wound down.
func (s *Speakers) Stop() error {
	s.mutex.Lock()

	if s.stopFlag {
		s.mutex.Unlock()
		return fmt.Errorf("double-stop, the player is already being stopped")
	}
	if s.currentPlayer == nil {
		s.mutex.Unlock()
		return nil
	}

	s.stopFlag = true
	s.currentPlayer.Pause()
	untilStopped := s.currentDone // copy, it becomes nil on wind-down
	s.mutex.Unlock()

	untilStopped.Wait()
	return nil
}

func (s *Speakers) playerMonitorRoutine() {
	defer s.currentDone.Done()

	startTime := time.Now()
	for {
		s.mutex.Lock()
		playing := s.currentPlayer.IsPlaying()
		stop := s.stopFlag
		s.mutex.Unlock()

		if !playing || stop {
			break
		}
		time.Sleep(time.Millisecond)
	}

	s.mutex.Lock()
	if err := s.currentPlayer.Close(); err != nil {
		s.log.Error().Err(err).Msg("player.Close failed")
	}
	s.currentPlayer = nil
	s.currentDone = nil
	s.stopFlag = false
	s.mutex.Unlock()

	s.log.Debug().Dur("playback_duration", time.Since(startTime)).Msg("playback done")
}
