// Audition a finished recording: decode the float32 WAV the recorder
// produces and play it back through the default output device.
//
// Usage: go run ./cmd/play -file /tmp/dictation-<id>.wav
package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"github.com/petrzlen/dictate-golang/internal/utils"
	"github.com/petrzlen/dictate-golang/pkg/audio_utils"
	"github.com/petrzlen/dictate-golang/pkg/audioio"
	"github.com/petrzlen/dictate-golang/pkg/models"
)

const wavFormatIEEEFloat = 3

func main() {
	utils.SetupZerolog()

	fileFlag := flag.String("file", "", "recording to play back")
	flag.Parse()
	if *fileFlag == "" {
		log.Fatal().Msg("need -file with a recording path")
	}

	file, err := os.Open(*fileFlag)
	if err != nil {
		log.Fatal().Err(err).Str("path", *fileFlag).Msg("cannot open recording")
	}
	defer file.Close()

	samples, sampleRate := decodeFloatWav(file)
	log.Info().
		Int("samples", len(samples)).
		Int("sample_rate", sampleRate).
		Msg("recording decoded")

	pcm := audio_utils.Float32ToPCM16Bytes(samples)

	speakers, err := audioio.NewSpeakers(sampleRate, models.TargetChannels, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open speakers")
	}
	wg, err := speakers.Play(bytes.NewReader(pcm))
	if err != nil {
		log.Fatal().Err(err).Msg("cannot start playback")
	}
	wg.Wait()
	log.Info().Msg("playback finished")
}

// decodeFloatWav reads all samples of a mono 32-bit IEEE-float WAV.
func decodeFloatWav(file *os.File) ([]float32, int) {
	dec := wav.NewDecoder(file)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		log.Fatal().Msg("not a valid wav file")
	}
	if dec.WavAudioFormat != wavFormatIEEEFloat || dec.BitDepth != 32 || dec.NumChans != 1 {
		log.Fatal().
			Uint16("format", dec.WavAudioFormat).
			Uint16("bit_depth", dec.BitDepth).
			Uint16("channels", dec.NumChans).
			Msg("expected a mono 32-bit float recording")
	}
	if err := dec.FwdToPCM(); err != nil {
		log.Fatal().Err(err).Msg("cannot locate pcm data")
	}

	var samples []float32
	for {
		var s float32
		err := binary.Read(dec.PCMChunk, binary.LittleEndian, &s)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			log.Fatal().Err(err).Msg("cannot read samples")
		}
		samples = append(samples, s)
	}
	return samples, int(dec.SampleRate)
}

