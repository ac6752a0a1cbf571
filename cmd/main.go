package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/petrzlen/dictate-golang/internal/networking"
	"github.com/petrzlen/dictate-golang/internal/utils"
	"github.com/petrzlen/dictate-golang/pkg/audio_utils"
	"github.com/petrzlen/dictate-golang/pkg/audioio"
	"github.com/petrzlen/dictate-golang/pkg/config"
	"github.com/petrzlen/dictate-golang/pkg/devices"
	"github.com/petrzlen/dictate-golang/pkg/models"
	"github.com/petrzlen/dictate-golang/pkg/recorder"
	"github.com/petrzlen/dictate-golang/pkg/transcriber"
)

func main() {
	utils.SetupZerolog()

	modeFlag := flag.String("mode", "file", "recording mode: file (batch transcription) or stream (live chunks)")
	configFlag := flag.String("config", "", "path to config.yaml (default ~/.config/dictate/config.yaml)")
	durationFlag := flag.Duration("duration", 0, "stop automatically after this long (0 = wait for ctrl-c)")
	listFlag := flag.Bool("list-devices", false, "list capture devices and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file, relying on the environment")
	}

	settings, err := config.Load(*configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load settings")
	}

	directory, err := devices.NewMalgoDirectory(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot init device directory")
	}
	defer func() {
		if err := directory.Close(); err != nil {
			log.Debug().Err(err).Msg("device directory close failed")
		}
	}()

	if *listFlag {
		listDevices(directory)
		return
	}

	input, err := audioio.NewMalgoInput(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot init audio input")
	}
	defer func() {
		if err := input.Close(); err != nil {
			log.Debug().Err(err).Msg("audio input close failed")
		}
	}()

	var mode models.Mode
	switch *modeFlag {
	case "file":
		mode = models.ModeFile
	case "stream":
		mode = models.ModeStream
	default:
		log.Fatal().Str("mode", *modeFlag).Msg("unknown mode, want file or stream")
	}

	var stream *networking.StreamClient
	var chunksSent atomic.Int64
	onChunk := func(chunk []byte) {
		chunksSent.Add(1)
	}
	if mode == models.ModeStream && settings.StreamEndpoint != "" {
		stream, err = networking.DialStream(settings.StreamEndpoint, nil)
		if err != nil {
			log.Fatal().Err(err).Str("endpoint", settings.StreamEndpoint).Msg("cannot reach streaming recognizer")
		}
		onChunk = func(chunk []byte) {
			chunksSent.Add(1)
			stream.Writer() <- chunk
		}
		go func() {
			for msg := range stream.Reader() {
				log.Info().Str("transcript", string(msg)).Msg("streaming recognizer")
			}
		}()
	}

	ctrl := recorder.NewController(recorder.Config{
		Input:              input,
		Converter:          audio_utils.NewPCMConverter(),
		Directory:          directory,
		AllowDefaultSwitch: settings.SwitchDefaultInput,
		TempDir:            settings.OutputDirectory,
		OnChunk:            onChunk,
		OnLevel: func(v float64) {
			log.Trace().Float64("level", v).Msg("mic level")
		},
		Logger: log.Logger,
	})

	handle, err := ctrl.Start(mode, settings.DeviceSelection())
	if err != nil {
		log.Fatal().Err(err).Msg("cannot start recording")
	}
	log.Info().Str("session_id", handle.ID).Str("mode", mode.String()).Msg("recording, ctrl-c to stop")

	waitForStop(*durationFlag)

	recordingPath := ctrl.StopAndAwait()
	if stream != nil {
		close(stream.Writer())
	}
	log.Info().Int64("chunks_sent", chunksSent.Load()).Str("recording_path", recordingPath).Msg("session finished")

	if mode == models.ModeFile && recordingPath != "" {
		transcribeRecording(recordingPath)
	}
}

func waitForStop(duration time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if duration > 0 {
		select {
		case <-sigChan:
		case <-time.After(duration):
		}
		return
	}
	<-sigChan
}

func listDevices(directory *devices.MalgoDirectory) {
	list, err := directory.CaptureDevices()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot enumerate capture devices")
	}
	for _, dev := range list {
		log.Info().Str("uid", dev.UID).Str("name", dev.Name).Bool("default", dev.IsDefault).Msg("capture device")
	}
}

func transcribeRecording(path string) {
	apiKey := os.Getenv("OPEN_AI_API_KEY")
	if apiKey == "" {
		log.Info().Str("path", path).Msg("OPEN_AI_API_KEY not set, skipping transcription")
		return
	}

	file, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("cannot open recording")
		return
	}
	defer file.Close()

	whisper := transcriber.NewOpenAIWhisper(openai.NewClient(apiKey), log.Logger)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	transcript, err := whisper.Transcribe(ctx, file, "wav", "")
	if err != nil {
		log.Error().Err(err).Msg("cannot transcribe recording")
		return
	}
	log.Info().Str("transcript", transcript).Msg("dictation transcribed")
}
