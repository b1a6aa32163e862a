// Command ema-vision is a voice assistant that looks at the shared screen
// before it answers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-vision/core"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/snapshot"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"github.com/koscakluka/ema-vision/internal/config"
	"github.com/koscakluka/ema-vision/internal/httpserver"
	"github.com/koscakluka/ema-vision/internal/metrics"
	"github.com/koscakluka/ema-vision/internal/tui"
	"golang.org/x/sync/errgroup"
)

const logFile = "ema-vision.log"

func main() {
	printSchema := flag.Bool("config-schema", false, "print the JSON schema of the configuration and exit")
	flag.Parse()

	if *printSchema {
		data, err := config.Schema()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if cfg.TUI {
		f, err := tea.LogToFile(logFile, "ema-vision")
		if err != nil {
			log.Fatalf("Error: failed to open log file: %v", err)
		}
		defer f.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Printf("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	registry := metrics.New()

	output, err := openAudioDevice(cfg.AudioDevice)
	if err != nil {
		return err
	}
	defer output.Close()

	backend, _ := llms.ParseBackend(cfg.Backend)
	voice, _ := texttospeech.ParseVoice(cfg.Voice)

	snapshotter := snapshot.NewSnapshotter()
	share := newScreenShare(snapshotter, frameSource(cfg.FrameFile))
	if share.available() {
		_ = share.SetSharing(true)
	}

	ui := tui.New()
	opts := []orchestration.OrchestratorOption{
		orchestration.WithSnapshotter(snapshotter),
		orchestration.WithResponder(newRouter(ctx, cfg)),
		orchestration.WithAudioOutput(output.device),
		orchestration.WithBackend(backend),
		orchestration.WithVoice(voice),
		orchestration.WithMetrics(registry),
	}
	if synthesizer := newSynthesizer(cfg, output.device.EncodingInfo()); synthesizer != nil {
		opts = append(opts, orchestration.WithSynthesizer(synthesizer))
	}
	if cfg.TUI {
		opts = append(opts, orchestration.WithEventHandler(ui))
	}
	assistant := orchestration.NewOrchestrator(opts...)
	defer assistant.Close()

	var mic *microphone
	if engine, closeEngine := newRecognitionEngine(ctx, cfg); engine != nil && output.capture != nil {
		defer closeEngine()
		recognizerOpts := append(assistant.RecognizerOptions(),
			speechtotext.WithAudioSource(output.capture),
			speechtotext.WithRestartBackoff(cfg.RestartBackoff),
		)
		mic = newMicrophone(ctx, func() recognizer {
			return speechtotext.NewContinuousRecognizer(engine, recognizerOpts...)
		})
		defer mic.Close()
	} else if closeEngine != nil {
		closeEngine()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return assistant.Run(ctx, headlessCallbacks(cfg.TUI)...)
	})
	if cfg.StatusAddr != "" {
		server := httpserver.New(assistant, registry.Handler())
		group.Go(func() error { return httpserver.Serve(ctx, server, cfg.StatusAddr) })
	}
	if mic != nil {
		if err := mic.SetListening(true); err != nil {
			log.Printf("Warning: failed to start listening: %v", err)
		}
	}

	if cfg.TUI {
		group.Go(func() error {
			defer cancel()
			options := tui.Options{Assistant: assistant, ScreenShare: share}
			if mic != nil {
				options.Microphone = mic
			}
			return ui.Run(ctx, options)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// headlessCallbacks prints the conversation when there is no terminal UI.
func headlessCallbacks(withTUI bool) []orchestration.RunOption {
	if withTUI {
		return nil
	}
	return []orchestration.RunOption{
		orchestration.WithStatusCallback(func(status string) {
			log.Printf("status: %s", status)
		}),
		orchestration.WithChatMessageCallback(func(role orchestration.Role, text string) {
			fmt.Printf("%s: %s\n", role, text)
		}),
		orchestration.WithTranscriptCallback(func(transcript string, final bool) {
			if final {
				log.Printf("heard: %s", transcript)
			}
		}),
		orchestration.WithListeningChangedCallback(func(listening bool) {
			log.Printf("listening: %v", listening)
		}),
		orchestration.WithCancellationCallback(func() {
			log.Println("turn cancelled")
		}),
		orchestration.WithTurnFailedCallback(func(err error) {
			log.Printf("turn failed: %v", err)
		}),
	}
}
