// Command voxline-cli runs the dialogue pipeline against the local
// microphone and speakers instead of a WebSocket client.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/voxline/voxline/pkg/audio"
	"github.com/voxline/voxline/pkg/dialog"
	"github.com/voxline/voxline/pkg/engine"
	"github.com/voxline/voxline/pkg/segment"
	"github.com/voxline/voxline/pkg/stats"
	"github.com/voxline/voxline/pkg/vad"
)

const (
	captureSampleRate = 16000
	captureChannels   = 1
)

func main() {
	godotenv.Load()

	if err := run(); err != nil {
		log.Fatalf("[CLI] %v", err)
	}
}

func run() error {
	engines, err := buildEngines(context.Background())
	if err != nil {
		return err
	}

	recorder, err := stats.NewRecorder(stats.RecorderConfig{
		Path: getEnv("VOXLINE_STATS_PATH", "stats.json"),
	})
	if err != nil {
		return err
	}
	defer recorder.Close()

	vadEngine, err := vad.NewSilero(vad.SileroConfig{
		ModelPath:  getEnv("VOXLINE_VAD_MODEL", "models/silero_vad.onnx"),
		SampleRate: captureSampleRate,
	})
	if err != nil {
		return err
	}
	defer vadEngine.Close()

	assemblerCfg := segment.DefaultAssemblerConfig()
	assemblerCfg.FrameSize = vadEngine.FrameSize()
	assembler, err := segment.NewFrameAssembler(assemblerCfg)
	if err != nil {
		return err
	}
	defer assembler.Close()

	pacer := audio.NewPacer(audio.PacerConfig{SampleRate: engines.TTS.SampleRate()})
	sink := &consoleSink{pacer: pacer}

	session := dialog.NewSession(getEnv("VOXLINE_DEFAULT_LANG", dialog.LanguageEnglish))
	orch := dialog.NewOrchestrator(dialog.OrchestratorConfig{
		STT:   engines.STT,
		LLM:   engines.LLM,
		TTS:   engines.TTS,
		Stats: recorder,
	})
	router := dialog.NewRouter(
		segment.NewSegmenter(segment.DefaultSegmenterConfig()),
		dialog.NewBargeInController(0),
		orch, session, sink,
	)
	defer router.Close()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	defer mctx.Uninit()

	// Mic callbacks only copy bytes out; classification and routing run
	// on the ingestion goroutine.
	micChunks := make(chan []byte, 50)
	capture, err := startCapture(mctx, micChunks)
	if err != nil {
		return err
	}
	defer func() {
		capture.Stop()
		capture.Uninit()
	}()

	playback, err := startPlayback(mctx, pacer)
	if err != nil {
		return err
	}
	defer func() {
		playback.Stop()
		playback.Uninit()
	}()

	stop := make(chan struct{})
	go func() {
		for chunk := range micChunks {
			frames, err := assembler.Push(chunk)
			if err != nil {
				log.Printf("[CLI] Frame assembly error: %v", err)
				continue
			}
			for _, frame := range frames {
				decision, err := vadEngine.Classify(frame.Samples)
				if err != nil {
					log.Printf("[CLI] VAD error: %v", err)
					continue
				}
				router.HandleFrame(decision, frame)
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	log.Printf("[CLI] Listening. Speak into the microphone, Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	close(stop)
	return nil
}

func startCapture(mctx *malgo.AllocatedContext, out chan<- []byte) (*malgo.Device, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.PeriodSizeInMilliseconds = 20
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = captureChannels
	cfg.SampleRate = captureSampleRate
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			chunk := make([]byte, len(inputSamples))
			copy(chunk, inputSamples)
			select {
			case out <- chunk:
			default:
				// Ingestion is behind; drop rather than block the device.
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	return device, nil
}

func startPlayback(mctx *malgo.AllocatedContext, pacer *audio.Pacer) (*malgo.Device, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.PeriodSizeInMilliseconds = 20
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(pacer.SampleRate())
	cfg.Alsa.NoMMap = 1

	// The device period and the pacer frame are both 20ms but the driver
	// may ask for a different amount, so carry a remainder across calls.
	var pending []byte
	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			for len(pending) < len(outputSamples) {
				pending = append(pending, pacer.ReadFrame()...)
			}
			copy(outputSamples, pending[:len(outputSamples)])
			pending = pending[len(outputSamples):]
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start playback device: %w", err)
	}
	return device, nil
}

// consoleSink prints transcripts to stdout and feeds synthesized audio
// into the playback pacer.
type consoleSink struct {
	pacer *audio.Pacer
}

var _ dialog.Sink = (*consoleSink)(nil)

func (c *consoleSink) SendInterrupt() error {
	c.pacer.FlushWithFadeOut(50)
	return nil
}

func (c *consoleSink) SendUserTranscription(text string) error {
	fmt.Printf("You: %s\n", text)
	return nil
}

func (c *consoleSink) SendAIResponse(text string) error {
	fmt.Printf("Bot: %s\n", text)
	return nil
}

func (c *consoleSink) SendAudio(clip []byte) error {
	c.pacer.Write(clip)
	return nil
}

type cliEngines struct {
	STT engine.STT
	LLM engine.LLM
	TTS engine.TTS
}

func buildEngines(ctx context.Context) (cliEngines, error) {
	var engines cliEngines

	stt, err := engine.NewWhisperSTT(engine.WhisperConfig{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  os.Getenv("VOXLINE_STT_MODEL"),
	})
	if err != nil {
		return engines, err
	}
	engines.STT = stt

	switch getEnv("VOXLINE_LLM_BACKEND", "openai") {
	case "gemini":
		llm, err := engine.NewGeminiLLM(ctx, engine.GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("VOXLINE_LLM_MODEL"),
		})
		if err != nil {
			return engines, err
		}
		engines.LLM = llm
	default:
		llm, err := engine.NewChatLLM(engine.ChatConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  os.Getenv("VOXLINE_LLM_MODEL"),
		})
		if err != nil {
			return engines, err
		}
		engines.LLM = llm
	}

	switch getEnv("VOXLINE_TTS_BACKEND", "openai") {
	case "elevenlabs":
		tts, err := engine.NewElevenLabsTTS(engine.ElevenLabsConfig{
			APIKey:  os.Getenv("ELEVENLABS_API_KEY"),
			VoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		})
		if err != nil {
			return engines, err
		}
		engines.TTS = tts
	default:
		tts, err := engine.NewSpeechTTS(engine.SpeechConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Voice:  os.Getenv("VOXLINE_TTS_VOICE"),
		})
		if err != nil {
			return engines, err
		}
		engines.TTS = tts
	}

	return engines, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
