package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voxline/voxline/pkg/engine"
	"github.com/voxline/voxline/pkg/server"
	"github.com/voxline/voxline/pkg/stats"
	"github.com/voxline/voxline/pkg/trace"
	"github.com/voxline/voxline/pkg/vad"
)

func main() {
	godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Printf("[Main] Tracing disabled: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		trace.Shutdown(shutdownCtx)
	}()

	engines, err := buildEngines(ctx)
	if err != nil {
		log.Fatalf("[Main] Engine setup failed: %v", err)
	}

	recorder, err := stats.NewRecorder(stats.RecorderConfig{
		Path: getEnv("VOXLINE_STATS_PATH", "stats.json"),
	})
	if err != nil {
		log.Fatalf("[Main] Stats recorder failed: %v", err)
	}
	defer recorder.Close()

	modelPath := getEnv("VOXLINE_VAD_MODEL", "models/silero_vad.onnx")
	vadFactory := func() (vad.Engine, error) {
		return vad.NewSilero(vad.SileroConfig{
			ModelPath:  modelPath,
			SampleRate: 16000,
		})
	}

	cfg := server.DefaultConfig()
	cfg.Addr = getEnv("VOXLINE_ADDR", cfg.Addr)
	cfg.AuthToken = os.Getenv("VOXLINE_AUTH_TOKEN")
	cfg.DefaultLanguage = getEnv("VOXLINE_DEFAULT_LANG", cfg.DefaultLanguage)
	if v := os.Getenv("VOXLINE_MAX_SESSIONS_PER_IP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSessionsPerIP = n
		}
	}

	srv := server.NewServer(cfg, engines, vadFactory, recorder)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("[Main] Server start failed: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("[Main] Received %v, shutting down", sig)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		log.Printf("[Main] Shutdown error: %v", err)
	}
}

// buildEngines assembles the STT, LLM and TTS backends from environment
// variables. OpenAI is the default for all three.
func buildEngines(ctx context.Context) (server.Engines, error) {
	var engines server.Engines

	stt, err := engine.NewWhisperSTT(engine.WhisperConfig{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  os.Getenv("VOXLINE_STT_MODEL"),
	})
	if err != nil {
		return engines, err
	}
	engines.STT = stt

	switch backend := getEnv("VOXLINE_LLM_BACKEND", "openai"); backend {
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

	switch backend := getEnv("VOXLINE_TTS_BACKEND", "openai"); backend {
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
