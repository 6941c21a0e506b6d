package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Ai       AIConfig
	Speech   SpeechConfig
	Lipsync  LipsyncConfig
	Obs      ObsConfig
	Pipeline PipelineConfig
	Capture  CaptureConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	OnAirLogFilePath   string
	CorsAllowedOrigins string
	MediaDir           string
	BaseVideoPath      string
}

type AIConfig struct {
	LLMProvider      string // "openai", "vllm", "ollama"
	LLMModel         string
	LLMBaseURL       string
	LLMAPIKey        string
	VisionModel      string
	VisionBaseURL    string
	VisionAPIKey     string
	PersonaPrompt    string
	EvaluatorEnabled bool
}

type SpeechConfig struct {
	BaseURL string
}

type LipsyncConfig struct {
	BaseURL string
}

type ObsConfig struct {
	URL           string
	Password      string
	Scene         string
	BaseSource    string
	ClipPrefix    string
	ReconnectWait time.Duration
	MaxReconnects int
	ResumeDelay   time.Duration
}

type PipelineConfig struct {
	MaxConcurrent     int
	MinPriority       int
	DefaultPriority   int
	SyntheticPriority int
	SyntheticSenderId string
	BacklogCeiling    int
	TerminalItemTTL   time.Duration
}

type CaptureConfig struct {
	Enabled        bool
	SourceName     string
	Interval       time.Duration
	CaptureDir     string
	RingSize       int
	WindowSize     int
	ReactionPrompt string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			OnAirLogFilePath:   getEnv("ONAIR_LOG_FILE_PATH", "logs/onair.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			MediaDir:           getEnv("MEDIA_DIR", "media"),
			BaseVideoPath:      getEnv("BASE_VIDEO_PATH", "media/base_loop.mp4"),
		},
		Ai: AIConfig{
			LLMProvider:      getEnv("LLM_PROVIDER", "vllm"),
			LLMModel:         getEnv("LLM_MODEL", "deepseek-v3"),
			LLMBaseURL:       getEnv("LLM_BASE_URL", "http://localhost:8000"),
			LLMAPIKey:        getEnv("LLM_API_KEY", ""),
			VisionModel:      getEnv("VISION_MODEL", "gpt-4o-mini"),
			VisionBaseURL:    getEnv("VISION_BASE_URL", "https://api.openai.com"),
			VisionAPIKey:     getEnv("VISION_API_KEY", ""),
			PersonaPrompt:    getEnv("PERSONA_PROMPT", defaultPersonaPrompt),
			EvaluatorEnabled: getEnvAsBool("EVALUATOR_ENABLED", true),
		},
		Speech: SpeechConfig{
			BaseURL: getEnv("TTS_BASE_URL", "http://localhost:8001"),
		},
		Lipsync: LipsyncConfig{
			BaseURL: getEnv("LIPSYNC_BASE_URL", "http://localhost:8002"),
		},
		Obs: ObsConfig{
			URL:           getEnv("OBS_WS_URL", "ws://localhost:4455"),
			Password:      getEnv("OBS_WS_PASSWORD", ""),
			Scene:         getEnv("OBS_SCENE", "Broadcast"),
			BaseSource:    getEnv("OBS_BASE_SOURCE", "BaseLoop"),
			ClipPrefix:    getEnv("OBS_CLIP_PREFIX", "aihost_clip_"),
			ReconnectWait: getEnvAsDuration("OBS_RECONNECT_WAIT", 3*time.Second),
			MaxReconnects: getEnvAsInt("OBS_MAX_RECONNECTS", 10),
			ResumeDelay:   getEnvAsDuration("OBS_RESUME_DELAY", 1*time.Second),
		},
		Pipeline: PipelineConfig{
			MaxConcurrent:     getEnvAsInt("PIPELINE_MAX_CONCURRENT", 3),
			MinPriority:       getEnvAsInt("PIPELINE_MIN_PRIORITY", 5),
			DefaultPriority:   getEnvAsInt("PIPELINE_DEFAULT_PRIORITY", 5),
			SyntheticPriority: getEnvAsInt("PIPELINE_SYNTHETIC_PRIORITY", 10),
			SyntheticSenderId: getEnv("PIPELINE_SYNTHETIC_SENDER", "scene-watcher"),
			BacklogCeiling:    getEnvAsInt("PIPELINE_BACKLOG_CEILING", 20),
			TerminalItemTTL:   getEnvAsDuration("PIPELINE_TERMINAL_TTL", 1*time.Hour),
		},
		Capture: CaptureConfig{
			Enabled:        getEnvAsBool("CAPTURE_ENABLED", true),
			SourceName:     getEnv("CAPTURE_SOURCE", "Broadcast"),
			Interval:       getEnvAsDuration("CAPTURE_INTERVAL", 45*time.Second),
			CaptureDir:     getEnv("CAPTURE_DIR", "media/captures"),
			RingSize:       getEnvAsInt("CAPTURE_RING_SIZE", 5),
			WindowSize:     getEnvAsInt("CAPTURE_WINDOW_SIZE", 3),
			ReactionPrompt: getEnv("CAPTURE_REACTION_PROMPT", defaultReactionPrompt),
		},
	}
}

const defaultPersonaPrompt = "You are an upbeat AI live host. Reply to the viewer " +
	"message below in one or two spoken-style sentences. No emoji, no stage directions."

const defaultReactionPrompt = "You are an upbeat AI live host. Something just happened " +
	"on your own broadcast. React to it in one spoken-style sentence. Scene: "

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
