package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-livehost-be/internal/config"
	"ai-livehost-be/internal/controller"
	"ai-livehost-be/internal/pkg/logger"
	"ai-livehost-be/internal/repository/memory"
	"ai-livehost-be/internal/service"
	"ai-livehost-be/pkg/compositor/latentsync"
	"ai-livehost-be/pkg/evaluator"
	"ai-livehost-be/pkg/llm/factory"
	"ai-livehost-be/pkg/obs"
	"ai-livehost-be/pkg/speech/zonos"
	"ai-livehost-be/pkg/vision/openaivision"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const playbackTopic = "playback.requests"

type Container struct {
	// Controllers
	InputController controller.IInputController
	MediaController controller.IMediaController

	// Background services (exposed for main.go to run)
	PipelineService service.IPipelineService
	OnAirService    service.IOnAirService
	CaptureService  service.ICaptureService

	ObsClient *obs.Client
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	// Swap traffic gets its own file so broadcast incidents can be read in
	// isolation.
	onAirLogger := logger.NewIsolatedLogger(cfg.App.OnAirLogFilePath)

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Generative adapters
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.LLMAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	var scorer evaluator.Evaluator
	if cfg.Ai.EvaluatorEnabled {
		scorer = evaluator.NewLLMEvaluator(llmProvider)
	} else {
		log.Printf("[INFO] Priority evaluation disabled, every message gets the default priority")
	}

	synthesizer := zonos.NewProvider(cfg.Speech.BaseURL, cfg.App.MediaDir)
	comp := latentsync.NewProvider(cfg.Lipsync.BaseURL, cfg.App.BaseVideoPath, cfg.App.MediaDir)
	describer := openaivision.NewProvider(cfg.Ai.VisionBaseURL, cfg.Ai.VisionModel, cfg.Ai.VisionAPIKey)

	// 4. Broadcast control surface
	obsClient := obs.NewClient(cfg.Obs.URL, cfg.Obs.Password, cfg.Obs.ReconnectWait, cfg.Obs.MaxReconnects, onAirLogger)
	if err := obsClient.Connect(context.Background()); err != nil {
		// The stream keeps looping its base source without us; swaps resume
		// once the reconnect loop gets through.
		log.Printf("[WARN] Broadcast control connection failed: %v", err)
	}
	surface := obs.NewSurface(obsClient, cfg.Obs.Scene, cfg.Obs.BaseSource, onAirLogger)
	controlSurface := &broadcastSurface{surface: surface}

	// 5. Storage
	itemRepo := memory.NewItemRepository(cfg.Pipeline.TerminalItemTTL, time.Minute)

	// 6. Services
	publisherService := service.NewPublisherService(playbackTopic, pubSub)
	admissionService := service.NewAdmissionService(itemRepo, scorer, sysLogger, cfg.Pipeline)
	onAirService := service.NewOnAirService(
		controlSurface,
		publisherService,
		pubSub,
		playbackTopic,
		onAirLogger,
		cfg.Obs,
		cfg.App.MediaDir,
	)
	pipelineService := service.NewPipelineService(
		itemRepo,
		llmProvider,
		synthesizer,
		comp,
		onAirService,
		admissionService,
		sysLogger,
		cfg.Pipeline,
		cfg.Ai.PersonaPrompt,
	)
	admissionService.SetNotify(pipelineService.Wake)

	captureService := service.NewCaptureService(
		controlSurface,
		describer,
		llmProvider,
		admissionService,
		sysLogger,
		cfg.Capture,
	)

	mediaService := service.NewMediaService(itemRepo, sysLogger, cfg.App.MediaDir, cfg.App.BaseVideoPath)
	statusService := service.NewStatusService(itemRepo, pipelineService, onAirService)

	// 7. Controllers
	return &Container{
		InputController: controller.NewInputController(admissionService, statusService),
		MediaController: controller.NewMediaController(mediaService),
		PipelineService: pipelineService,
		OnAirService:    onAirService,
		CaptureService:  captureService,
		ObsClient:       obsClient,
	}
}
