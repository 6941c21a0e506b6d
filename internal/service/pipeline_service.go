package service

import (
	"context"
	"time"

	"ai-livehost-be/internal/config"
	"ai-livehost-be/internal/model"
	"ai-livehost-be/internal/pkg/logger"
	"ai-livehost-be/internal/repository/memory"
	"ai-livehost-be/pkg/compositor"
	"ai-livehost-be/pkg/llm"
	"ai-livehost-be/pkg/speech"

	"github.com/google/uuid"
)

type IPipelineService interface {
	// Start launches the dispatcher loop; it returns when ctx is cancelled.
	Start(ctx context.Context)
	// Wake nudges the dispatcher. Safe from any goroutine; coalesces.
	Wake()
	ActiveCount() int
	MaxConcurrent() int
}

// pipelineService drives admitted items through the generation stages. The
// concurrency cap is a slot semaphore acquired before an item leaves
// RECEIVED; a slot being released wakes the dispatcher directly instead of
// waiting for a polling tick.
type pipelineService struct {
	repo        *memory.ItemRepository
	responder   llm.LLMProvider
	synthesizer speech.Synthesizer
	compositor  compositor.Compositor
	onAir       IOnAirService
	admission   IAdmissionService
	logger      logger.ILogger
	cfg         config.PipelineConfig
	persona     string

	slots chan struct{}
	wake  chan struct{}
}

func NewPipelineService(
	repo *memory.ItemRepository,
	responder llm.LLMProvider,
	synthesizer speech.Synthesizer,
	comp compositor.Compositor,
	onAir IOnAirService,
	admission IAdmissionService,
	log logger.ILogger,
	cfg config.PipelineConfig,
	personaPrompt string,
) *pipelineService {
	return &pipelineService{
		repo:        repo,
		responder:   responder,
		synthesizer: synthesizer,
		compositor:  comp,
		onAir:       onAir,
		admission:   admission,
		logger:      log,
		cfg:         cfg,
		persona:     personaPrompt,
		slots:       make(chan struct{}, cfg.MaxConcurrent),
		wake:        make(chan struct{}, 1),
	}
}

func (p *pipelineService) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pipelineService) ActiveCount() int {
	return p.repo.ActiveCount()
}

func (p *pipelineService) MaxConcurrent() int {
	return p.cfg.MaxConcurrent
}

func (p *pipelineService) Start(ctx context.Context) {
	p.Wake()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}
		// Deferred evaluation lands here: every wakeup scores whatever the
		// admission-time pass did not get to.
		p.admission.RunEvaluationPass(ctx)
		p.dispatch(ctx)
	}
}

// dispatch starts items while both a slot and an evaluated RECEIVED item are
// available. Selection is strictly FIFO by admission time; priority decided
// admission, it does not reorder generation.
func (p *pipelineService) dispatch(ctx context.Context) {
	for {
		select {
		case p.slots <- struct{}{}:
		default:
			return
		}

		item, ok := p.repo.ClaimNextReceived()
		if !ok {
			<-p.slots
			return
		}
		go p.process(ctx, item)
	}
}

// process runs one item's stages in order. Exactly one adapter call is in
// flight for the item at any time; a failure terminates the item only.
func (p *pipelineService) process(ctx context.Context, item model.Item) {
	defer func() {
		<-p.slots
		p.Wake()
	}()

	id := item.Id

	if err := p.repo.Advance(id, model.StateGeneratingResponse, nil); err != nil {
		p.logger.Error("Pipeline", "Cannot start generation", map[string]interface{}{
			"item_id": id, "error": err.Error(),
		})
		return
	}
	response, err := p.responder.Chat(ctx, []llm.Message{
		{Role: "system", Content: p.persona},
		{Role: "user", Content: item.Text},
	})
	if err != nil {
		p.fail(id, "responder", err)
		return
	}

	if err := p.repo.Advance(id, model.StateGeneratingSpeech, func(it *model.Item) {
		it.ResponseText = response
	}); err != nil {
		p.logger.Error("Pipeline", "Transition refused", map[string]interface{}{"item_id": id, "error": err.Error()})
		return
	}
	audioRef, err := p.synthesizer.Synthesize(ctx, response)
	if err != nil {
		p.fail(id, "synthesizer", err)
		return
	}

	if err := p.repo.Advance(id, model.StateGeneratingVideo, func(it *model.Item) {
		it.AudioRef = audioRef
	}); err != nil {
		p.logger.Error("Pipeline", "Transition refused", map[string]interface{}{"item_id": id, "error": err.Error()})
		return
	}
	videoRef, err := p.compositor.Compose(ctx, audioRef)
	if err != nil {
		p.fail(id, "compositor", err)
		return
	}

	if err := p.repo.Advance(id, model.StateCompleted, func(it *model.Item) {
		it.VideoRef = videoRef
	}); err != nil {
		p.logger.Error("Pipeline", "Transition refused", map[string]interface{}{"item_id": id, "error": err.Error()})
		return
	}

	p.logger.Info("Pipeline", "Clip generated", map[string]interface{}{
		"item_id": id, "video_ref": videoRef,
	})

	if err := p.onAir.Enqueue(ctx, model.PlaybackRequest{
		ItemId:     id,
		VideoRef:   videoRef,
		EnqueuedAt: time.Now(),
	}); err != nil {
		// The clip stays retrievable over /next-video even if on-air
		// queueing broke.
		p.logger.Error("Pipeline", "Failed to enqueue playback", map[string]interface{}{
			"item_id": id, "error": err.Error(),
		})
	}
}

// fail records an adapter error verbatim and terminates the item. The error
// never propagates; other in-flight items are unaffected.
func (p *pipelineService) fail(id uuid.UUID, stage string, cause error) {
	if err := p.repo.Advance(id, model.StateFailed, func(it *model.Item) {
		it.FailureDetail = cause.Error()
	}); err != nil {
		p.logger.Error("Pipeline", "Failed to record failure", map[string]interface{}{
			"item_id": id, "error": err.Error(),
		})
		return
	}
	p.logger.Error("Pipeline", "Stage failed", map[string]interface{}{
		"item_id": id, "stage": stage, "error": cause.Error(),
	})
}
