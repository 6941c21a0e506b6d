package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"ai-livehost-be/internal/config"
	"ai-livehost-be/internal/dto"
	"ai-livehost-be/internal/model"
	"ai-livehost-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// PlaybackWait blocks until the clip it was armed for finishes playing.
type PlaybackWait interface {
	Wait(ctx context.Context) error
	Cancel()
}

// ControlSurface is the slice of the broadcast program the on-air loop
// manipulates. The production implementation talks obs-websocket; tests
// supply a fake.
type ControlSurface interface {
	Connected() bool
	OnReconnect(fn func())
	RemoveStaleClipInputs(ctx context.Context, prefix string) error
	CreateClipInput(ctx context.Context, name, filePath string) error
	RemoveClipInput(ctx context.Context, name string) error
	CopyBaseTransform(ctx context.Context, clipName string) error
	ApplyDefaultTransform(ctx context.Context, clipName string) error
	SetBaseVisible(ctx context.Context, visible bool) error
	ExpectPlaybackEnded(inputName string) PlaybackWait
}

type IOnAirService interface {
	// Start subscribes to the playback topic and serves swaps until ctx is
	// cancelled.
	Start(ctx context.Context) error
	Enqueue(ctx context.Context, req model.PlaybackRequest) error
	State() dto.OnAirStateResponse
	PendingDepth() int
	Connected() bool
}

// onAirService swaps completed clips into the broadcast one at a time. The
// queue is a watermill topic with a single subscriber goroutine, so swap
// mutual exclusion falls out of the consumption model rather than a lock
// around the swap body.
type onAirService struct {
	surface   ControlSurface
	publisher IPublisherService
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger
	cfg       config.ObsConfig
	mediaDir  string

	pending    atomic.Int64
	mu         sync.Mutex
	swapping   bool
	activeClip string

	// swapMu serializes swap cycles with post-reconnect recovery so the
	// recovery pass never tears down a clip that is legitimately on air.
	swapMu sync.Mutex
}

func NewOnAirService(
	surface ControlSurface,
	publisher IPublisherService,
	pubSub *gochannel.GoChannel,
	topicName string,
	log logger.ILogger,
	cfg config.ObsConfig,
	mediaDir string,
) *onAirService {
	return &onAirService{
		surface:   surface,
		publisher: publisher,
		pubSub:    pubSub,
		topicName: topicName,
		logger:    log,
		cfg:       cfg,
		mediaDir:  mediaDir,
	}
}

func (s *onAirService) Enqueue(ctx context.Context, req model.PlaybackRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		return err
	}
	s.pending.Add(1)
	return nil
}

func (s *onAirService) PendingDepth() int {
	return int(s.pending.Load())
}

func (s *onAirService) Connected() bool {
	return s.surface.Connected()
}

func (s *onAirService) State() dto.OnAirStateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dto.OnAirStateResponse{
		SwapInProgress: s.swapping,
		ActiveClip:     s.activeClip,
		PendingDepth:   s.PendingDepth(),
	}
}

func (s *onAirService) Start(ctx context.Context) error {
	// Clip inputs from a previous run are orphans; clear them before
	// serving new swaps.
	if s.surface.Connected() {
		if err := s.surface.RemoveStaleClipInputs(ctx, s.cfg.ClipPrefix); err != nil {
			s.logger.Warn("OnAir", "Stale clip cleanup failed", map[string]interface{}{"error": err.Error()})
		}
	}

	// A link drop mid-swap leaves the base hidden and the clip input
	// orphaned; once the control surface is back, reset to the idle base.
	s.surface.OnReconnect(func() { s.recoverIdle(ctx) })

	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go s.consume(ctx, messages)
	return nil
}

func (s *onAirService) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		var req model.PlaybackRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.logger.Error("OnAir", "Malformed playback request", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}

		s.playClip(ctx, req)
		s.pending.Add(-1)
		msg.Ack()
	}
}

// playClip runs one full swap cycle. Any failure drops the request and
// leaves the program on the idle base loop; the clip stays on disk and is
// still retrievable over the HTTP surface.
func (s *onAirService) playClip(ctx context.Context, req model.PlaybackRequest) {
	if !s.surface.Connected() {
		s.logger.Warn("OnAir", "Broadcast control unavailable, dropping playback", map[string]interface{}{
			"item_id": req.ItemId,
		})
		return
	}

	clipName := fmt.Sprintf("%s%s", s.cfg.ClipPrefix, req.ItemId)
	clipPath := filepath.Join(s.mediaDir, req.VideoRef)

	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	// Stale ephemeral inputs (crashed run, interrupted swap) must be gone
	// before a new clip enters the scene.
	if err := s.surface.RemoveStaleClipInputs(ctx, s.cfg.ClipPrefix); err != nil {
		s.logger.Warn("OnAir", "Stale clip cleanup failed", map[string]interface{}{"error": err.Error()})
	}

	s.beginSwap(clipName)
	defer s.endSwap()

	// Armed before the input exists so a short clip cannot finish before
	// the listener is in place.
	wait := s.surface.ExpectPlaybackEnded(clipName)

	if err := s.surface.CreateClipInput(ctx, clipName, clipPath); err != nil {
		wait.Cancel()
		s.logger.Error("OnAir", "Clip input creation failed", map[string]interface{}{
			"item_id": req.ItemId, "error": err.Error(),
		})
		return
	}

	if err := s.surface.CopyBaseTransform(ctx, clipName); err != nil {
		s.logger.Warn("OnAir", "Transform copy failed, using canvas fit", map[string]interface{}{
			"item_id": req.ItemId, "error": err.Error(),
		})
		if err := s.surface.ApplyDefaultTransform(ctx, clipName); err != nil {
			s.logger.Warn("OnAir", "Canvas fit failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := s.surface.SetBaseVisible(ctx, false); err != nil {
		wait.Cancel()
		s.logger.Error("OnAir", "Could not hide base loop, dropping playback", map[string]interface{}{
			"item_id": req.ItemId, "error": err.Error(),
		})
		s.teardownClip(ctx, clipName)
		return
	}

	s.logger.Info("OnAir", "Clip on air", map[string]interface{}{
		"item_id": req.ItemId, "clip": clipName,
	})

	if err := wait.Wait(ctx); err != nil {
		// Disconnect or shutdown mid-swap. Restore whatever the control
		// connection still allows and drop the request.
		s.logger.Error("OnAir", "Playback interrupted", map[string]interface{}{
			"item_id": req.ItemId, "error": err.Error(),
		})
		s.restoreIdle(ctx, clipName)
		return
	}

	if s.cfg.ResumeDelay > 0 {
		select {
		case <-time.After(s.cfg.ResumeDelay):
		case <-ctx.Done():
		}
	}

	s.restoreIdle(ctx, clipName)
	s.logger.Info("OnAir", "Returned to idle loop", map[string]interface{}{"item_id": req.ItemId})
}

func (s *onAirService) beginSwap(clipName string) {
	s.mu.Lock()
	s.swapping = true
	s.activeClip = clipName
	s.mu.Unlock()
}

func (s *onAirService) endSwap() {
	s.mu.Lock()
	s.swapping = false
	s.activeClip = ""
	s.mu.Unlock()
}

func (s *onAirService) restoreIdle(ctx context.Context, clipName string) {
	if err := s.surface.SetBaseVisible(ctx, true); err != nil {
		s.logger.Error("OnAir", "Could not restore base loop", map[string]interface{}{
			"clip": clipName, "error": err.Error(),
		})
	}
	s.teardownClip(ctx, clipName)
}

// recoverIdle resets the broadcast to the idle base after a reconnect: the
// base source is re-shown and any clip input orphaned by the dropped link is
// removed. It waits for an in-flight swap to finish failing first.
func (s *onAirService) recoverIdle(ctx context.Context) {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.logger.Info("OnAir", "Control link restored, resetting to idle base", nil)
	if err := s.surface.SetBaseVisible(ctx, true); err != nil {
		s.logger.Error("OnAir", "Could not restore base loop after reconnect", map[string]interface{}{"error": err.Error()})
	}
	if err := s.surface.RemoveStaleClipInputs(ctx, s.cfg.ClipPrefix); err != nil {
		s.logger.Warn("OnAir", "Stale clip cleanup failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *onAirService) teardownClip(ctx context.Context, clipName string) {
	if err := s.surface.RemoveClipInput(ctx, clipName); err != nil {
		s.logger.Warn("OnAir", "Clip input removal failed", map[string]interface{}{
			"clip": clipName, "error": err.Error(),
		})
	}
}
