package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ai-livehost-be/internal/config"
	"ai-livehost-be/internal/model"
	"ai-livehost-be/internal/pkg/logger"
	"ai-livehost-be/pkg/llm"
	"ai-livehost-be/pkg/vision"

	"github.com/google/uuid"
)

// FrameCapturer grabs a still of a broadcast source to a file on disk.
type FrameCapturer interface {
	Connected() bool
	CaptureFrame(ctx context.Context, sourceName, destPath string) error
}

type ICaptureService interface {
	// Start runs the periodic capture loop until ctx is cancelled.
	Start(ctx context.Context)
	Recent() []model.ScreenshotRecord
}

// captureService periodically snapshots the program output, asks the vision
// adapter what it sees, and turns material changes into synthetic items so
// the host reacts to its own stream. Any error skips the tick; the next one
// starts clean.
type captureService struct {
	capturer  FrameCapturer
	describer vision.Describer
	responder llm.LLMProvider
	admission IAdmissionService
	logger    logger.ILogger
	cfg       config.CaptureConfig

	ring   *screenshotRing
	mu     sync.Mutex
	window []string
}

func NewCaptureService(
	capturer FrameCapturer,
	describer vision.Describer,
	responder llm.LLMProvider,
	admission IAdmissionService,
	log logger.ILogger,
	cfg config.CaptureConfig,
) *captureService {
	return &captureService{
		capturer:  capturer,
		describer: describer,
		responder: responder,
		admission: admission,
		logger:    log,
		cfg:       cfg,
		ring:      newScreenshotRing(cfg.RingSize),
	}
}

func (s *captureService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("Capture", "Self-observation disabled", nil)
		return
	}
	if err := os.MkdirAll(s.cfg.CaptureDir, 0o755); err != nil {
		s.logger.Error("Capture", "Cannot create capture directory", map[string]interface{}{"error": err.Error()})
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *captureService) Recent() []model.ScreenshotRecord {
	return s.ring.Snapshot()
}

func (s *captureService) tick(ctx context.Context) {
	if !s.capturer.Connected() {
		return
	}

	framePath := filepath.Join(s.cfg.CaptureDir, fmt.Sprintf("frame_%s.png", uuid.New()))
	if err := s.capturer.CaptureFrame(ctx, s.cfg.SourceName, framePath); err != nil {
		s.logger.Warn("Capture", "Frame capture failed", map[string]interface{}{"error": err.Error()})
		return
	}

	desc, err := s.describer.Describe(ctx, framePath, s.priorWindow())
	if err != nil {
		// A frame that never made it into the ring is not kept around.
		if rmErr := os.Remove(framePath); rmErr != nil {
			s.logger.Warn("Capture", "Frame cleanup failed", map[string]interface{}{"error": rmErr.Error()})
		}
		s.logger.Warn("Capture", "Frame description failed", map[string]interface{}{"error": err.Error()})
		return
	}

	// The ring owns the frame file from here; eviction removes both the
	// record and its backing file.
	if evicted, ok := s.ring.Add(model.ScreenshotRecord{
		CapturedAt:  time.Now(),
		FileRef:     filepath.Base(framePath),
		Description: desc.Text,
	}); ok {
		old := filepath.Join(s.cfg.CaptureDir, evicted.FileRef)
		if rmErr := os.Remove(old); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("Capture", "Evicted frame cleanup failed", map[string]interface{}{"error": rmErr.Error()})
		}
	}
	s.pushWindow(desc.Text)

	if !desc.Changed {
		return
	}

	reaction, err := s.responder.Generate(ctx, s.cfg.ReactionPrompt+"\n\n"+desc.Text)
	if err != nil {
		s.logger.Warn("Capture", "Reaction generation failed", map[string]interface{}{"error": err.Error()})
		return
	}

	itemId, err := s.admission.SubmitSynthetic(ctx, reaction)
	if err != nil {
		s.logger.Warn("Capture", "Synthetic admission failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Info("Capture", "Scene change queued as reaction", map[string]interface{}{
		"item_id": itemId, "description": desc.Text,
	})
}

func (s *captureService) priorWindow() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.window))
	copy(out, s.window)
	return out
}

func (s *captureService) pushWindow(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = append(s.window, description)
	if len(s.window) > s.cfg.WindowSize {
		s.window = s.window[len(s.window)-s.cfg.WindowSize:]
	}
}

// screenshotRing keeps the most recent capture records, oldest out first.
type screenshotRing struct {
	mu      sync.Mutex
	cap     int
	records []model.ScreenshotRecord
}

func newScreenshotRing(capacity int) *screenshotRing {
	if capacity < 1 {
		capacity = 1
	}
	return &screenshotRing{cap: capacity}
}

// Add appends a record and reports the one it displaced, if any.
func (r *screenshotRing) Add(rec model.ScreenshotRecord) (model.ScreenshotRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if len(r.records) > r.cap {
		evicted := r.records[0]
		r.records = r.records[1:]
		return evicted, true
	}
	return model.ScreenshotRecord{}, false
}

func (r *screenshotRing) Snapshot() []model.ScreenshotRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ScreenshotRecord, len(r.records))
	copy(out, r.records)
	return out
}
