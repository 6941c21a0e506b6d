package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"ai-livehost-be/internal/config"
	"ai-livehost-be/internal/dto"
	"ai-livehost-be/internal/model"
	"ai-livehost-be/internal/repository/memory"
	"ai-livehost-be/pkg/evaluator"
	"ai-livehost-be/pkg/llm"
	"ai-livehost-be/pkg/vision"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxConcurrent:     2,
		MinPriority:       5,
		DefaultPriority:   6,
		SyntheticPriority: 8,
		SyntheticSenderId: "self-observer",
		BacklogCeiling:    0, // keep evaluation passes explicit in tests
		TerminalItemTTL:   time.Hour,
	}
}

func newTestRepo() *memory.ItemRepository {
	return memory.NewItemRepository(time.Hour, time.Hour)
}

// fakeResponder is an llm.LLMProvider whose Chat calls can be held at a gate
// so tests control when each item's first stage finishes.
type fakeResponder struct {
	mu       sync.Mutex
	started  chan string
	gate     chan struct{}
	reply    string
	chatErr  error
	genReply string
	genErr   error
	prompts  []string
}

func newFakeResponder(reply string) *fakeResponder {
	return &fakeResponder{
		started: make(chan string, 16),
		reply:   reply,
	}
}

func (f *fakeResponder) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	var text string
	if len(history) > 0 {
		text = history[len(history)-1].Content
	}
	f.started <- text
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.reply, nil
}

func (f *fakeResponder) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.genReply, nil
}

type fakeSynthesizer struct {
	err error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "speech.wav", nil
}

type fakeCompositor struct {
	err error
}

func (f *fakeCompositor) Compose(ctx context.Context, audioRef string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "clip.mp4", nil
}

// fakeOnAir records enqueued playback requests.
type fakeOnAir struct {
	mu       sync.Mutex
	enqueued []model.PlaybackRequest
	notify   chan struct{}
}

func newFakeOnAir() *fakeOnAir {
	return &fakeOnAir{notify: make(chan struct{}, 16)}
}

func (f *fakeOnAir) Start(ctx context.Context) error { return nil }

func (f *fakeOnAir) Enqueue(ctx context.Context, req model.PlaybackRequest) error {
	f.mu.Lock()
	f.enqueued = append(f.enqueued, req)
	f.mu.Unlock()
	f.notify <- struct{}{}
	return nil
}

func (f *fakeOnAir) State() dto.OnAirStateResponse { return dto.OnAirStateResponse{} }
func (f *fakeOnAir) PendingDepth() int             { return 0 }
func (f *fakeOnAir) Connected() bool               { return true }

func (f *fakeOnAir) requests() []model.PlaybackRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.PlaybackRequest, len(f.enqueued))
	copy(out, f.enqueued)
	return out
}

// fakeEvaluator returns a fixed score per input, in order.
type fakeEvaluator struct {
	scores []int
	err    error
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, inputs []evaluator.Input) ([]evaluator.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	results := make([]evaluator.Result, len(inputs))
	for i, in := range inputs {
		results[i] = evaluator.Result{
			SenderId: in.SenderId,
			Text:     in.Text,
			Priority: f.scores[i],
			Reason:   "scripted",
		}
	}
	return results, nil
}

// fakeCapturer pretends to screenshot by writing a small file at destPath.
type fakeCapturer struct {
	connected bool
	err       error
}

func (f *fakeCapturer) Connected() bool { return f.connected }

func (f *fakeCapturer) CaptureFrame(ctx context.Context, sourceName, destPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(destPath, []byte("png"), 0o644)
}

type fakeDescriber struct {
	mu      sync.Mutex
	calls   int
	windows [][]string
	desc    vision.Description
	err     error
}

func (f *fakeDescriber) Describe(ctx context.Context, imagePath string, prior []string) (*vision.Description, error) {
	f.mu.Lock()
	f.calls++
	w := make([]string, len(prior))
	copy(w, prior)
	f.windows = append(f.windows, w)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d := f.desc
	if d.Text == "" {
		d.Text = fmt.Sprintf("frame %d", f.calls)
	}
	return &d, nil
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitText(t *testing.T, ch <-chan string, what string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return ""
	}
}

func waitUntil(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", what)
}
