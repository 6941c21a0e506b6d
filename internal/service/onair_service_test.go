package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-livehost-be/internal/config"
	"ai-livehost-be/internal/model"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWait struct {
	ch chan error
}

func (w *fakeWait) Wait(ctx context.Context) error {
	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *fakeWait) Cancel() {}

// fakeSurface is a scripted ControlSurface that records successful calls in
// order and exposes the playback-ended release channel per clip. While
// disconnected every call fails, as the real surface's would.
type fakeSurface struct {
	mu          sync.Mutex
	connected   bool
	onReconnect func()
	ops         chan string
	waits       map[string]*fakeWait
	createErr   error
	hideErr     error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		connected: true,
		ops:       make(chan string, 64),
		waits:     make(map[string]*fakeWait),
	}
}

func (s *fakeSurface) record(format string, args ...interface{}) error {
	if !s.Connected() {
		return errors.New("not connected")
	}
	s.ops <- fmt.Sprintf(format, args...)
	return nil
}

func (s *fakeSurface) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSurface) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *fakeSurface) OnReconnect(fn func()) {
	s.mu.Lock()
	s.onReconnect = fn
	s.mu.Unlock()
}

func (s *fakeSurface) reconnect() {
	s.setConnected(true)
	s.mu.Lock()
	fn := s.onReconnect
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *fakeSurface) RemoveStaleClipInputs(ctx context.Context, prefix string) error {
	return s.record("cleanup %s", prefix)
}

func (s *fakeSurface) CreateClipInput(ctx context.Context, name, filePath string) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.record("create %s", name)
}

func (s *fakeSurface) RemoveClipInput(ctx context.Context, name string) error {
	return s.record("remove %s", name)
}

func (s *fakeSurface) CopyBaseTransform(ctx context.Context, clipName string) error {
	return s.record("transform %s", clipName)
}

func (s *fakeSurface) ApplyDefaultTransform(ctx context.Context, clipName string) error {
	return s.record("fit %s", clipName)
}

func (s *fakeSurface) SetBaseVisible(ctx context.Context, visible bool) error {
	if !visible && s.hideErr != nil {
		return s.hideErr
	}
	return s.record("base %t", visible)
}

func (s *fakeSurface) ExpectPlaybackEnded(inputName string) PlaybackWait {
	w := &fakeWait{ch: make(chan error, 1)}
	s.mu.Lock()
	s.waits[inputName] = w
	s.mu.Unlock()
	return w
}

func (s *fakeSurface) release(clipName string, err error) {
	s.mu.Lock()
	w := s.waits[clipName]
	s.mu.Unlock()
	w.ch <- err
}

func (s *fakeSurface) nextOp(t *testing.T) string {
	t.Helper()
	select {
	case op := <-s.ops:
		return op
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for surface operation")
		return ""
	}
}

func (s *fakeSurface) noOp(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case op := <-s.ops:
		t.Fatalf("unexpected surface operation %q", op)
	case <-time.After(wait):
	}
}

func testObsConfig() config.ObsConfig {
	return config.ObsConfig{
		Scene:       "Program",
		BaseSource:  "base_loop",
		ClipPrefix:  "generated_clip_",
		ResumeDelay: 0,
	}
}

func newTestOnAir(t *testing.T, surface *fakeSurface) (*onAirService, context.CancelFunc) {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	publisher := NewPublisherService("playback.test", pubSub)
	s := NewOnAirService(surface, publisher, pubSub, "playback.test", nopLogger{}, testObsConfig(), t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	return s, cancel
}

func playback(id uuid.UUID) model.PlaybackRequest {
	return model.PlaybackRequest{ItemId: id, VideoRef: "clip.mp4", EnqueuedAt: time.Now()}
}

func TestOnAirServesRequestsInOrder(t *testing.T) {
	surface := newFakeSurface()
	s, cancel := newTestOnAir(t, surface)
	defer cancel()
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, s.Enqueue(context.Background(), playback(first)))
	require.NoError(t, s.Enqueue(context.Background(), playback(second)))

	clipA := "generated_clip_" + first.String()
	clipB := "generated_clip_" + second.String()

	// Every swap starts with its own stale-input sweep.
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))
	assert.Equal(t, "create "+clipA, surface.nextOp(t))
	assert.Equal(t, "transform "+clipA, surface.nextOp(t))
	assert.Equal(t, "base false", surface.nextOp(t))

	// One swap at a time: the second clip must not appear while the first
	// is still playing.
	surface.noOp(t, 100*time.Millisecond)
	assert.True(t, s.State().SwapInProgress)
	assert.Equal(t, clipA, s.State().ActiveClip)

	surface.release(clipA, nil)
	assert.Equal(t, "base true", surface.nextOp(t))
	assert.Equal(t, "remove "+clipA, surface.nextOp(t))

	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))
	assert.Equal(t, "create "+clipB, surface.nextOp(t))
	assert.Equal(t, "transform "+clipB, surface.nextOp(t))
	assert.Equal(t, "base false", surface.nextOp(t))
	surface.release(clipB, nil)
	assert.Equal(t, "base true", surface.nextOp(t))
	assert.Equal(t, "remove "+clipB, surface.nextOp(t))

	waitUntil(t, func() bool { return s.PendingDepth() == 0 }, "queue drained")
	assert.False(t, s.State().SwapInProgress)
}

func TestOnAirDropsClipWhenSwapInFails(t *testing.T) {
	surface := newFakeSurface()
	surface.createErr = errors.New("input kind unavailable")
	s, cancel := newTestOnAir(t, surface)
	defer cancel()
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))

	failing := uuid.New()
	require.NoError(t, s.Enqueue(context.Background(), playback(failing)))
	waitUntil(t, func() bool { return s.PendingDepth() == 0 }, "failed swap dropped")
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))

	// The next request still goes on air.
	surface.createErr = nil
	next := uuid.New()
	require.NoError(t, s.Enqueue(context.Background(), playback(next)))
	clip := "generated_clip_" + next.String()
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))
	assert.Equal(t, "create "+clip, surface.nextOp(t))
}

func TestOnAirRestoresBaseWhenHideFails(t *testing.T) {
	surface := newFakeSurface()
	surface.hideErr = errors.New("scene item gone")
	s, cancel := newTestOnAir(t, surface)
	defer cancel()
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))

	id := uuid.New()
	require.NoError(t, s.Enqueue(context.Background(), playback(id)))
	clip := "generated_clip_" + id.String()

	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))
	assert.Equal(t, "create "+clip, surface.nextOp(t))
	assert.Equal(t, "transform "+clip, surface.nextOp(t))
	// Hide failed: the orphaned input is torn down and the queue moves on.
	assert.Equal(t, "remove "+clip, surface.nextOp(t))
	waitUntil(t, func() bool { return s.PendingDepth() == 0 }, "dropped request drained")
	assert.False(t, s.State().SwapInProgress)
}

func TestOnAirDisconnectMidSwapFallsBackToIdle(t *testing.T) {
	surface := newFakeSurface()
	s, cancel := newTestOnAir(t, surface)
	defer cancel()
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))

	id := uuid.New()
	require.NoError(t, s.Enqueue(context.Background(), playback(id)))
	clip := "generated_clip_" + id.String()

	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))
	assert.Equal(t, "create "+clip, surface.nextOp(t))
	assert.Equal(t, "transform "+clip, surface.nextOp(t))
	assert.Equal(t, "base false", surface.nextOp(t))

	// Playback is interrupted but the control link itself stays up: the
	// request is dropped and the base is restored inline.
	surface.release(clip, errors.New("playback wait interrupted"))
	assert.Equal(t, "base true", surface.nextOp(t))
	assert.Equal(t, "remove "+clip, surface.nextOp(t))
	waitUntil(t, func() bool { return s.PendingDepth() == 0 }, "interrupted request dropped")
	assert.False(t, s.State().SwapInProgress)
}

func TestOnAirReconnectRestoresIdleBase(t *testing.T) {
	surface := newFakeSurface()
	s, cancel := newTestOnAir(t, surface)
	defer cancel()
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))

	id := uuid.New()
	require.NoError(t, s.Enqueue(context.Background(), playback(id)))
	clip := "generated_clip_" + id.String()

	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))
	assert.Equal(t, "create "+clip, surface.nextOp(t))
	assert.Equal(t, "transform "+clip, surface.nextOp(t))
	assert.Equal(t, "base false", surface.nextOp(t))

	// Link drops mid-playback: the in-flight restore fails against the dead
	// surface, so the base stays hidden and the clip input is orphaned.
	surface.setConnected(false)
	surface.release(clip, errors.New("obs connection lost"))
	waitUntil(t, func() bool { return s.PendingDepth() == 0 }, "interrupted request dropped")
	assert.False(t, s.State().SwapInProgress)
	surface.noOp(t, 100*time.Millisecond)

	// Reconnect must reset to the idle base: re-show the base source and
	// sweep the orphaned clip input.
	surface.reconnect()
	assert.Equal(t, "base true", surface.nextOp(t))
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))
}

func TestOnAirSkipsSwapWhileDisconnected(t *testing.T) {
	surface := newFakeSurface()
	s, cancel := newTestOnAir(t, surface)
	defer cancel()
	assert.Equal(t, "cleanup generated_clip_", surface.nextOp(t))

	surface.setConnected(false)
	require.NoError(t, s.Enqueue(context.Background(), playback(uuid.New())))
	waitUntil(t, func() bool { return s.PendingDepth() == 0 }, "offline request dropped")
	surface.noOp(t, 100*time.Millisecond)
}
