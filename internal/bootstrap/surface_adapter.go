package bootstrap

import (
	"context"

	"ai-livehost-be/internal/service"
	"ai-livehost-be/pkg/obs"
)

// broadcastSurface narrows *obs.Surface to the interfaces the services
// consume, so they stay testable without a live obs-websocket.
type broadcastSurface struct {
	surface *obs.Surface
}

var _ service.ControlSurface = &broadcastSurface{}
var _ service.FrameCapturer = &broadcastSurface{}

func (b *broadcastSurface) Connected() bool {
	return b.surface.Connected()
}

func (b *broadcastSurface) OnReconnect(fn func()) {
	b.surface.OnReconnect(fn)
}

func (b *broadcastSurface) RemoveStaleClipInputs(ctx context.Context, prefix string) error {
	return b.surface.RemoveStaleClipInputs(ctx, prefix)
}

func (b *broadcastSurface) CreateClipInput(ctx context.Context, name, filePath string) error {
	return b.surface.CreateClipInput(ctx, name, filePath)
}

func (b *broadcastSurface) RemoveClipInput(ctx context.Context, name string) error {
	return b.surface.RemoveClipInput(ctx, name)
}

func (b *broadcastSurface) CopyBaseTransform(ctx context.Context, clipName string) error {
	return b.surface.CopyBaseTransform(ctx, clipName)
}

func (b *broadcastSurface) ApplyDefaultTransform(ctx context.Context, clipName string) error {
	return b.surface.ApplyDefaultTransform(ctx, clipName)
}

func (b *broadcastSurface) SetBaseVisible(ctx context.Context, visible bool) error {
	return b.surface.SetBaseVisible(ctx, visible)
}

func (b *broadcastSurface) ExpectPlaybackEnded(inputName string) service.PlaybackWait {
	return b.surface.ExpectPlaybackEnded(inputName)
}

func (b *broadcastSurface) CaptureFrame(ctx context.Context, sourceName, destPath string) error {
	return b.surface.CaptureFrame(ctx, sourceName, destPath)
}
