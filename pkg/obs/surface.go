package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-livehost-be/internal/pkg/logger"
)

// Surface exposes the handful of scene operations the on-air scheduler and
// the capture loop actually need, over a single identified connection. It is
// bound to one scene: the broadcast scene the system is permitted to modify.
type Surface struct {
	client     *Client
	scene      string
	baseSource string
	log        logger.ILogger
}

func NewSurface(client *Client, scene, baseSource string, log logger.ILogger) *Surface {
	return &Surface{
		client:     client,
		scene:      scene,
		baseSource: baseSource,
		log:        log,
	}
}

// Connected reports the control-surface link state.
func (s *Surface) Connected() bool {
	return s.client.Connected()
}

// OnReconnect registers a callback for every re-established control link.
func (s *Surface) OnReconnect(fn func()) {
	s.client.SetOnReconnect(fn)
}

type sceneItemIDResponse struct {
	SceneItemID int `json:"sceneItemId"`
}

func (s *Surface) sceneItemID(ctx context.Context, sourceName string) (int, error) {
	var resp sceneItemIDResponse
	err := s.client.Call(ctx, "GetSceneItemId", map[string]interface{}{
		"sceneName":  s.scene,
		"sourceName": sourceName,
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.SceneItemID, nil
}

type sceneItemListResponse struct {
	SceneItems []struct {
		SceneItemID int    `json:"sceneItemId"`
		SourceName  string `json:"sourceName"`
	} `json:"sceneItems"`
}

// RemoveStaleClipInputs deletes leftover ephemeral inputs. The surface state
// may not match in-process memory after a restart or a dropped link, so
// callers run this before every swap-in and after every reconnect.
func (s *Surface) RemoveStaleClipInputs(ctx context.Context, prefix string) error {
	var resp sceneItemListResponse
	if err := s.client.Call(ctx, "GetSceneItemList", map[string]interface{}{
		"sceneName": s.scene,
	}, &resp); err != nil {
		return fmt.Errorf("list scene items: %w", err)
	}

	for _, item := range resp.SceneItems {
		if !strings.HasPrefix(item.SourceName, prefix) {
			continue
		}
		s.log.Warn("Obs", "Removing stale clip input", map[string]interface{}{"input": item.SourceName})
		if err := s.client.Call(ctx, "RemoveInput", map[string]interface{}{
			"inputName": item.SourceName,
		}, nil); err != nil {
			return fmt.Errorf("remove stale input %s: %w", item.SourceName, err)
		}
	}
	return nil
}

// CreateClipInput adds a media source for one generated clip to the scene.
// Playback starts as soon as the input becomes active.
func (s *Surface) CreateClipInput(ctx context.Context, name, filePath string) error {
	return s.client.Call(ctx, "CreateInput", map[string]interface{}{
		"sceneName": s.scene,
		"inputName": name,
		"inputKind": "ffmpeg_source",
		"inputSettings": map[string]interface{}{
			"local_file":          filePath,
			"looping":             false,
			"restart_on_activate": true,
			"clear_on_media_end":  false,
		},
		"sceneItemEnabled": true,
	}, nil)
}

// RemoveClipInput deletes an ephemeral input and its scene item.
func (s *Surface) RemoveClipInput(ctx context.Context, name string) error {
	return s.client.Call(ctx, "RemoveInput", map[string]interface{}{
		"inputName": name,
	}, nil)
}

type sceneItemTransformResponse struct {
	SceneItemTransform map[string]interface{} `json:"sceneItemTransform"`
}

// transform fields obs accepts back on SetSceneItemTransform; the rest of
// the Get payload is read-only and would be rejected.
var writableTransformFields = map[string]bool{
	"positionX": true, "positionY": true,
	"rotation": true,
	"scaleX":   true, "scaleY": true,
	"alignment":  true,
	"boundsType": true, "boundsAlignment": true,
	"boundsWidth": true, "boundsHeight": true,
	"cropLeft": true, "cropRight": true,
	"cropTop": true, "cropBottom": true,
}

// CopyBaseTransform applies the base object's placement to a clip input so
// generated clips are indistinguishable in framing from the base loop.
func (s *Surface) CopyBaseTransform(ctx context.Context, clipName string) error {
	baseID, err := s.sceneItemID(ctx, s.baseSource)
	if err != nil {
		return fmt.Errorf("resolve base item: %w", err)
	}
	clipID, err := s.sceneItemID(ctx, clipName)
	if err != nil {
		return fmt.Errorf("resolve clip item: %w", err)
	}

	var resp sceneItemTransformResponse
	if err := s.client.Call(ctx, "GetSceneItemTransform", map[string]interface{}{
		"sceneName":   s.scene,
		"sceneItemId": baseID,
	}, &resp); err != nil {
		return fmt.Errorf("read base transform: %w", err)
	}

	transform := make(map[string]interface{})
	for k, v := range resp.SceneItemTransform {
		if writableTransformFields[k] {
			transform[k] = v
		}
	}
	// A NONE bounds type comes back with zero bounds, which OBS refuses to
	// accept on write. Drop the bounds size in that case.
	if bt, ok := transform["boundsType"].(string); ok && bt == "OBS_BOUNDS_NONE" {
		delete(transform, "boundsWidth")
		delete(transform, "boundsHeight")
	}

	if err := s.client.Call(ctx, "SetSceneItemTransform", map[string]interface{}{
		"sceneName":          s.scene,
		"sceneItemId":        clipID,
		"sceneItemTransform": transform,
	}, nil); err != nil {
		return fmt.Errorf("apply transform to clip: %w", err)
	}
	return nil
}

type videoSettingsResponse struct {
	BaseWidth  float64 `json:"baseWidth"`
	BaseHeight float64 `json:"baseHeight"`
}

// ApplyDefaultTransform centers a clip and fits it to the canvas. Fallback
// for when copying the base transform fails.
func (s *Surface) ApplyDefaultTransform(ctx context.Context, clipName string) error {
	var vs videoSettingsResponse
	if err := s.client.Call(ctx, "GetVideoSettings", nil, &vs); err != nil {
		return fmt.Errorf("read canvas size: %w", err)
	}
	clipID, err := s.sceneItemID(ctx, clipName)
	if err != nil {
		return fmt.Errorf("resolve clip item: %w", err)
	}

	return s.client.Call(ctx, "SetSceneItemTransform", map[string]interface{}{
		"sceneName":   s.scene,
		"sceneItemId": clipID,
		"sceneItemTransform": map[string]interface{}{
			"positionX":       0.0,
			"positionY":       0.0,
			"alignment":       5, // top-left, position at origin
			"boundsType":      "OBS_BOUNDS_SCALE_INNER",
			"boundsAlignment": 0,
			"boundsWidth":     vs.BaseWidth,
			"boundsHeight":    vs.BaseHeight,
		},
	}, nil)
}

// SetBaseVisible toggles the base object's visibility in the scene.
func (s *Surface) SetBaseVisible(ctx context.Context, visible bool) error {
	baseID, err := s.sceneItemID(ctx, s.baseSource)
	if err != nil {
		return fmt.Errorf("resolve base item: %w", err)
	}
	return s.client.Call(ctx, "SetSceneItemEnabled", map[string]interface{}{
		"sceneName":        s.scene,
		"sceneItemId":      baseID,
		"sceneItemEnabled": visible,
	}, nil)
}

type mediaEndedEvent struct {
	InputName string `json:"inputName"`
}

// ExpectPlaybackEnded registers a wait for a specific input's media ending.
// Register before creating the input so the event cannot be missed.
func (s *Surface) ExpectPlaybackEnded(inputName string) *EventWait {
	return s.client.ExpectEvent("MediaInputPlaybackEnded", func(data json.RawMessage) bool {
		var evt mediaEndedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return false
		}
		return evt.InputName == inputName
	})
}

// CaptureFrame saves a screenshot of the named source to destPath.
func (s *Surface) CaptureFrame(ctx context.Context, sourceName, destPath string) error {
	return s.client.Call(ctx, "SaveSourceScreenshot", map[string]interface{}{
		"sourceName":    sourceName,
		"imageFormat":   "png",
		"imageFilePath": destPath,
	}, nil)
}
