package compositor

import "context"

// Compositor lip-syncs the host's face video to a generated audio track and
// returns the resulting clip's ref (a filename inside the media directory).
type Compositor interface {
	Compose(ctx context.Context, audioRef string) (string, error)
}
