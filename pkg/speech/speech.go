package speech

import "context"

// Synthesizer turns a line of text into an audio file and returns its ref
// (a filename inside the media directory).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}
