package vision

import "context"

// Description is what the vision adapter saw in a captured frame. Changed is
// the adapter's own judgment of whether something materially new happened
// relative to the supplied window of prior descriptions; it is an opaque
// capability, not a local heuristic.
type Description struct {
	Text    string `json:"description"`
	Changed bool   `json:"changed"`
}

// Describer narrates broadcast frames.
type Describer interface {
	Describe(ctx context.Context, imagePath string, priorDescriptions []string) (*Description, error)
}
