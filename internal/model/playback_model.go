package model

import (
	"time"

	"github.com/google/uuid"
)

// PlaybackRequest instructs the on-air scheduler to play one completed clip.
// Requests are consumed strictly in submission order; priority no longer
// applies once generation has finished.
type PlaybackRequest struct {
	ItemId     uuid.UUID `json:"item_id"`
	VideoRef   string    `json:"video_ref"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
