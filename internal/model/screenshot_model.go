package model

import "time"

// ScreenshotRecord is one captured broadcast frame and the description the
// vision adapter produced for it. Records live in a bounded ring buffer;
// eviction deletes the backing file.
type ScreenshotRecord struct {
	CapturedAt  time.Time `json:"captured_at"`
	FileRef     string    `json:"file_ref"`
	Description string    `json:"description"`
}
