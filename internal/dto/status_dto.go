package dto

import (
	"time"

	"github.com/google/uuid"
)

type TransitionEntry struct {
	ItemId   uuid.UUID `json:"itemId"`
	SenderId string    `json:"senderId"`
	State    string    `json:"state"`
	At       time.Time `json:"at"`
}

type StatusResponse struct {
	Active            int               `json:"active"`
	MaxConcurrent     int               `json:"maxConcurrent"`
	TotalTracked      int               `json:"totalTracked"`
	CountsByState     map[string]int    `json:"countsByState"`
	RecentTransitions []TransitionEntry `json:"recentTransitions"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	ObsConnected    bool   `json:"obsConnected"`
	ReceivedBacklog int    `json:"receivedBacklog"`
	Active          int    `json:"active"`
	PendingPlayback int    `json:"pendingPlayback"`
}

type OnAirStateResponse struct {
	SwapInProgress bool   `json:"swapInProgress"`
	ActiveClip     string `json:"activeClip,omitempty"`
	PendingDepth   int    `json:"pendingDepth"`
}
