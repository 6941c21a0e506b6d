package service

import (
	"ai-livehost-be/internal/dto"
	"ai-livehost-be/internal/repository/memory"
)

type IStatusService interface {
	Snapshot() dto.StatusResponse
	Health() dto.HealthResponse
	OnAirState() dto.OnAirStateResponse
}

type statusService struct {
	repo     *memory.ItemRepository
	pipeline IPipelineService
	onAir    IOnAirService
}

func NewStatusService(repo *memory.ItemRepository, pipeline IPipelineService, onAir IOnAirService) IStatusService {
	return &statusService{
		repo:     repo,
		pipeline: pipeline,
		onAir:    onAir,
	}
}

func (s *statusService) Snapshot() dto.StatusResponse {
	counts := s.repo.CountByState()
	byState := make(map[string]int, len(counts))
	for state, n := range counts {
		byState[string(state)] = n
	}

	transitions := s.repo.RecentTransitions(50)
	recent := make([]dto.TransitionEntry, 0, len(transitions))
	for _, t := range transitions {
		recent = append(recent, dto.TransitionEntry{
			ItemId:   t.ItemId,
			SenderId: t.SenderId,
			State:    string(t.State),
			At:       t.At,
		})
	}

	return dto.StatusResponse{
		Active:            s.pipeline.ActiveCount(),
		MaxConcurrent:     s.pipeline.MaxConcurrent(),
		TotalTracked:      s.repo.Total(),
		CountsByState:     byState,
		RecentTransitions: recent,
	}
}

func (s *statusService) Health() dto.HealthResponse {
	return dto.HealthResponse{
		Status:          "ok",
		ObsConnected:    s.onAir.Connected(),
		ReceivedBacklog: s.repo.ReceivedCount(),
		Active:          s.pipeline.ActiveCount(),
		PendingPlayback: s.onAir.PendingDepth(),
	}
}

func (s *statusService) OnAirState() dto.OnAirStateResponse {
	return s.onAir.State()
}
