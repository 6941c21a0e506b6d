package service

import (
	"context"
	"sync/atomic"

	"ai-livehost-be/internal/config"
	"ai-livehost-be/internal/pkg/logger"
	"ai-livehost-be/internal/repository/memory"
	"ai-livehost-be/pkg/evaluator"

	"github.com/google/uuid"
)

type IAdmissionService interface {
	// Submit registers a message and returns immediately; it never blocks on
	// the evaluator.
	Submit(ctx context.Context, senderId, text string) (uuid.UUID, error)
	// SubmitSynthetic admits a capture-loop reaction under the synthetic
	// sender id with a pre-assigned priority, bypassing the viewer cutoff.
	SubmitSynthetic(ctx context.Context, text string) (uuid.UUID, error)
	// RunEvaluationPass scores every unevaluated RECEIVED item in one batch.
	// Concurrent calls collapse into a single running pass.
	RunEvaluationPass(ctx context.Context)
}

type admissionService struct {
	repo      *memory.ItemRepository
	evaluator evaluator.Evaluator // nil disables scoring, everything gets the default
	logger    logger.ILogger
	cfg       config.PipelineConfig

	notify      func() // wakes the pipeline dispatcher
	evalRunning atomic.Bool
}

func NewAdmissionService(
	repo *memory.ItemRepository,
	eval evaluator.Evaluator,
	log logger.ILogger,
	cfg config.PipelineConfig,
) *admissionService {
	return &admissionService{
		repo:      repo,
		evaluator: eval,
		logger:    log,
		cfg:       cfg,
		notify:    func() {},
	}
}

// SetNotify wires the dispatcher wakeup after construction; the pipeline
// service and admission reference each other.
func (s *admissionService) SetNotify(fn func()) {
	s.notify = fn
}

func (s *admissionService) Submit(ctx context.Context, senderId, text string) (uuid.UUID, error) {
	item := s.repo.Create(senderId, text)
	s.logger.Info("Admission", "Message admitted", map[string]interface{}{
		"item_id": item.Id, "sender_id": senderId,
	})

	// Small backlog: score right away in the background. Larger backlog:
	// leave it to the dispatcher's next wakeup, which always runs a pass.
	if s.repo.ReceivedCount() < s.cfg.BacklogCeiling {
		go s.RunEvaluationPass(context.WithoutCancel(ctx))
	}
	s.notify()
	return item.Id, nil
}

func (s *admissionService) SubmitSynthetic(ctx context.Context, text string) (uuid.UUID, error) {
	item := s.repo.Create(s.cfg.SyntheticSenderId, text)
	s.repo.SetPriority(item.Id, s.cfg.SyntheticPriority)
	s.logger.Info("Admission", "Synthetic item admitted", map[string]interface{}{
		"item_id": item.Id, "sender_id": s.cfg.SyntheticSenderId,
	})
	s.notify()
	return item.Id, nil
}

func (s *admissionService) RunEvaluationPass(ctx context.Context) {
	if !s.evalRunning.CompareAndSwap(false, true) {
		return
	}
	defer s.evalRunning.Store(false)

	batch := s.repo.ReceivedWithoutPriority()
	if len(batch) == 0 {
		return
	}

	inputs := make([]evaluator.Input, len(batch))
	for i, item := range batch {
		inputs[i] = evaluator.Input{
			SenderId:  item.SenderId,
			Text:      item.Text,
			Timestamp: item.CreatedAt,
		}
	}

	var results []evaluator.Result
	if s.evaluator != nil {
		var err error
		results, err = s.evaluator.Evaluate(ctx, inputs)
		if err != nil || len(results) != len(batch) {
			// Evaluator trouble never blocks admission: fall back to the
			// default priority for the whole batch.
			detail := map[string]interface{}{"batch_size": len(batch)}
			if err != nil {
				detail["error"] = err.Error()
			}
			s.logger.Warn("Admission", "Evaluation failed, using default priority", detail)
			results = nil
		}
	}

	for i, item := range batch {
		priority := s.cfg.DefaultPriority
		reason := "default (evaluator unavailable)"
		if results != nil {
			priority = results[i].Priority
			reason = results[i].Reason
		}

		if priority < s.cfg.MinPriority {
			if err := s.repo.Reject(item.Id, priority); err != nil {
				s.logger.Warn("Admission", "Reject skipped", map[string]interface{}{
					"item_id": item.Id, "error": err.Error(),
				})
				continue
			}
			s.logger.Info("Admission", "Message rejected below cutoff", map[string]interface{}{
				"item_id": item.Id, "priority": priority, "reason": reason,
			})
			continue
		}
		s.repo.SetPriority(item.Id, priority)
	}
	s.notify()
}
