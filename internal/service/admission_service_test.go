package service

import (
	"context"
	"errors"
	"testing"

	"ai-livehost-be/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionDefaultsWholeBatchWhenEvaluatorFails(t *testing.T) {
	repo := newTestRepo()
	cfg := testPipelineConfig()
	eval := &fakeEvaluator{err: errors.New("scoring backend down")}
	admission := NewAdmissionService(repo, eval, nopLogger{}, cfg)

	for i := 0; i < 3; i++ {
		_, err := admission.Submit(context.Background(), "viewer", "message")
		require.NoError(t, err)
	}
	admission.RunEvaluationPass(context.Background())

	// Evaluator trouble is non-fatal: nothing is rejected, everything gets
	// the default priority and remains eligible for dispatch.
	for _, item := range repo.Items() {
		assert.Equal(t, model.StateReceived, item.State)
		require.NotNil(t, item.Priority)
		assert.Equal(t, cfg.DefaultPriority, *item.Priority)
	}
}

func TestAdmissionDefaultsBatchOnScoreCountMismatch(t *testing.T) {
	repo := newTestRepo()
	cfg := testPipelineConfig()
	eval := &fakeEvaluator{scores: []int{9}} // one score for two messages
	admission := NewAdmissionService(repo, eval, nopLogger{}, cfg)

	_, err := admission.Submit(context.Background(), "viewer", "first")
	require.NoError(t, err)
	_, err = admission.Submit(context.Background(), "viewer", "second")
	require.NoError(t, err)

	// Three scores for two messages: the pass must not trust any of the
	// indices and falls back to defaults instead.
	eval.scores = []int{9, 4, 2}
	admission.RunEvaluationPass(context.Background())

	for _, item := range repo.Items() {
		require.NotNil(t, item.Priority)
		assert.Equal(t, cfg.DefaultPriority, *item.Priority)
	}
}

func TestAdmissionEvaluationPassIsIdempotent(t *testing.T) {
	repo := newTestRepo()
	cfg := testPipelineConfig()
	eval := &fakeEvaluator{scores: []int{7}}
	admission := NewAdmissionService(repo, eval, nopLogger{}, cfg)

	id, err := admission.Submit(context.Background(), "viewer", "message")
	require.NoError(t, err)

	admission.RunEvaluationPass(context.Background())
	// A second pass has no unevaluated items left and must not call the
	// evaluator with an empty batch.
	eval.err = errors.New("must not be called again")
	admission.RunEvaluationPass(context.Background())

	item, ok := repo.Get(id)
	require.True(t, ok)
	require.NotNil(t, item.Priority)
	assert.Equal(t, 7, *item.Priority)
}

func TestAdmissionNotifiesDispatcher(t *testing.T) {
	repo := newTestRepo()
	admission := NewAdmissionService(repo, nil, nopLogger{}, testPipelineConfig())

	wakes := 0
	admission.SetNotify(func() { wakes++ })

	_, err := admission.Submit(context.Background(), "viewer", "message")
	require.NoError(t, err)
	assert.Equal(t, 1, wakes)

	_, err = admission.SubmitSynthetic(context.Background(), "self reaction")
	require.NoError(t, err)
	assert.Equal(t, 2, wakes)

	admission.RunEvaluationPass(context.Background())
	assert.Equal(t, 3, wakes)
}
