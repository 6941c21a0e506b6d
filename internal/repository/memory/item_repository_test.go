package memory

import (
	"testing"
	"time"

	"ai-livehost-be/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo() *ItemRepository {
	return NewItemRepository(time.Hour, time.Hour)
}

func TestCreateStartsInReceived(t *testing.T) {
	repo := newRepo()
	item := repo.Create("viewer", "hello")

	assert.Equal(t, model.StateReceived, item.State)
	assert.Nil(t, item.Priority)
	require.Len(t, item.Transitions, 1)
	assert.Equal(t, model.StateReceived, item.Transitions[0].State)

	got, ok := repo.Get(item.Id)
	require.True(t, ok)
	assert.Equal(t, item.Id, got.Id)
}

func TestClaimNextReceivedSkipsUnevaluated(t *testing.T) {
	repo := newRepo()
	first := repo.Create("viewer", "first")
	second := repo.Create("viewer", "second")

	_, ok := repo.ClaimNextReceived()
	assert.False(t, ok, "unscored items are not dispatchable")

	// Only the second item has been scored; FIFO applies among eligible
	// items, not the raw admission order.
	repo.SetPriority(second.Id, 6)
	claimed, ok := repo.ClaimNextReceived()
	require.True(t, ok)
	assert.Equal(t, second.Id, claimed.Id)
	assert.Equal(t, model.StateEvaluating, claimed.State)

	repo.SetPriority(first.Id, 7)
	claimed, ok = repo.ClaimNextReceived()
	require.True(t, ok)
	assert.Equal(t, first.Id, claimed.Id)

	_, ok = repo.ClaimNextReceived()
	assert.False(t, ok, "nothing left to claim")
}

func TestRejectIsAtomicAndNeverActive(t *testing.T) {
	repo := newRepo()
	item := repo.Create("viewer", "spam")

	require.NoError(t, repo.Reject(item.Id, 2))

	got, ok := repo.Get(item.Id)
	require.True(t, ok)
	assert.Equal(t, model.StateRejected, got.State)
	require.NotNil(t, got.Priority)
	assert.Equal(t, 2, *got.Priority)

	// The log still walks the legal path through EVALUATING even though
	// that state was never observable.
	states := []model.ItemState{}
	for _, tr := range got.Transitions {
		states = append(states, tr.State)
	}
	assert.Equal(t, []model.ItemState{model.StateReceived, model.StateEvaluating, model.StateRejected}, states)
	assert.Equal(t, 0, repo.ActiveCount())

	assert.Error(t, repo.Reject(item.Id, 2), "terminal items cannot be rejected again")
}

func TestAdvanceRefusesIllegalTransitions(t *testing.T) {
	repo := newRepo()
	item := repo.Create("viewer", "hello")

	// RECEIVED cannot jump straight to a generation stage.
	assert.Error(t, repo.Advance(item.Id, model.StateGeneratingSpeech, nil))
	assert.Error(t, repo.Advance(item.Id, model.StateCompleted, nil))
	assert.Error(t, repo.Advance(item.Id, model.StateFailed, nil))

	repo.SetPriority(item.Id, 6)
	_, ok := repo.ClaimNextReceived()
	require.True(t, ok)

	require.NoError(t, repo.Advance(item.Id, model.StateGeneratingResponse, nil))
	require.NoError(t, repo.Advance(item.Id, model.StateFailed, func(it *model.Item) {
		it.FailureDetail = "llm timeout"
	}))

	got, _ := repo.Get(item.Id)
	assert.Equal(t, "llm timeout", got.FailureDetail)
	assert.Error(t, repo.Advance(item.Id, model.StateGeneratingSpeech, nil), "terminal items stay terminal")
}

func TestAdvanceMutatesInSameStep(t *testing.T) {
	repo := newRepo()
	item := repo.Create("viewer", "hello")
	repo.SetPriority(item.Id, 6)
	repo.ClaimNextReceived()

	require.NoError(t, repo.Advance(item.Id, model.StateGeneratingResponse, nil))
	require.NoError(t, repo.Advance(item.Id, model.StateGeneratingSpeech, func(it *model.Item) {
		it.ResponseText = "sure thing"
	}))

	got, _ := repo.Get(item.Id)
	assert.Equal(t, "sure thing", got.ResponseText)
	assert.Equal(t, model.StateGeneratingSpeech, got.State)
}

func TestTerminalItemsExpire(t *testing.T) {
	repo := NewItemRepository(20*time.Millisecond, 10*time.Millisecond)
	item := repo.Create("viewer", "spam")
	keeper := repo.Create("viewer", "still waiting")

	require.NoError(t, repo.Reject(item.Id, 1))

	assert.Eventually(t, func() bool {
		_, ok := repo.Get(item.Id)
		return !ok
	}, time.Second, 10*time.Millisecond, "terminal item should be evicted")

	// Eviction also prunes the admission order.
	items := repo.Items()
	require.Len(t, items, 1)
	assert.Equal(t, keeper.Id, items[0].Id)

	_, ok := repo.Get(keeper.Id)
	assert.True(t, ok, "non-terminal items never expire")
}

func TestEarliestCompletedUndelivered(t *testing.T) {
	repo := newRepo()

	complete := func(text string) model.Item {
		item := repo.Create("viewer", text)
		repo.SetPriority(item.Id, 6)
		repo.ClaimNextReceived()
		require.NoError(t, repo.Advance(item.Id, model.StateGeneratingResponse, nil))
		require.NoError(t, repo.Advance(item.Id, model.StateGeneratingSpeech, nil))
		require.NoError(t, repo.Advance(item.Id, model.StateGeneratingVideo, nil))
		require.NoError(t, repo.Advance(item.Id, model.StateCompleted, nil))
		got, _ := repo.Get(item.Id)
		return got
	}

	_, ok := repo.EarliestCompletedUndelivered()
	assert.False(t, ok)

	first := complete("first")
	second := complete("second")

	got, ok := repo.EarliestCompletedUndelivered()
	require.True(t, ok)
	assert.Equal(t, first.Id, got.Id)

	require.NoError(t, repo.MarkDelivered(first.Id))
	got, ok = repo.EarliestCompletedUndelivered()
	require.True(t, ok)
	assert.Equal(t, second.Id, got.Id)

	assert.Error(t, repo.MarkDelivered(repo.Create("viewer", "pending").Id), "only completed items deliver")
}

func TestDeleteRemovesFromTrackingAndOrder(t *testing.T) {
	repo := newRepo()
	item := repo.Create("viewer", "hello")
	other := repo.Create("viewer", "world")

	repo.Delete(item.Id)

	_, ok := repo.Get(item.Id)
	assert.False(t, ok)
	items := repo.Items()
	require.Len(t, items, 1)
	assert.Equal(t, other.Id, items[0].Id)
	assert.Equal(t, 1, repo.Total())
}

func TestCopiesAreIsolated(t *testing.T) {
	repo := newRepo()
	item := repo.Create("viewer", "hello")

	item.Text = "mutated copy"
	item.Transitions[0].State = model.StateFailed

	got, _ := repo.Get(item.Id)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, model.StateReceived, got.Transitions[0].State)
}

func TestCountByState(t *testing.T) {
	repo := newRepo()
	repo.Create("viewer", "a")
	b := repo.Create("viewer", "b")
	repo.SetPriority(b.Id, 6)
	repo.ClaimNextReceived()

	counts := repo.CountByState()
	assert.Equal(t, 1, counts[model.StateReceived])
	assert.Equal(t, 1, counts[model.StateEvaluating])
	assert.Equal(t, 1, repo.ReceivedCount())
	assert.Equal(t, 1, repo.ActiveCount())
	assert.Equal(t, 2, repo.Total())
}
