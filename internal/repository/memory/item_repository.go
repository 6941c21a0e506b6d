package memory

import (
	"fmt"
	"sync"
	"time"

	"ai-livehost-be/internal/model"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const defaultRecentCap = 50

// ItemRepository is the single in-memory tracking set for pipeline items.
// Non-terminal items never expire; once an item reaches a terminal state it
// is re-stored with a TTL so the cache janitor acts as the eviction policy.
// All compound mutations (claims, multi-step transitions) happen under one
// lock so readers never observe a half-applied update.
type ItemRepository struct {
	mu          sync.RWMutex
	cache       *cache.Cache
	order       []uuid.UUID // admission order, drives FIFO selection
	recent      []model.TransitionRecord
	recentCap   int
	terminalTTL time.Duration
}

func NewItemRepository(terminalTTL, purgeInterval time.Duration) *ItemRepository {
	r := &ItemRepository{
		cache:       cache.New(cache.NoExpiration, purgeInterval),
		recentCap:   defaultRecentCap,
		terminalTTL: terminalTTL,
	}
	// The janitor only ever expires terminal items; drop them from the
	// admission order as well so iteration stays clean.
	r.cache.OnEvicted(func(key string, _ interface{}) {
		id, err := uuid.Parse(key)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.removeFromOrder(id)
		r.mu.Unlock()
	})
	return r
}

// Create registers a new item in RECEIVED state and returns a copy.
func (r *ItemRepository) Create(senderId, text string) model.Item {
	now := time.Now()
	item := &model.Item{
		Id:        uuid.New(),
		SenderId:  senderId,
		Text:      text,
		State:     model.StateReceived,
		CreatedAt: now,
		Transitions: []model.Transition{
			{State: model.StateReceived, At: now},
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(item.Id.String(), item, cache.NoExpiration)
	r.order = append(r.order, item.Id)
	r.pushRecent(item, now)
	return copyItem(item)
}

// Get returns a copy of the item, if tracked.
func (r *ItemRepository) Get(id uuid.UUID) (model.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.get(id)
	if !ok {
		return model.Item{}, false
	}
	return copyItem(item), true
}

// SetPriority attaches the evaluator's score to an item still in RECEIVED.
func (r *ItemRepository) SetPriority(id uuid.UUID, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.get(id); ok && item.State == model.StateReceived {
		p := priority
		item.Priority = &p
	}
}

// Reject moves an item through EVALUATING into REJECTED in one atomic step.
// The item is never observable in EVALUATING, so the active count (and with
// it the concurrency cap) is unaffected by admission-time rejection.
func (r *ItemRepository) Reject(id uuid.UUID, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.get(id)
	if !ok {
		return fmt.Errorf("item %s not tracked", id)
	}
	if item.State != model.StateReceived {
		return fmt.Errorf("item %s is %s, cannot reject", id, item.State)
	}
	p := priority
	item.Priority = &p
	now := time.Now()
	item.Transitions = append(item.Transitions,
		model.Transition{State: model.StateEvaluating, At: now},
		model.Transition{State: model.StateRejected, At: now},
	)
	item.State = model.StateRejected
	r.pushRecent(item, now)
	r.cache.Set(item.Id.String(), item, r.terminalTTL)
	return nil
}

// ClaimNextReceived picks the earliest-admitted RECEIVED item that already
// carries a priority, moves it to EVALUATING, and returns a copy. Items whose
// evaluation pass is still in flight are skipped until it lands. Callers must
// hold a concurrency slot before claiming.
func (r *ItemRepository) ClaimNextReceived() (model.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		item, ok := r.get(id)
		if !ok || item.State != model.StateReceived || item.Priority == nil {
			continue
		}
		now := time.Now()
		item.Transitions = append(item.Transitions, model.Transition{State: model.StateEvaluating, At: now})
		item.State = model.StateEvaluating
		r.pushRecent(item, now)
		return copyItem(item), true
	}
	return model.Item{}, false
}

// Advance moves an item to the next state, applying mutate (may be nil) to
// attach stage results in the same critical section. Illegal transitions are
// refused so every item's log stays a valid path through the state machine.
func (r *ItemRepository) Advance(id uuid.UUID, next model.ItemState, mutate func(*model.Item)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.get(id)
	if !ok {
		return fmt.Errorf("item %s not tracked", id)
	}
	if !item.State.CanTransition(next) {
		return fmt.Errorf("illegal transition %s -> %s for item %s", item.State, next, id)
	}
	if mutate != nil {
		mutate(item)
	}
	now := time.Now()
	item.Transitions = append(item.Transitions, model.Transition{State: next, At: now})
	item.State = next
	r.pushRecent(item, now)
	if next.Terminal() {
		r.cache.Set(item.Id.String(), item, r.terminalTTL)
	}
	return nil
}

// MarkDelivered flags a completed item as handed to the player.
func (r *ItemRepository) MarkDelivered(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.get(id)
	if !ok || item.State != model.StateCompleted {
		return fmt.Errorf("item %s is not completed", id)
	}
	item.Delivered = true
	return nil
}

// Delete removes an item from tracking entirely.
func (r *ItemRepository) Delete(id uuid.UUID) {
	r.mu.Lock()
	r.removeFromOrder(id)
	r.mu.Unlock()
	// Outside the lock: Delete fires OnEvicted, which re-acquires it.
	r.cache.Delete(id.String())
}

// Items returns copies of every tracked item in admission order.
func (r *ItemRepository) Items() []model.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Item, 0, len(r.order))
	for _, id := range r.order {
		if item, ok := r.get(id); ok {
			out = append(out, copyItem(item))
		}
	}
	return out
}

// ReceivedWithoutPriority returns the batch the next evaluation pass should
// score, oldest first.
func (r *ItemRepository) ReceivedWithoutPriority() []model.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Item
	for _, id := range r.order {
		if item, ok := r.get(id); ok && item.State == model.StateReceived && item.Priority == nil {
			out = append(out, copyItem(item))
		}
	}
	return out
}

// ReceivedCount is the admitted-but-unprocessed backlog.
func (r *ItemRepository) ReceivedCount() int {
	return r.countWhere(func(it *model.Item) bool { return it.State == model.StateReceived })
}

// ActiveCount counts items occupying a pipeline slot.
func (r *ItemRepository) ActiveCount() int {
	return r.countWhere(func(it *model.Item) bool { return it.State.Active() })
}

// Total is the number of items currently tracked.
func (r *ItemRepository) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache.ItemCount()
}

// CountByState returns the per-state census for /status.
func (r *ItemRepository) CountByState() map[model.ItemState]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[model.ItemState]int)
	for _, id := range r.order {
		if item, ok := r.get(id); ok {
			counts[item.State]++
		}
	}
	return counts
}

// EarliestCompletedUndelivered finds the next clip /next-video should serve.
func (r *ItemRepository) EarliestCompletedUndelivered() (model.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *model.Item
	for _, id := range r.order {
		item, ok := r.get(id)
		if !ok || item.State != model.StateCompleted || item.Delivered {
			continue
		}
		if best == nil || item.CreatedAt.Before(best.CreatedAt) {
			best = item
		}
	}
	if best == nil {
		return model.Item{}, false
	}
	return copyItem(best), true
}

// RecentTransitions returns up to n of the latest transitions, newest first.
func (r *ItemRepository) RecentTransitions(n int) []model.TransitionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > len(r.recent) {
		n = len(r.recent)
	}
	out := make([]model.TransitionRecord, n)
	for i := 0; i < n; i++ {
		out[i] = r.recent[len(r.recent)-1-i]
	}
	return out
}

// --- internal helpers (callers hold r.mu) ---

func (r *ItemRepository) get(id uuid.UUID) (*model.Item, bool) {
	if x, found := r.cache.Get(id.String()); found {
		return x.(*model.Item), true
	}
	return nil, false
}

func (r *ItemRepository) removeFromOrder(id uuid.UUID) {
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *ItemRepository) pushRecent(item *model.Item, at time.Time) {
	r.recent = append(r.recent, model.TransitionRecord{
		ItemId:   item.Id,
		SenderId: item.SenderId,
		State:    item.State,
		At:       at,
	})
	if len(r.recent) > r.recentCap {
		r.recent = r.recent[len(r.recent)-r.recentCap:]
	}
}

func (r *ItemRepository) countWhere(pred func(*model.Item) bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, id := range r.order {
		if item, ok := r.get(id); ok && pred(item) {
			n++
		}
	}
	return n
}

func copyItem(item *model.Item) model.Item {
	c := *item
	c.Transitions = append([]model.Transition(nil), item.Transitions...)
	if item.Priority != nil {
		p := *item.Priority
		c.Priority = &p
	}
	return c
}
