package model

import (
	"time"

	"github.com/google/uuid"
)

// ItemState is the lifecycle state of a tracked pipeline item.
type ItemState string

const (
	StateReceived           ItemState = "RECEIVED"
	StateEvaluating         ItemState = "EVALUATING"
	StateGeneratingResponse ItemState = "GENERATING_RESPONSE"
	StateGeneratingSpeech   ItemState = "GENERATING_SPEECH"
	StateGeneratingVideo    ItemState = "GENERATING_VIDEO"
	StateCompleted          ItemState = "COMPLETED"
	StateRejected           ItemState = "REJECTED"
	StateFailed             ItemState = "FAILED"
)

// allowedNext encodes the legal transitions of the state machine.
// FAILED is reachable from every non-terminal state after RECEIVED.
var allowedNext = map[ItemState][]ItemState{
	StateReceived:           {StateEvaluating},
	StateEvaluating:         {StateGeneratingResponse, StateRejected, StateFailed},
	StateGeneratingResponse: {StateGeneratingSpeech, StateFailed},
	StateGeneratingSpeech:   {StateGeneratingVideo, StateFailed},
	StateGeneratingVideo:    {StateCompleted, StateFailed},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s ItemState) CanTransition(next ItemState) bool {
	for _, n := range allowedNext[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s ItemState) Terminal() bool {
	return s == StateCompleted || s == StateRejected || s == StateFailed
}

// Active reports whether the item occupies the pipeline: anything that is
// neither waiting in RECEIVED nor finished counts against the concurrency cap.
func (s ItemState) Active() bool {
	return s != StateReceived && !s.Terminal()
}

// Transition is one entry of an item's append-only state log.
type Transition struct {
	State ItemState `json:"state"`
	At    time.Time `json:"at"`
}

// TransitionRecord is a transition annotated with its item, used for the
// global recent-activity feed exposed by /status.
type TransitionRecord struct {
	ItemId   uuid.UUID `json:"item_id"`
	SenderId string    `json:"sender_id"`
	State    ItemState `json:"state"`
	At       time.Time `json:"at"`
}

// Item is one user or synthetic message tracked through the generation
// pipeline. The transition log is append-only and monotonically increasing;
// State always equals the last logged transition's state.
type Item struct {
	Id            uuid.UUID    `json:"id"`
	SenderId      string       `json:"sender_id"`
	Text          string       `json:"text"`
	State         ItemState    `json:"state"`
	Priority      *int         `json:"priority,omitempty"`
	ResponseText  string       `json:"response_text,omitempty"`
	AudioRef      string       `json:"audio_ref,omitempty"`
	VideoRef      string       `json:"video_ref,omitempty"`
	FailureDetail string       `json:"failure_detail,omitempty"`
	Delivered     bool         `json:"delivered"`
	CreatedAt     time.Time    `json:"created_at"`
	Transitions   []Transition `json:"transitions"`
}
