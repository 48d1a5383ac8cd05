package store

import "sync"

// Status is the lifecycle state of one logical remote operation.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Envelope tracks pending/success/error plus optional progress for a single
// operation instance. Envelopes are never shared between unrelated
// operations, so concurrent actions can't clobber each other's state.
type Envelope struct {
	mu       sync.Mutex
	status   Status
	progress int
	message  string
}

// EnvelopeState is a consistent snapshot for the UI.
type EnvelopeState struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

func NewEnvelope() *Envelope {
	return &Envelope{status: StatusIdle}
}

func (e *Envelope) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = StatusPending
	e.progress = 0
	e.message = ""
}

// SetProgress records partial completion (0-100). Only meaningful while the
// operation is pending; ignored otherwise.
func (e *Envelope) SetProgress(percent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPending {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	e.progress = percent
}

func (e *Envelope) Succeed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = StatusSuccess
	e.progress = 100
}

func (e *Envelope) Fail(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = StatusError
	e.message = message
}

// Reset returns the envelope to idle so the operation can be retried.
func (e *Envelope) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = StatusIdle
	e.progress = 0
	e.message = ""
}

func (e *Envelope) State() EnvelopeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EnvelopeState{
		Status:   e.status,
		Progress: e.progress,
		Error:    e.message,
	}
}
