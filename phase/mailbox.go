package phase

import "sync"

// alertAdjustment is one pending external alert correction.
type alertAdjustment struct {
	Delta  float64
	Source string
}

// mailbox is the asynchronous signal inbox for one operation instance.
//
// Senders only set flags and queue counters here; nothing in the mailbox
// ever touches operation state directly. The run loop drains it at
// checkpoints, so signal effects apply atomically between phase actions and
// never preempt one.
type mailbox struct {
	mu sync.Mutex

	abortRequested bool
	abortReason    string
	abortCh        chan struct{}

	teamConfirmed bool
	confirmCh     chan struct{}

	alertQueue []alertAdjustment
}

func newMailbox() *mailbox {
	return &mailbox{
		abortCh:   make(chan struct{}),
		confirmCh: make(chan struct{}),
	}
}

// requestAbort records an abort request. The first reason wins; repeats are
// no-ops.
func (mb *mailbox) requestAbort(reason string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.abortRequested {
		return
	}
	mb.abortRequested = true
	mb.abortReason = reason
	close(mb.abortCh)
}

// confirmTeam marks the team ready. Idempotent: repeat confirmations have
// the same effect as one.
func (mb *mailbox) confirmTeam() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.teamConfirmed {
		return
	}
	mb.teamConfirmed = true
	close(mb.confirmCh)
}

// queueAlert records an external alert correction for the next checkpoint.
func (mb *mailbox) queueAlert(delta float64, source string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.alertQueue = append(mb.alertQueue, alertAdjustment{Delta: delta, Source: source})
}

// abort returns the pending abort request, if any.
func (mb *mailbox) abort() (string, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.abortReason, mb.abortRequested
}

// drainAlerts removes and returns the queued alert corrections.
func (mb *mailbox) drainAlerts() []alertAdjustment {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := mb.alertQueue
	mb.alertQueue = nil
	return out
}
