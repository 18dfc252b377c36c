package rtc

import (
	"sync"

	"github.com/opd-ai/rtcall/signal"
	"github.com/sirupsen/logrus"
)

// CandidateBuffer queues remote ICE candidates that cannot be applied
// yet, keyed by the sending participant.
//
// A candidate is unappliable when the peer link for its sender does
// not exist or has no remote description. Once the remote description
// is set the owner flushes the entry exactly once and applies the
// drained candidates in arrival order before any live candidate.
type CandidateBuffer struct {
	mu      sync.Mutex
	pending map[string][]signal.CandidateDescriptor
}

// NewCandidateBuffer creates an empty buffer.
func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{
		pending: make(map[string][]signal.CandidateDescriptor),
	}
}

// Enqueue appends a candidate to the remote participant's queue.
func (b *CandidateBuffer) Enqueue(remote string, cand signal.CandidateDescriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[remote] = append(b.pending[remote], cand)

	logrus.WithFields(logrus.Fields{
		"function": "Enqueue",
		"remote":   remote,
		"queued":   len(b.pending[remote]),
	}).Debug("Buffered early ICE candidate")
}

// Flush removes and returns the remote participant's queue in FIFO
// order. The entry is discarded; a second Flush returns nil.
func (b *CandidateBuffer) Flush(remote string) []signal.CandidateDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	queued := b.pending[remote]
	delete(b.pending, remote)
	return queued
}

// HasPending reports whether candidates are queued for the remote
// participant.
func (b *CandidateBuffer) HasPending(remote string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[remote]) > 0
}

// Discard drops the remote participant's queue without applying it.
// Used when the participant leaves before negotiation completes.
func (b *CandidateBuffer) Discard(remote string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, remote)
}

// Clear drops every queue. Used on call/meeting teardown.
func (b *CandidateBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = make(map[string][]signal.CandidateDescriptor)
}
