package signal

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EnvelopeSink receives parsed negotiation envelopes for one scope.
// CallOrchestrator and MeshOrchestrator both implement it.
type EnvelopeSink interface {
	HandleOffer(env *Envelope)
	HandleAnswer(env *Envelope)
	HandleCandidate(env *Envelope)
}

// Router demultiplexes inbound signaling envelopes by scope and type
// to the orchestrator owning the scope.
//
// Routing is best-effort: envelopes that are malformed, addressed to
// someone else, or carry an unbound scope are dropped with a
// diagnostic. Signaling noise must never crash a call.
type Router struct {
	identity string

	mu    sync.RWMutex
	sinks map[string]EnvelopeSink
}

// NewRouter creates a router for the given local identity. Envelopes
// whose "to" field names anyone else are dropped.
func NewRouter(identity string) *Router {
	return &Router{
		identity: identity,
		sinks:    make(map[string]EnvelopeSink),
	}
}

// Bind registers the sink owning a scope (call ID or meeting code).
func (r *Router) Bind(scopeID string, sink EnvelopeSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sinks[scopeID]; exists {
		return ErrScopeAlreadyBound
	}
	r.sinks[scopeID] = sink

	logrus.WithFields(logrus.Fields{
		"function": "Bind",
		"scope_id": scopeID,
		"identity": r.identity,
	}).Debug("Scope bound to envelope sink")
	return nil
}

// Release removes the sink for a scope. Safe to call for scopes that
// were never bound.
func (r *Router) Release(scopeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, scopeID)
}

// HandlePayload parses a raw transport payload and routes it. It has
// the signature of a transport Handler so it can be subscribed
// directly to the participant's signaling topic.
func (r *Router) HandlePayload(topic string, payload []byte) {
	env, err := ParseEnvelope(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandlePayload",
			"topic":    topic,
			"error":    err.Error(),
		}).Warn("Dropping unparseable signaling payload")
		return
	}
	r.Route(env)
}

// Route dispatches one parsed envelope to the sink bound to its scope.
func (r *Router) Route(env *Envelope) {
	if env.To != r.identity {
		logrus.WithFields(logrus.Fields{
			"function": "Route",
			"identity": r.identity,
			"to":       env.To,
			"from":     env.From,
			"scope_id": env.ScopeID,
		}).Warn("Dropping envelope addressed to another participant")
		return
	}

	r.mu.RLock()
	sink := r.sinks[env.ScopeID]
	r.mu.RUnlock()

	if sink == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Route",
			"scope_id": env.ScopeID,
			"type":     env.Type,
			"from":     env.From,
		}).Warn("Dropping envelope for unbound scope")
		return
	}

	switch env.Type {
	case SignalOffer:
		sink.HandleOffer(env)
	case SignalAnswer:
		sink.HandleAnswer(env)
	case SignalCandidate:
		sink.HandleCandidate(env)
	}
}
