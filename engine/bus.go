/*
bus.go - Typed publish-subscribe bus for collaborator fact notifications

PURPOSE:
  Upstream modules announce "facts available" on a typed topic; the
  engine's collector reacts by pulling that collaborator's current
  candidate set and running dedup/insert. Nothing ever blocks waiting on
  another module - an unavailable collaborator simply contributes no facts
  this cycle and is retried on the next notification or poll.

DESIGN:
  Collaborator handles are constructor-injected (a CollaboratorSource per
  topic), not discovered ambiently. The bus itself only moves
  notifications; the facts travel through the pull path so the dedup check
  always sees the collaborator's latest snapshot.

SEE ALSO:
  - collector.go: The pull-and-insert half of the cycle
  - api/poller.go: Periodic fallback poll over all registered sources
*/
package engine

import (
	"context"
	"sync"
)

// =============================================================================
// TOPICS - One per collaborator module
// =============================================================================

type Topic string

const (
	TopicManagement Topic = "management"
	TopicPayroll    Topic = "payroll"
	TopicBudget     Topic = "budget"
	TopicProject    Topic = "project"
)

// SourceForTopic maps a topic to the Source stamped on facts pulled from it.
func SourceForTopic(t Topic) Source {
	switch t {
	case TopicManagement:
		return SourceManagement
	case TopicPayroll:
		return SourcePayroll
	case TopicBudget:
		return SourceBudget
	case TopicProject:
		return SourceProject
	default:
		return SourceSystem
	}
}

// =============================================================================
// COLLABORATOR SOURCE - Pull handle for one upstream module
// =============================================================================

// CollaboratorSource is the engine's handle on one upstream module.
// PendingFacts returns the module's current candidate set; the engine
// deduplicates, so returning already-seen facts is harmless.
type CollaboratorSource interface {
	Topic() Topic
	PendingFacts(ctx context.Context) ([]RawFact, error)
}

// =============================================================================
// BUS - In-process fan-out of "facts available" notifications
// =============================================================================

// Notice announces that a collaborator has facts ready to pull.
type Notice struct {
	Topic Topic
}

// Bus is a minimal in-process publish-subscribe fan-out. Handlers run
// synchronously on the publisher's goroutine; the engine facade's mutex
// keeps the subsequent collect serialized regardless.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]func(Notice)
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Topic][]func(Notice))}
}

// Subscribe registers a handler for one topic.
func (b *Bus) Subscribe(topic Topic, handler func(Notice)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish delivers a notice to every subscriber of its topic.
func (b *Bus) Publish(notice Notice) {
	b.mu.RLock()
	handlers := append([]func(Notice){}, b.handlers[notice.Topic]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(notice)
	}
}
