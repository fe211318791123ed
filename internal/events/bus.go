// Package events provides the in-memory pub/sub bus that fans research
// workflow events out to streaming subscribers.
package events

import (
	"sync"

	"github.com/mediascope/researcher/internal/domain"
)

const defaultBuffer = 256

// Bus routes events by task ID. Publishing never blocks: slow subscribers
// drop events rather than stalling the workflow.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Event]struct{}
	buffer      int
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		subscribers: make(map[string]map[chan domain.Event]struct{}),
		buffer:      buffer,
	}
}

// Subscribe registers a channel for one task's events. The caller must drain
// it and call Unsubscribe when done.
func (b *Bus) Subscribe(taskID string) chan domain.Event {
	ch := make(chan domain.Event, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[taskID]
	if subs == nil {
		subs = make(map[chan domain.Event]struct{})
		b.subscribers[taskID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel. Safe to call after
// CloseTask has already closed the channel.
func (b *Bus) Unsubscribe(taskID string, ch chan domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[taskID]
	if !ok {
		return
	}
	if _, live := subs[ch]; !live {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, taskID)
	}
}

// Publish delivers an event to every subscriber of the task without blocking.
// The read lock is held across the sends: they cannot block, and it keeps
// Unsubscribe or CloseTask from closing a channel mid-delivery.
func (b *Bus) Publish(taskID string, event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers[taskID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// CloseTask closes every subscriber channel for a finished task, signalling
// end of stream to attached clients.
func (b *Bus) CloseTask(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[taskID]
	if !ok {
		return
	}
	for ch := range subs {
		close(ch)
	}
	delete(b.subscribers, taskID)
}

// SubscriberCount reports live subscribers for a task.
func (b *Bus) SubscriberCount(taskID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[taskID])
}
