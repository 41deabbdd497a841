package app

import (
	"sync"

	"hydra/internal/logging"
	"hydra/internal/solver/ports"
)

// defaultSubscriberBuffer is the channel depth given to each subscriber.
const defaultSubscriberBuffer = 100

// EventBroadcaster fans task events out to live subscribers and retains the
// canonical per-task event history independent of subscriber liveness.
//
// Publishing never blocks an agent worker: a subscriber whose buffer is full
// has the event dropped (terminal events get one drop-oldest retry). Events
// emitted by one agent are delivered to each subscriber in emission order.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string][]chan ports.TaskEvent

	historyMu  sync.RWMutex
	history    map[string][]ports.TaskEvent
	maxHistory int

	logger  logging.Logger
	metrics *Metrics
}

// Subscription is a live handle onto one task's event stream.
type Subscription struct {
	TaskID string
	Events <-chan ports.TaskEvent

	ch chan ports.TaskEvent
}

// NewEventBroadcaster creates a broadcaster with the default history cap.
func NewEventBroadcaster(metrics *Metrics) *EventBroadcaster {
	return &EventBroadcaster{
		subscribers: make(map[string][]chan ports.TaskEvent),
		history:     make(map[string][]ports.TaskEvent),
		maxHistory:  1000, // Keep up to 1000 events per task
		logger:      logging.NewComponentLogger("EventBroadcaster"),
		metrics:     metrics,
	}
}

// OnEvent implements ports.EventListener.
func (b *EventBroadcaster) OnEvent(event ports.TaskEvent) {
	b.Publish(event)
}

// Publish appends the event to the task's history and forwards it to all
// attached subscribers for that task.
func (b *EventBroadcaster) Publish(event ports.TaskEvent) {
	if event == nil {
		return
	}

	taskID := event.GetTaskID()
	if taskID == "" {
		b.logger.Warn("Dropping event with no task id: type=%s", event.EventType())
		return
	}

	b.storeHistory(taskID, event)

	b.mu.RLock()
	subscribers := b.subscribers[taskID]
	for i, ch := range subscribers {
		select {
		case ch <- event:
			b.metrics.EventsSent.Inc()
		default:
			if b.ensureCriticalDelivery(taskID, i, len(subscribers), ch, event) {
				continue
			}
			b.logger.Warn("Subscriber buffer full for task %s, dropping %s (subscriber %d/%d)",
				taskID, event.EventType(), i+1, len(subscribers))
			b.metrics.EventsDropped.Inc()
		}
	}
	b.mu.RUnlock()
}

// ensureCriticalDelivery retries terminal events against a saturated
// subscriber, dropping the oldest buffered event to make room.
func (b *EventBroadcaster) ensureCriticalDelivery(taskID string, idx, total int, ch chan ports.TaskEvent, event ports.TaskEvent) bool {
	if !isCriticalEvent(event) {
		return false
	}

	// Retry first in case the consumer drained the buffer after the initial attempt.
	select {
	case ch <- event:
		b.metrics.EventsSent.Inc()
		return true
	default:
	}

	select {
	case <-ch:
		b.metrics.EventsDropped.Inc()
	default:
		b.logger.Warn("Failed to free space for critical %s on task %s (subscriber %d/%d)",
			event.EventType(), taskID, idx+1, total)
		return false
	}

	select {
	case ch <- event:
		b.logger.Warn("Subscriber buffer saturated for task %s; dropped oldest event to deliver %s (subscriber %d/%d)",
			taskID, event.EventType(), idx+1, total)
		b.metrics.EventsSent.Inc()
		return true
	default:
		// Buffer refilled before we could send.
		return false
	}
}

func isCriticalEvent(event ports.TaskEvent) bool {
	switch event.EventType() {
	case "task_complete", "solution_found":
		return true
	default:
		return false
	}
}

// Subscribe registers a new subscriber for a task's event stream.
func (b *EventBroadcaster) Subscribe(taskID string) *Subscription {
	ch := make(chan ports.TaskEvent, defaultSubscriberBuffer)

	b.mu.Lock()
	b.subscribers[taskID] = append(b.subscribers[taskID], ch)
	count := len(b.subscribers[taskID])
	b.mu.Unlock()

	b.metrics.ActiveSubscribers.Inc()
	b.logger.Info("Subscriber attached to task %s (total: %d)", taskID, count)

	return &Subscription{TaskID: taskID, Events: ch, ch: ch}
}

// Unsubscribe detaches a subscriber and closes its channel. Safe to call once
// per subscription.
func (b *EventBroadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers := b.subscribers[sub.TaskID]
	for i, ch := range subscribers {
		if ch == sub.ch {
			b.subscribers[sub.TaskID] = append(subscribers[:i], subscribers[i+1:]...)
			close(ch)
			b.metrics.ActiveSubscribers.Dec()
			b.logger.Info("Subscriber detached from task %s (remaining: %d)", sub.TaskID, len(b.subscribers[sub.TaskID]))

			if len(b.subscribers[sub.TaskID]) == 0 {
				delete(b.subscribers, sub.TaskID)
			}
			return
		}
	}
}

// SubscriberCount returns the number of subscribers attached to a task.
func (b *EventBroadcaster) SubscriberCount(taskID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[taskID])
}

func (b *EventBroadcaster) storeHistory(taskID string, event ports.TaskEvent) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	history := append(b.history[taskID], event)
	if len(history) > b.maxHistory {
		history = history[len(history)-b.maxHistory:]
	}
	b.history[taskID] = history
}

// History returns a copy of the retained event history for a task.
func (b *EventBroadcaster) History(taskID string) []ports.TaskEvent {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	history := b.history[taskID]
	if len(history) == 0 {
		return nil
	}
	out := make([]ports.TaskEvent, len(history))
	copy(out, history)
	return out
}

// DropTask releases the retained history for a task. Live subscribers are
// detached and their channels closed.
func (b *EventBroadcaster) DropTask(taskID string) {
	b.mu.Lock()
	for _, ch := range b.subscribers[taskID] {
		close(ch)
		b.metrics.ActiveSubscribers.Dec()
	}
	delete(b.subscribers, taskID)
	b.mu.Unlock()

	b.historyMu.Lock()
	delete(b.history, taskID)
	b.historyMu.Unlock()

	b.logger.Info("Dropped event history for task %s", taskID)
}
