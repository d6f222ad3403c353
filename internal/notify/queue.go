// Package notify implements the transient notification queue that surfaces
// pipeline and persistence outcomes to the user.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// DefaultTTL is how long a notification stays visible unless told otherwise.
const DefaultTTL = 3 * time.Second

// EventKind tells subscribers what happened to a notification
type EventKind string

const (
	EventPushed  EventKind = "pushed"
	EventRemoved EventKind = "removed"
)

// Event is delivered to subscribers after the queue has changed
type Event struct {
	Kind         EventKind
	Notification models.Notification
}

// Queue is an ordered, oldest-first list of notifications. Entries with a
// positive TTL are removed by id once it elapses.
type Queue struct {
	mu         sync.Mutex
	items      []models.Notification
	timers     map[string]*time.Timer
	subs       map[int]func(Event)
	nextSub    int
	defaultTTL time.Duration
	logger     *zap.Logger
	closed     bool
}

// NewQueue creates a queue. A non-positive defaultTTL falls back to DefaultTTL.
func NewQueue(logger *zap.Logger, defaultTTL time.Duration) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Queue{
		timers:     make(map[string]*time.Timer),
		subs:       make(map[int]func(Event)),
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Info pushes an info notification with the default TTL
func (q *Queue) Info(message string) string {
	return q.Push(message, models.NotificationInfo, q.defaultTTL)
}

// Success pushes a success notification with the default TTL
func (q *Queue) Success(message string) string {
	return q.Push(message, models.NotificationSuccess, q.defaultTTL)
}

// Error pushes an error notification with the default TTL
func (q *Queue) Error(message string) string {
	return q.Push(message, models.NotificationError, q.defaultTTL)
}

// Push appends a notification and returns its id. A ttl of zero (or less)
// keeps the notification until it is dismissed.
func (q *Queue) Push(message string, typ models.NotificationType, ttl time.Duration) string {
	if typ == "" {
		typ = models.NotificationInfo
	}

	n := models.Notification{
		ID:        newID(),
		Message:   message,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}

	q.log(n)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return n.ID
	}
	q.items = append(q.items, n)
	if ttl > 0 {
		id := n.ID
		q.timers[id] = time.AfterFunc(ttl, func() { q.remove(id) })
	}
	subs := q.subscribers()
	q.mu.Unlock()

	publish(subs, Event{Kind: EventPushed, Notification: n})
	return n.ID
}

// Dismiss removes a notification immediately. Unknown ids are ignored, so a
// dismissal racing the expiry timer is harmless.
func (q *Queue) Dismiss(id string) {
	q.remove(id)
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}

	idx := -1
	for i, n := range q.items {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return
	}

	removed := q.items[idx]
	q.items = append(q.items[:idx:idx], q.items[idx+1:]...)
	subs := q.subscribers()
	q.mu.Unlock()

	publish(subs, Event{Kind: EventRemoved, Notification: removed})
}

// List returns a snapshot, oldest first
func (q *Queue) List() []models.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports the number of visible notifications
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Subscribe registers fn for push and remove events. The returned func
// unregisters it.
func (q *Queue) Subscribe(fn func(Event)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, id)
	}
}

// Close stops every pending expiry. Later pushes are logged but not queued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.closed = true
}

// subscribers must be called with q.mu held.
func (q *Queue) subscribers() []func(Event) {
	if len(q.subs) == 0 {
		return nil
	}
	out := make([]func(Event), 0, len(q.subs))
	for _, fn := range q.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

func (q *Queue) log(n models.Notification) {
	fields := []zap.Field{zap.String("id", n.ID), zap.String("type", string(n.Type))}
	switch n.Type {
	case models.NotificationError:
		q.logger.Warn(n.Message, fields...)
	default:
		q.logger.Info(n.Message, fields...)
	}
}

// newID returns a time-ordered UUIDv7, falling back to a random UUID.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
