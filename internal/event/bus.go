package event

import (
	"sync"

	"github.com/google/uuid"
)

// EventType names a topic on the bus.
type EventType string

const (
	EventImportProgress EventType = "import_progress"
	EventImportComplete EventType = "import_complete"
	EventImportFailed   EventType = "import_failed"
	EventCatalogChanged EventType = "catalog_changed"
)

// AllTopics is every topic the admin event stream forwards.
var AllTopics = []EventType{
	EventImportProgress,
	EventImportComplete,
	EventImportFailed,
	EventCatalogChanged,
}

type Event struct {
	Type    EventType
	Payload interface{}
}

// ImportProgress is the payload of the import topics.
type ImportProgress struct {
	Provider   string `json:"provider"`
	ExternalID int    `json:"external_id"`
	Step       string `json:"step"`
	Title      string `json:"title,omitempty"`
	AnimeID    uint   `json:"anime_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CatalogChange is the payload of EventCatalogChanged.
type CatalogChange struct {
	Entity string `json:"entity"` // anime, episode, category
	Action string `json:"action"` // created, updated, deleted
	ID     uint   `json:"id"`
	Title  string `json:"title,omitempty"`
}

type Handler func(event Event)

type Bus interface {
	Subscribe(topic EventType, handler Handler) string // 返回 Subscription ID
	Unsubscribe(topic EventType, subID string)
	Publish(topic EventType, payload interface{})
}

type HandlerWrapper struct {
	ID      string
	Handler Handler
}

type delivery struct {
	evt      Event
	handlers []HandlerWrapper
}

// InMemoryBus delivers events on one dispatcher goroutine, so every subscriber sees them
// in publish order. Handlers must return quickly; a slow one delays the rest.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]HandlerWrapper

	qmu     sync.Mutex
	queue   []delivery
	wake    chan struct{}
	done    chan struct{}
	closing sync.Once
}

// GlobalBus 全局单例
var GlobalBus Bus = NewInMemoryBus()

func NewInMemoryBus() *InMemoryBus {
	b := &InMemoryBus{
		handlers: make(map[EventType][]HandlerWrapper),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *InMemoryBus) Subscribe(topic EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.handlers[topic] = append(b.handlers[topic], HandlerWrapper{ID: id, Handler: handler})
	return id
}

func (b *InMemoryBus) Unsubscribe(topic EventType, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wrappers := b.handlers[topic]
	for i, w := range wrappers {
		if w.ID == subID {
			// copy so a queued delivery holding the old slice is unaffected
			next := make([]HandlerWrapper, 0, len(wrappers)-1)
			next = append(next, wrappers[:i]...)
			b.handlers[topic] = append(next, wrappers[i+1:]...)
			break
		}
	}
}

// Publish queues the event for the subscribers registered right now and returns without waiting.
func (b *InMemoryBus) Publish(topic EventType, payload interface{}) {
	b.mu.RLock()
	wrappers := b.handlers[topic]
	b.mu.RUnlock()
	if len(wrappers) == 0 {
		return
	}

	b.qmu.Lock()
	b.queue = append(b.queue, delivery{evt: Event{Type: topic, Payload: payload}, handlers: wrappers})
	b.qmu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Close stops the dispatcher. Queued events that were not delivered yet are dropped.
func (b *InMemoryBus) Close() {
	b.closing.Do(func() { close(b.done) })
}

func (b *InMemoryBus) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
		for {
			b.qmu.Lock()
			if len(b.queue) == 0 {
				b.qmu.Unlock()
				break
			}
			d := b.queue[0]
			b.queue[0] = delivery{}
			b.queue = b.queue[1:]
			b.qmu.Unlock()

			for _, w := range d.handlers {
				w.Handler(d.evt)
			}
		}
	}
}

// Subscribers returns how many handlers listen on topic.
func (b *InMemoryBus) Subscribers(topic EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
