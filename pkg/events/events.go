package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/herald/pkg/metrics"
)

// EventType names a bot or server lifecycle event
type EventType string

const (
	EventBotCreated          EventType = "bot.created"
	EventBotDeleted          EventType = "bot.deleted"
	EventBotStarting         EventType = "bot.starting"
	EventBotOnline           EventType = "bot.online"
	EventBotOffline          EventType = "bot.offline"
	EventBotStartFailed      EventType = "bot.start_failed"
	EventBotRestartRequested EventType = "bot.restart_requested"
	EventBotServerChanged    EventType = "bot.server_changed"
	EventServerCreated       EventType = "server.created"
	EventServerUpdated       EventType = "server.updated"
	EventServerDeleted       EventType = "server.deleted"
)

const (
	queueSize      = 100
	subscriberSize = 50
)

// Event is one lifecycle event. BotID is empty for server events.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	BotID     string    `json:"botId,omitempty"`
	ServerID  string    `json:"serverId,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// NewBotEvent builds an event about one bot
func NewBotEvent(t EventType, botID, message string) *Event {
	return &Event{Type: t, BotID: botID, Message: message}
}

// NewServerEvent builds an event about one server
func NewServerEvent(t EventType, serverID string) *Event {
	return &Event{Type: t, ServerID: serverID}
}

// Filter selects the events a subscription receives. A nil Filter
// receives everything.
type Filter func(*Event) bool

// ForBot selects the events of one bot
func ForBot(botID string) Filter {
	return func(e *Event) bool { return e.BotID == botID }
}

// Subscription receives matching events on C until Unsubscribe closes it
type Subscription struct {
	C      <-chan *Event
	ch     chan *Event
	filter Filter
}

func (s *Subscription) matches(e *Event) bool {
	return s.filter == nil || s.filter(e)
}

// Broker fans published events out to subscriptions. Publishing never
// blocks; events are dropped when the queue or a subscriber is full.
type Broker struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}

	queue    chan *Event
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBroker creates a broker. Events are queued until Start.
func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[*Subscription]struct{}),
		queue:  make(chan *Event, queueSize),
		stopCh: make(chan struct{}),
	}
}

// Start runs the fan-out loop in the background
func (b *Broker) Start() {
	go b.run()
}

// Stop ends the fan-out loop. Later publishes are dropped.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// Subscribe registers a subscription for events matching filter
func (b *Broker) Subscribe(filter Filter) *Subscription {
	ch := make(chan *Event, subscriberSize)
	sub := &Subscription{C: ch, ch: ch, filter: filter}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel. Repeated calls are no-ops.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Publish stamps the event with an ID and time if unset and queues it
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.queue <- event:
	default:
		metrics.EventsDroppedTotal.WithLabelValues("queue").Inc()
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.queue:
			b.fanOut(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) fanOut(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			metrics.EventsDroppedTotal.WithLabelValues("subscriber").Inc()
		}
	}
}

// SubscriberCount returns the number of active subscriptions
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
