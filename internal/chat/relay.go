package chat

import (
	"context"
	"encoding/json"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/storelane/storelane-backend/pkg/logger"
)

// subscriberBuffer is how many messages a live subscriber may lag before the
// relay starts dropping deliveries to it.
const subscriberBuffer = 16

type eventSource interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Relay fans chat messages out to in-process subscribers. Each API instance
// runs one relay fed by the shared Pub/Sub subscription, so a message posted
// on any instance reaches streams held open anywhere.
type Relay struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[uint64]chan MessageDTO
	nextID uint64
	closed bool
	logg   *logger.Logger
}

func NewRelay(logg *logger.Logger) *Relay {
	return &Relay{
		subs: map[uuid.UUID]map[uint64]chan MessageDTO{},
		logg: logg,
	}
}

// Subscribe registers a live listener on a thread. The returned cancel func
// is idempotent; calling it (or closing the relay) closes the channel.
func (r *Relay) Subscribe(threadID uuid.UUID) (<-chan MessageDTO, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan MessageDTO, subscriberBuffer)
	if r.closed {
		close(ch)
		return ch, func() {}
	}

	r.nextID++
	id := r.nextID
	if r.subs[threadID] == nil {
		r.subs[threadID] = map[uint64]chan MessageDTO{}
	}
	r.subs[threadID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if listeners, ok := r.subs[threadID]; ok {
				if _, live := listeners[id]; live {
					delete(listeners, id)
					close(ch)
					if len(listeners) == 0 {
						delete(r.subs, threadID)
					}
				}
			}
		})
	}
	return ch, cancel
}

// Deliver hands a message to every subscriber of its thread. A subscriber
// whose buffer is full is skipped rather than blocking the feed.
func (r *Relay) Deliver(ctx context.Context, message MessageDTO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, ch := range r.subs[message.ThreadID] {
		select {
		case ch <- message:
		default:
			if r.logg != nil {
				r.logg.Warn(r.logg.WithThreadID(ctx, message.ThreadID.String()), "dropping chat delivery to slow subscriber")
			}
		}
	}
}

// Run consumes the chat subscription until the context ends. Malformed
// payloads are acked and dropped so they do not wedge the subscription.
func (r *Relay) Run(ctx context.Context, source eventSource) error {
	return source.Receive(ctx, func(msgCtx context.Context, m *pubsub.Message) {
		var message MessageDTO
		if err := json.Unmarshal(m.Data, &message); err != nil {
			if r.logg != nil {
				r.logg.Warn(msgCtx, "discarding undecodable chat message")
			}
			m.Ack()
			return
		}
		r.Deliver(msgCtx, message)
		m.Ack()
	})
}

// Close shuts the relay down and closes every subscriber channel.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for threadID, listeners := range r.subs {
		for _, ch := range listeners {
			close(ch)
		}
		delete(r.subs, threadID)
	}
}
