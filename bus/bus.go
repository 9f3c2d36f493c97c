package bus

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// common bus package

type Message struct {
	ID    int
	Topic string
	Type  string
	Data  interface{}
}

var ErrInvalidMessageData = errors.New("invalid message data")

const QUEUE_SIZE = 1000

type Bus struct {
	Subscribers map[string][]chan *Message //topic -> subscribers
	M           sync.Mutex
	In          chan *Message
	NextID      int
}

func New() *Bus {
	return &Bus{
		Subscribers: make(map[string][]chan *Message),
		In:          make(chan *Message, QUEUE_SIZE),
	}
}

var cb *Bus = New()

func Default() *Bus { return cb }

func Init() {
	go cb.ProcessMessages()
}

// ProcessMessages fans incoming messages out to topic subscribers until In
// is closed. Subscribers that are full drop the message.
func (b *Bus) ProcessMessages() {
	for msg := range b.In {
		b.M.Lock()
		for _, subscriber := range b.Subscribers[msg.Topic] {
			select {
			case subscriber <- msg:
			default:
				log.Warn().Str("topic", msg.Topic).Str("type", msg.Type).Msg("bus subscriber full, message dropped")
			}
		}
		b.M.Unlock()
	}
}

func (b *Bus) Subscribe(topic ...string) chan *Message {
	log.Trace().Msgf("bus.Subscribing to %v", topic)

	b.M.Lock()
	defer b.M.Unlock()

	ch := make(chan *Message, QUEUE_SIZE)

	added := make(map[string]bool)

	for _, t := range topic {
		if added[t] { // prevent duplicate subscriptions
			continue
		}
		added[t] = true
		b.Subscribers[t] = append(b.Subscribers[t], ch)
	}

	return ch
}

func (b *Bus) Unsubscribe(ch chan *Message) {
	log.Trace().Msg("bus.Unsubscribing")

	b.M.Lock()
	defer b.M.Unlock()

	for t, subs := range b.Subscribers {
		for i, subscriber := range subs {
			if subscriber == ch {
				b.Subscribers[t] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}

	close(ch)
}

func (b *Bus) Send(topic, t string, data interface{}) int {
	b.M.Lock()
	b.NextID++
	id := b.NextID
	b.M.Unlock()

	log.Trace().Msgf("   %04d->%s: %s", id, topic, t)

	b.In <- &Message{
		ID:    id,
		Topic: topic,
		Type:  t,
		Data:  data,
	}
	return id
}

func Subscribe(topic ...string) chan *Message { return cb.Subscribe(topic...) }

func Unsubscribe(ch chan *Message) { cb.Unsubscribe(ch) }

func Send(topic, t string, data interface{}) int { return cb.Send(topic, t, data) }
