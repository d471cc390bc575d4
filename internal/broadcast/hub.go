package broadcast

import (
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Subscriber — живое подключение, готовое принимать события комнаты.
// Send не должен блокироваться на медленном получателе: реализация
// обязана буферизовать или дропать.
type Subscriber interface {
	Send(evt domain.PresenceEvent) error
}

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{} // room -> set of subscribers
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[Subscriber]struct{})}
}

func (h *Hub) Subscribe(topic string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.topics[topic] = subs
	}
	subs[s] = struct{}{}
}

// Unsubscribe безопасен для уже удалённого подписчика.
func (h *Hub) Unsubscribe(topic string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish доставляет событие всем текущим подписчикам topic.
// Ошибки отдельных подписчиков не всплывают к публикующему.
func (h *Hub) Publish(topic string, evt domain.PresenceEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.topics[topic]; ok {
		for s := range subs {
			_ = s.Send(evt) // best-effort
		}
	}
}
