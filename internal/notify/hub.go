package notify

import (
	"sync"

	"senfret/internal/models"
)

// EventNew is the realtime event name of a fresh notification.
const EventNew = "notification:new"

// Hub is an in-process registry of realtime rooms. A room is named
// "{recipientType}:{recipientId}".
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[chan models.Notification]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{rooms: map[string]map[chan models.Notification]struct{}{}, buffer: buffer}
}

// Subscribe joins room. The returned func leaves it and closes the channel.
func (h *Hub) Subscribe(room string) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, h.buffer)

	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[chan models.Notification]struct{}{}
	}
	h.rooms[room][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.rooms[room], ch)
			if len(h.rooms[room]) == 0 {
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish pushes n to its recipient room without blocking; subscribers with a
// full buffer miss the event. It returns the number of subscribers reached.
func (h *Hub) Publish(n models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.rooms[n.Room()] {
		select {
		case ch <- n:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of listeners in room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
