// Package hub fans screen events out to the websocket clients watching a
// screen.
package hub

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventNotice        EventType = "notice"
	EventImageSelected EventType = "image_selected"
	EventLabeling      EventType = "labeling"
	EventLabels        EventType = "labels"
	EventLabelFailed   EventType = "label_failed"
	EventClosed        EventType = "closed"
)

type Event struct {
	Type     EventType   `json:"type"`
	ScreenID string      `json:"screen_id"`
	Data     interface{} `json:"data,omitempty"`
	At       time.Time   `json:"at"`
}

type IHub interface {
	Subscribe(screenID string) (<-chan Event, func())
	Publish(event Event)
	Close(screenID string)
	SubscriberCount(screenID string) int
}

type subscriber struct {
	ch chan Event
}

type hubService struct {
	mu      sync.RWMutex
	screens map[string]map[*subscriber]struct{}
	buffer  int
	log     *logrus.Logger
}

func New(log *logrus.Logger) IHub {
	return &hubService{
		screens: make(map[string]map[*subscriber]struct{}),
		buffer:  16,
		log:     log,
	}
}

// Subscribe registers a listener for one screen. The returned func detaches
// it and is safe to call more than once.
func (h *hubService) Subscribe(screenID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.screens[screenID] == nil {
		h.screens[screenID] = make(map[*subscriber]struct{})
	}
	h.screens[screenID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { h.remove(screenID, sub) })
	}
}

func (h *hubService) remove(screenID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.screens[screenID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.screens, screenID)
	}
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (h *hubService) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.screens[event.ScreenID] {
		select {
		case sub.ch <- event:
		default:
			h.log.WithFields(logrus.Fields{
				"screen_id": event.ScreenID,
				"event":     event.Type,
			}).Warn("Dropping screen event for slow subscriber")
		}
	}
}

// Close sends a final closed event and detaches every subscriber.
func (h *hubService) Close(screenID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.screens[screenID] {
		select {
		case sub.ch <- Event{Type: EventClosed, ScreenID: screenID, At: time.Now()}:
		default:
		}
		close(sub.ch)
	}
	delete(h.screens, screenID)
}

func (h *hubService) SubscriberCount(screenID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.screens[screenID])
}
