// Package sse implements the Server-Sent Events broker behind live reload.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types sent to browsers.
const (
	EventHello       = "hello"
	EventReload      = "reload"
	EventBuildFailed = "build.failed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ReloadData is the payload of a reload event.
type ReloadData struct {
	Build int      `json:"build"`
	Paths []string `json:"paths,omitempty"`
}

type client struct {
	id string
	ch chan []byte
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the client set and the reload
// throttle state. Public methods talk to it through channels.
type Broker struct {
	reloadMin time.Duration
	onClients func(int)

	subscribeCh   chan *client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	reloadCh      chan []string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithClientObserver registers fn to be called from the broker loop with the
// client count whenever it changes.
func WithClientObserver(fn func(int)) Option {
	return func(b *Broker) { b.onClients = fn }
}

// NewBroker creates a broker that sends at most one reload per
// reloadThrottle. Reloads arriving sooner are merged into one trailing
// reload.
func NewBroker(reloadThrottle time.Duration, opts ...Option) *Broker {
	if reloadThrottle <= 0 {
		reloadThrottle = 250 * time.Millisecond
	}

	b := &Broker{
		reloadMin:     reloadThrottle,
		onClients:     func(int) {},
		subscribeCh:   make(chan *client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		reloadCh:      make(chan []string, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func format(event Event) []byte {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var (
		lastReload time.Time
		builds     int
		pending    []string
		hasPending bool
		timer      *time.Timer
		timerC     <-chan time.Time
	)

	broadcast := func(event Event) {
		raw := format(event)
		if raw == nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}
	flushReload := func() {
		builds++
		lastReload = time.Now()
		broadcast(Event{Type: EventReload, Data: ReloadData{Build: builds, Paths: pending}})
		pending, hasPending = nil, false
	}

	for {
		select {
		case <-b.stopCh:
			if timer != nil {
				timer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c.id
			if raw := format(Event{Type: EventHello, Data: map[string]string{"client": c.id}}); raw != nil {
				c.ch <- raw
			}
			b.onClients(len(clients))

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
				b.onClients(len(clients))
			}

		case event := <-b.publishCh:
			broadcast(event)

		case paths := <-b.reloadCh:
			pending = append(pending, paths...)
			hasPending = true
			if wait := b.reloadMin - time.Since(lastReload); wait > 0 {
				if timerC == nil {
					timer = time.NewTimer(wait)
					timerC = timer.C
				}
				continue
			}
			flushReload()

		case <-timerC:
			timerC = nil
			if hasPending {
				flushReload()
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. The first message on
// the channel is a hello event carrying the client id.
func (b *Broker) Subscribe() chan []byte {
	c := &client{id: uuid.NewString(), ch: make(chan []byte, 64)}
	if b.closed.Load() {
		close(c.ch)
		return c.ch
	}

	select {
	case b.subscribeCh <- c:
	case <-b.stopped:
		close(c.ch)
	}

	return c.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Reload asks every browser to reload after a successful build. paths are
// the source files that triggered it.
func (b *Broker) Reload(paths ...string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.reloadCh <- paths:
	case <-b.stopped:
	}
}

// BuildFailed tells browsers the last rebuild failed. Pages stay as they are.
func (b *Broker) BuildFailed(err error) {
	b.Publish(Event{Type: EventBuildFailed, Data: map[string]string{"error": err.Error()}})
}

// ServeHTTP is the SSE endpoint handler.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
