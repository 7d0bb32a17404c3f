// Package sse streams content and report updates to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeContentCreated = "content.created"
	TypeContentUpdated = "content.updated"
	TypeContentDeleted = "content.deleted"
	TypeReportUpdated  = "report.updated"
)

// Defaults for NewBroker.
const (
	DefaultReportThrottle = 2 * time.Second
	DefaultKeepAlive      = 25 * time.Second
	DefaultBacklog        = 64
)

// retryMS is the reconnect delay suggested to clients.
const retryMS = 3000

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ContentChange is the payload of content.* events.
type ContentChange struct {
	Kind string    `json:"kind"`
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// frame is an encoded event with its stream id.
type frame struct {
	id  uint64
	raw []byte
}

type subscription struct {
	ch    chan []byte
	after uint64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithKeepAlive sets how often idle streams receive a comment line.
func WithKeepAlive(d time.Duration) BrokerOption {
	return func(b *Broker) { b.keepAlive = d }
}

// WithBacklog sets how many recent events are kept for Last-Event-ID replay.
func WithBacklog(n int) BrokerOption {
	return func(b *Broker) { b.backlog = n }
}

// Broker fans events out to SSE clients.
//
// A single event loop owns the client set, the event sequence, the replay
// backlog and the report throttle. Public methods talk to it over channels.
type Broker struct {
	reportMin time.Duration
	keepAlive time.Duration
	backlog   int

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	reportCh      chan any
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. report.updated events go out at most once per
// reportThrottle; the latest suppressed report is sent when the window ends.
func NewBroker(reportThrottle time.Duration, opts ...BrokerOption) *Broker {
	if reportThrottle <= 0 {
		reportThrottle = DefaultReportThrottle
	}
	b := &Broker{
		reportMin:     reportThrottle,
		keepAlive:     DefaultKeepAlive,
		backlog:       DefaultBacklog,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		reportCh:      make(chan any, 16),
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

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var seq uint64
	var recent []frame

	var lastReport time.Time
	var pending any
	var hasPending bool
	var timer *time.Timer
	var timerCh <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		f := frame{id: seq, raw: fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)}
		if b.backlog > 0 {
			recent = append(recent, f)
			if len(recent) > b.backlog {
				recent = recent[len(recent)-b.backlog:]
			}
		}
		for ch := range clients {
			select {
			case ch <- f.raw:
			default:
				// Slow client; it can catch up through Last-Event-ID.
			}
		}
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

		case sub := <-b.subscribeCh:
			clients[sub.ch] = struct{}{}
			if sub.after == 0 {
				continue
			}
			for _, f := range recent {
				if f.id <= sub.after {
					continue
				}
				select {
				case sub.ch <- f.raw:
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case data := <-b.reportCh:
			now := time.Now()
			if wait := b.reportMin - now.Sub(lastReport); wait > 0 {
				pending, hasPending = data, true
				if timer == nil {
					timer = time.NewTimer(wait)
					timerCh = timer.C
				}
				continue
			}
			lastReport = now
			broadcast(Event{Type: TypeReportUpdated, Data: data})

		case <-timerCh:
			timer, timerCh = nil, nil
			if hasPending {
				lastReport = time.Now()
				broadcast(Event{Type: TypeReportUpdated, Data: pending})
				pending, hasPending = nil, false
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes every client channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that receives events from now on.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeAfter(0)
}

// SubscribeAfter adds a client and first replays backlog events with an id
// greater than lastID. Zero means no replay.
func (b *Broker) SubscribeAfter(lastID uint64) chan []byte {
	ch := make(chan []byte, max(b.backlog, 64))
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscription{ch: ch, after: lastID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
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

// PublishContentEvent publishes a content file change. kind is one of
// "created", "updated", "deleted"; other kinds are dropped.
func (b *Broker) PublishContentEvent(kind, path string) {
	var typ string
	switch kind {
	case "created":
		typ = TypeContentCreated
	case "updated":
		typ = TypeContentUpdated
	case "deleted":
		typ = TypeContentDeleted
	default:
		return
	}
	b.Publish(Event{Type: typ, Data: ContentChange{Kind: kind, Path: path, At: time.Now().UTC()}})
}

// PublishReport publishes a throttled report.updated event carrying data.
func (b *Broker) PublishReport(data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.reportCh <- data:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /events). Clients reconnecting
// with a Last-Event-ID header get the events they missed, as far as the
// backlog reaches.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMS)
	flusher.Flush()

	ch := b.SubscribeAfter(lastID)
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		ticker := time.NewTicker(b.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
