package realtime

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/trananhvu/classpulse/pkg/logger"
	"github.com/trananhvu/classpulse/pkg/metrics"
)

// Channel is the structured broadcast routing key. Session-wide notices use a
// key with only Session set; room traffic carries the activity fields too. No
// string concatenation, no parsing at dispatch time.
type Channel struct {
	Session  string `json:"session"`
	Kind     string `json:"activity_type,omitempty"`
	Activity string `json:"activity_id,omitempty"`
}

// SessionChannel returns the key for session-wide notices.
func SessionChannel(code string) Channel {
	return Channel{Session: code}
}

// RoomChannel returns the key for one room's traffic.
func RoomChannel(code, kind, activity string) Channel {
	return Channel{Session: code, Kind: kind, Activity: activity}
}

// ErrorInfo is the structured failure payload inside a reply.
type ErrorInfo struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// Message is a JSON frame delivered to clients: a reply when ID/OK are set, a
// broadcast when Channel is set.
type Message struct {
	ID      string     `json:"id,omitempty"`
	Event   string     `json:"event"`
	OK      *bool      `json:"ok,omitempty"`
	Channel *Channel   `json:"channel,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// Subscriber is one connected client from the hub's perspective. *Conn is the
// production implementation; tests swap in fakes.
type Subscriber interface {
	ID() string
	Send(msg Message) bool
}

// Handler consumes inbound client frames and connection lifecycle events.
type Handler interface {
	HandleMessage(sub Subscriber, payload []byte)
	HandleDisconnect(sub Subscriber)
}

// Hub coordinates channel subscriptions and fan-out for connected clients.
type Hub struct {
	mu       sync.RWMutex
	subs     map[Channel]map[Subscriber]struct{}
	channels map[Subscriber]map[Channel]struct{}

	handler  Handler
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a hub. SetHandler must be called before Serve.
func NewHub() *Hub {
	return &Hub{
		subs:     make(map[Channel]map[Subscriber]struct{}),
		channels: make(map[Subscriber]map[Channel]struct{}),
		log:      logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Allow same-origin requests and explicit localhost development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// SetHandler installs the inbound message handler. Setter rather than
// constructor argument: the gateway broadcasts through the hub while the hub
// feeds frames to the gateway.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Serve upgrades the HTTP connection to a websocket and runs its pumps. The
// call returns when the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	if h.handler == nil {
		http.Error(w, "handler not configured", http.StatusServiceUnavailable)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(h, socket)
	metrics.ConnectedClients.Inc()

	go conn.writePump()
	conn.readPump()
}

// Subscribe adds the subscriber to a channel.
func (h *Hub) Subscribe(sub Subscriber, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[ch] == nil {
		h.subs[ch] = make(map[Subscriber]struct{})
	}
	h.subs[ch][sub] = struct{}{}

	if h.channels[sub] == nil {
		h.channels[sub] = make(map[Channel]struct{})
	}
	h.channels[sub][ch] = struct{}{}
}

// Unsubscribe removes the subscriber from a channel.
func (h *Hub) Unsubscribe(sub Subscriber, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub, ch)
}

// DropSubscriber removes the subscriber from every channel.
func (h *Hub) DropSubscriber(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.channels[sub] {
		h.removeLocked(sub, ch)
	}
}

// DropChannel removes every subscriber from a channel, typically after the
// owning room or session is gone.
func (h *Hub) DropChannel(ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[ch] {
		h.removeLocked(sub, ch)
	}
}

func (h *Hub) removeLocked(sub Subscriber, ch Channel) {
	if members, ok := h.subs[ch]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.subs, ch)
		}
	}
	if chans, ok := h.channels[sub]; ok {
		delete(chans, ch)
		if len(chans) == 0 {
			delete(h.channels, sub)
		}
	}
}

// Broadcast delivers the message to every subscriber of the channel. Delivery
// order per channel follows the order events are processed by the caller.
func (h *Hub) Broadcast(ch Channel, msg Message) {
	msg.Channel = &ch

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ch] {
		if !sub.Send(msg) {
			h.log.Warn("dropping backpressure client", zap.String("conn", sub.ID()))
		}
	}
	metrics.Broadcasts.WithLabelValues(msg.Event).Inc()
}

// Subscribers returns the current subscriber count for a channel.
func (h *Hub) Subscribers(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ch])
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
