package gateway

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/trananhvu/classpulse/internal/ratelimit"
	"github.com/trananhvu/classpulse/internal/realtime"
	"github.com/trananhvu/classpulse/internal/session"
	apperrors "github.com/trananhvu/classpulse/pkg/errors"
	"github.com/trananhvu/classpulse/pkg/logger"
	"github.com/trananhvu/classpulse/pkg/metrics"
)

// Config bounds inbound payloads at the gateway. Room-level caps travel with
// the session configuration instead.
type Config struct {
	DisplayNameMaxLen int
	MinPollOptions    int
	MaxPollOptions    int
}

type role int

const (
	roleHost role = iota + 1
	roleParticipant
)

// binding remembers which session a connection belongs to and in which role,
// so disconnects can be routed without scanning the registry.
type binding struct {
	code string
	role role
}

// Gateway applies the event pipeline to every inbound frame: validate,
// rate-limit, authorize, mutate, broadcast. One structured reply per request;
// failures never escape as panics.
type Gateway struct {
	registry *session.Registry
	hub      *realtime.Hub
	limiter  *ratelimit.Limiter
	cfg      Config
	log      *zap.Logger

	mu       sync.Mutex
	bindings map[string]binding
	members  map[string]map[string]realtime.Subscriber // code -> connID -> subscriber
}

// New constructs a gateway and installs it as the hub's message handler.
func New(registry *session.Registry, hub *realtime.Hub, limiter *ratelimit.Limiter, cfg Config) *Gateway {
	g := &Gateway{
		registry: registry,
		hub:      hub,
		limiter:  limiter,
		cfg:      cfg,
		log:      logger.WithModule("gateway"),
		bindings: make(map[string]binding),
		members:  make(map[string]map[string]realtime.Subscriber),
	}
	hub.SetHandler(g)
	return g
}

// HandleMessage implements realtime.Handler.
func (g *Gateway) HandleMessage(sub realtime.Subscriber, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Event == "" {
		g.reply(sub, envelope{}, nil, apperrors.NewInvalidInput("malformed event frame"))
		return
	}

	if allowed, retryAfter := g.limiter.Allow(sub.ID()); !allowed {
		g.reply(sub, env, nil, apperrors.RateLimited(retryAfter.Milliseconds()))
		return
	}

	data, err := g.dispatch(sub, env)
	g.reply(sub, env, data, err)
}

// dispatch routes the event to its handler, converting panics into
// INTERNAL_ERROR so a single bad event cannot take the process down.
func (g *Gateway) dispatch(sub realtime.Subscriber, env envelope) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("panic in event handler",
				zap.String("event", env.Event),
				zap.String("conn", sub.ID()),
				zap.Any("error", r),
			)
			data, err = nil, apperrors.ErrInternal
		}
	}()

	switch env.Event {
	case EventSessionCreate:
		return g.handleSessionCreate(sub, env.Data)
	case EventSessionJoin:
		return g.handleSessionJoin(sub, env.Data)
	case EventSessionClose:
		return g.handleSessionClose(sub, env.Data)
	case EventRoomCreate:
		return g.handleRoomCreate(sub, env.Data)
	case EventRoomClose:
		return g.handleRoomClose(sub, env.Data)
	case EventRoomSetActive:
		return g.handleRoomSetActive(sub, env.Data)
	case EventRoomSync:
		return g.handleRoomSync(sub, env.Data)
	case EventRoomState:
		return g.handleRoomState(sub, env.Data)
	case EventPollSet:
		return g.handlePollSet(sub, env.Data)
	case EventPollVote:
		return g.handlePollVote(sub, env.Data)
	case EventWallSubmit:
		return g.handleWallSubmit(sub, env.Data)
	case EventWallSetMode:
		return g.handleWallSetMode(sub, env.Data)
	case EventDialUpdate:
		return g.handleDialUpdate(sub, env.Data)
	case EventQueueSubmit:
		return g.handleQueueSubmit(sub, env.Data)
	case EventQueueAnswer:
		return g.handleQueueAnswer(sub, env.Data)
	case EventQueueDelete:
		return g.handleQueueDelete(sub, env.Data)
	case EventQueueClear:
		return g.handleQueueClear(sub, env.Data)
	default:
		return nil, apperrors.NewInvalidInput("unknown event " + env.Event)
	}
}

// reply sends the structured acknowledgement for one request and records the
// outcome metric.
func (g *Gateway) reply(sub realtime.Subscriber, env envelope, data any, err error) {
	event := env.Event
	if event == "" {
		event = "unknown"
	}

	msg := realtime.Message{ID: env.ID, Event: event + ":reply"}
	ok := err == nil
	msg.OK = &ok

	result := "ok"
	if err != nil {
		appErr := apperrors.FromError(err)
		if appErr.Code == apperrors.ErrInternal.Code && appErr.Internal != nil {
			g.log.Error("event failed unexpectedly",
				zap.String("event", event),
				zap.String("conn", sub.ID()),
				zap.Error(appErr.Internal),
			)
		}
		msg.Error = &realtime.ErrorInfo{
			Code:         appErr.Code,
			Message:      appErr.Message,
			RetryAfterMs: appErr.RetryAfterMs,
		}
		result = appErr.Code
	} else {
		msg.Data = data
	}

	sub.Send(msg)
	metrics.EventsProcessed.WithLabelValues(event, result).Inc()
}

// HandleDisconnect implements realtime.Handler. Hosts get a grace countdown;
// participants are removed immediately and may rejoin as new.
func (g *Gateway) HandleDisconnect(sub realtime.Subscriber) {
	g.limiter.Forget(sub.ID())

	g.mu.Lock()
	bound, ok := g.bindings[sub.ID()]
	delete(g.bindings, sub.ID())
	if members, found := g.members[bound.code]; found {
		delete(members, sub.ID())
		if len(members) == 0 {
			delete(g.members, bound.code)
		}
	}
	g.mu.Unlock()

	if !ok {
		return
	}

	s, found := g.registry.Get(bound.code)
	if !found {
		return
	}

	switch bound.role {
	case roleHost:
		code := bound.code
		if s.DetachHost(sub.ID(), func() { g.expireSession(code) }) {
			g.log.Info("host disconnected, grace armed", zap.String("code", code))
			g.hub.Broadcast(realtime.SessionChannel(code), realtime.Message{
				Event: NoticeHostDisconnected,
			})
		}
	case roleParticipant:
		if removed, remaining := s.Leave(sub.ID()); removed {
			g.hub.Broadcast(realtime.SessionChannel(bound.code), realtime.Message{
				Event: NoticeRoster,
				Data:  map[string]any{"participant_count": remaining},
			})
		}
	}
}

// expireSession tears a session down after its host grace period lapses with
// no reconnect.
func (g *Gateway) expireSession(code string) {
	s, ok := g.registry.Get(code)
	if !ok {
		return
	}

	g.log.Info("host grace expired, closing session", zap.String("code", code))
	g.hub.Broadcast(realtime.SessionChannel(code), realtime.Message{Event: NoticeSessionClosed})
	g.teardownSession(s)
}

// teardownSession removes the session, its channels and every member binding.
func (g *Gateway) teardownSession(s *session.Session) {
	code := s.Code()

	for _, snap := range s.OpenRooms() {
		g.hub.DropChannel(realtime.RoomChannel(code, string(snap.Kind), snap.ActivityID))
	}
	g.hub.DropChannel(realtime.SessionChannel(code))
	g.registry.Delete(code)

	g.mu.Lock()
	for connID := range g.members[code] {
		delete(g.bindings, connID)
	}
	delete(g.members, code)
	g.mu.Unlock()
}

// bind records the connection's session membership and role.
func (g *Gateway) bind(sub realtime.Subscriber, code string, r role) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.bindings[sub.ID()] = binding{code: code, role: r}
	if g.members[code] == nil {
		g.members[code] = make(map[string]realtime.Subscriber)
	}
	g.members[code][sub.ID()] = sub
}

// liveSession resolves a live session by code.
func (g *Gateway) liveSession(code string) (*session.Session, error) {
	s, ok := g.registry.Get(code)
	if !ok {
		return nil, apperrors.ErrInvalidSession
	}
	return s, nil
}

// subscribeToRooms adds the subscriber to every open room channel.
func (g *Gateway) subscribeToRooms(sub realtime.Subscriber, s *session.Session) {
	for _, snap := range s.OpenRooms() {
		g.hub.Subscribe(sub, realtime.RoomChannel(s.Code(), string(snap.Kind), snap.ActivityID))
	}
}
