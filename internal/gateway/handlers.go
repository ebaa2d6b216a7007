package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trananhvu/classpulse/internal/realtime"
	"github.com/trananhvu/classpulse/internal/room"
	apperrors "github.com/trananhvu/classpulse/pkg/errors"
)

// resolveKey turns wire activity fields into a room key.
func resolveKey(activityType, activityID string) (room.Key, error) {
	kind, ok := room.ParseKind(activityType)
	if !ok {
		return room.Key{}, apperrors.NewInvalidInput("unknown activity type " + activityType)
	}
	return room.Key{Kind: kind, ActivityID: activityID}, nil
}

func (g *Gateway) roomChannel(code string, key room.Key) realtime.Channel {
	return realtime.RoomChannel(code, string(key.Kind), key.ActivityID)
}

type sessionCreatedResponse struct {
	Code       string          `json:"code"`
	IsExisting bool            `json:"is_existing"`
	Rooms      []room.Snapshot `json:"active_rooms"`
}

func (g *Gateway) handleSessionCreate(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[createSessionRequest](raw)
	if err != nil {
		return nil, err
	}

	s, resumed, err := g.registry.Create(req.ExistingCode)
	if err != nil {
		return nil, err
	}

	reconnected := s.AttachHost(sub.ID())
	g.bind(sub, s.Code(), roleHost)
	g.hub.Subscribe(sub, realtime.SessionChannel(s.Code()))
	g.subscribeToRooms(sub, s)

	if reconnected {
		g.log.Info("host reconnected", zap.String("code", s.Code()))
		g.hub.Broadcast(realtime.SessionChannel(s.Code()), realtime.Message{
			Event: NoticeHostReconnected,
		})
	} else {
		g.log.Info("session opened", zap.String("code", s.Code()), zap.Bool("existing", resumed))
	}

	return sessionCreatedResponse{Code: s.Code(), IsExisting: resumed, Rooms: s.OpenRooms()}, nil
}

type sessionJoinedResponse struct {
	Code             string          `json:"code"`
	ParticipantID    string          `json:"participant_id"`
	ExternalID       string          `json:"external_id,omitempty"`
	ParticipantCount int             `json:"participant_count"`
	Rooms            []room.Snapshot `json:"active_rooms"`
}

func (g *Gateway) handleSessionJoin(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[joinSessionRequest](raw)
	if err != nil {
		return nil, err
	}
	if g.cfg.DisplayNameMaxLen > 0 && len(req.DisplayName) > g.cfg.DisplayNameMaxLen {
		return nil, apperrors.NewInvalidInput(
			fmt.Sprintf("display_name exceeds %d characters", g.cfg.DisplayNameMaxLen))
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	p, count, err := s.Join(sub.ID(), req.DisplayName, req.ExternalID)
	if err != nil {
		return nil, err
	}

	g.bind(sub, s.Code(), roleParticipant)
	g.hub.Subscribe(sub, realtime.SessionChannel(s.Code()))
	g.subscribeToRooms(sub, s)

	g.hub.Broadcast(realtime.SessionChannel(s.Code()), realtime.Message{
		Event: NoticeRoster,
		Data:  map[string]any{"participant_count": count},
	})

	return sessionJoinedResponse{
		Code:             s.Code(),
		ParticipantID:    p.ConnID,
		ExternalID:       p.ExternalID,
		ParticipantCount: count,
		Rooms:            s.OpenRooms(),
	}, nil
}

func (g *Gateway) handleSessionClose(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[sessionRef](raw)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}
	if !s.IsHost(sub.ID()) {
		return nil, apperrors.ErrNotHost
	}

	g.log.Info("session closed by host", zap.String("code", s.Code()))
	g.hub.Broadcast(realtime.SessionChannel(s.Code()), realtime.Message{Event: NoticeSessionClosed})
	g.teardownSession(s)
	return nil, nil
}

func (g *Gateway) handleRoomCreate(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[roomRef](raw)
	if err != nil {
		return nil, err
	}
	key, err := resolveKey(req.ActivityType, req.ActivityID)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	snap, err := s.CreateRoom(sub.ID(), key)
	if err != nil {
		return nil, err
	}

	// Every member follows every open room.
	ch := g.roomChannel(s.Code(), key)
	g.mu.Lock()
	for _, member := range g.members[s.Code()] {
		g.hub.Subscribe(member, ch)
	}
	g.mu.Unlock()

	g.hub.Broadcast(realtime.SessionChannel(s.Code()), realtime.Message{
		Event: NoticeRoomOpened,
		Data:  snap,
	})
	return snap, nil
}

func (g *Gateway) handleRoomClose(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[roomRef](raw)
	if err != nil {
		return nil, err
	}
	key, err := resolveKey(req.ActivityType, req.ActivityID)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}
	if err := s.CloseRoom(sub.ID(), key); err != nil {
		return nil, err
	}

	g.hub.Broadcast(realtime.SessionChannel(s.Code()), realtime.Message{
		Event: NoticeRoomClosed,
		Data:  map[string]any{"activity_type": key.Kind, "activity_id": key.ActivityID},
	})
	g.hub.DropChannel(g.roomChannel(s.Code(), key))
	return nil, nil
}

func (g *Gateway) handleRoomSetActive(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[setActiveRequest](raw)
	if err != nil {
		return nil, err
	}
	key, err := resolveKey(req.ActivityType, req.ActivityID)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	active := *req.IsActive
	err = s.HostUpdateRoom(sub.ID(), key, func(r room.Room, _ time.Time) error {
		r.SetActive(active)
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: NoticeRoomStatus,
		Data: map[string]any{
			"activity_type": key.Kind,
			"activity_id":   key.ActivityID,
			"is_active":     active,
		},
	})
	return nil, nil
}

func (g *Gateway) handleRoomSync(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[syncRoomsRequest](raw)
	if err != nil {
		return nil, err
	}

	open := make([]room.Key, 0, len(req.Open))
	for _, a := range req.Open {
		key, err := resolveKey(a.ActivityType, a.ActivityID)
		if err != nil {
			return nil, err
		}
		open = append(open, key)
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	closed, err := s.SyncRooms(sub.ID(), open)
	if err != nil {
		return nil, err
	}

	for _, key := range closed {
		g.hub.Broadcast(realtime.SessionChannel(s.Code()), realtime.Message{
			Event: NoticeRoomClosed,
			Data:  map[string]any{"activity_type": key.Kind, "activity_id": key.ActivityID},
		})
		g.hub.DropChannel(g.roomChannel(s.Code(), key))
	}
	return map[string]any{"closed": len(closed)}, nil
}

func (g *Gateway) handleRoomState(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[roomRef](raw)
	if err != nil {
		return nil, err
	}
	key, err := resolveKey(req.ActivityType, req.ActivityID)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}
	return s.RoomSnapshot(key)
}

func (g *Gateway) handlePollSet(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[pollSetRequest](raw)
	if err != nil {
		return nil, err
	}
	if len(req.Options) < g.cfg.MinPollOptions || len(req.Options) > g.cfg.MaxPollOptions {
		return nil, apperrors.NewInvalidInput(fmt.Sprintf(
			"polls take between %d and %d options", g.cfg.MinPollOptions, g.cfg.MaxPollOptions))
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	key := room.Key{Kind: room.KindPoll, ActivityID: req.ActivityID}
	var results room.PollResults
	err = s.HostUpdateRoom(sub.ID(), key, func(r room.Room, _ time.Time) error {
		poll, ok := r.(*room.Poll)
		if !ok {
			return apperrors.NewInvalidInput("activity is not a poll")
		}
		poll.SetData(req.Question, req.Options)
		results = poll.Results()
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: NoticePollResults,
		Data:  results,
	})
	return results, nil
}

func (g *Gateway) handlePollVote(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[pollVoteRequest](raw)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	key := room.Key{Kind: room.KindPoll, ActivityID: req.ActivityID}
	var results room.PollResults
	err = s.ParticipantUpdateRoom(sub.ID(), key, func(r room.Room, _ time.Time) error {
		poll, ok := r.(*room.Poll)
		if !ok {
			return apperrors.NewInvalidInput("activity is not a poll")
		}
		if err := poll.Vote(sub.ID(), *req.OptionIndex); err != nil {
			return err
		}
		results = poll.Results()
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: NoticePollResults,
		Data:  results,
	})
	return results, nil
}

func (g *Gateway) handleWallSubmit(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[wallSubmitRequest](raw)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	author, ok := s.Participant(sub.ID())
	if !ok {
		return nil, apperrors.ErrNotParticipant
	}

	key := room.Key{Kind: room.KindLinkWall, ActivityID: req.ActivityID}
	var item room.WallItem
	err = s.ParticipantUpdateRoom(sub.ID(), key, func(r room.Room, now time.Time) error {
		wall, ok := r.(*room.LinkWall)
		if !ok {
			return apperrors.NewInvalidInput("activity is not a link wall")
		}
		var err error
		item, err = wall.Submit(author.DisplayName, req.Content, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: NoticeWallItem,
		Data:  item,
	})
	return item, nil
}

func (g *Gateway) handleWallSetMode(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[wallSetModeRequest](raw)
	if err != nil {
		return nil, err
	}
	mode, ok := room.ParseAcceptMode(req.AcceptMode)
	if !ok {
		return nil, apperrors.NewInvalidInput("unknown accept mode " + req.AcceptMode)
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	key := room.Key{Kind: room.KindLinkWall, ActivityID: req.ActivityID}
	err = s.HostUpdateRoom(sub.ID(), key, func(r room.Room, _ time.Time) error {
		wall, ok := r.(*room.LinkWall)
		if !ok {
			return apperrors.NewInvalidInput("activity is not a link wall")
		}
		wall.SetMode(mode)
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: NoticeWallMode,
		Data:  map[string]any{"accept_mode": mode},
	})
	return nil, nil
}

func (g *Gateway) handleDialUpdate(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[dialUpdateRequest](raw)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	key := room.Key{Kind: room.KindFeedbackDial, ActivityID: req.ActivityID}
	var summary room.DialSummary
	err = s.ParticipantUpdateRoom(sub.ID(), key, func(r room.Room, now time.Time) error {
		dial, ok := r.(*room.FeedbackDial)
		if !ok {
			return apperrors.NewInvalidInput("activity is not a feedback dial")
		}
		if err := dial.Update(sub.ID(), *req.Value, now); err != nil {
			return err
		}
		summary = dial.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: NoticeDialSummary,
		Data:  summary,
	})
	return summary, nil
}

func (g *Gateway) handleQueueSubmit(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[queueSubmitRequest](raw)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	author, ok := s.Participant(sub.ID())
	if !ok {
		return nil, apperrors.ErrNotParticipant
	}

	key := room.Key{Kind: room.KindQuestionQueue, ActivityID: req.ActivityID}
	var question room.Question
	err = s.ParticipantUpdateRoom(sub.ID(), key, func(r room.Room, now time.Time) error {
		queue, ok := r.(*room.QuestionQueue)
		if !ok {
			return apperrors.NewInvalidInput("activity is not a question queue")
		}
		var err error
		question, err = queue.Submit(sub.ID(), author.DisplayName, req.Text, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: NoticeQueueQuestion,
		Data:  question,
	})
	return question, nil
}

func (g *Gateway) handleQueueAnswer(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	return g.handleQueueItem(sub, raw, NoticeQueueAnswered, func(q *room.QuestionQueue, id string) error {
		return q.MarkAnswered(id)
	})
}

func (g *Gateway) handleQueueDelete(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	return g.handleQueueItem(sub, raw, NoticeQueueDeleted, func(q *room.QuestionQueue, id string) error {
		return q.Delete(id)
	})
}

// handleQueueItem factors the shared shape of host actions addressing one
// question by id.
func (g *Gateway) handleQueueItem(sub realtime.Subscriber, raw json.RawMessage, notice string, apply func(q *room.QuestionQueue, id string) error) (any, error) {
	req, err := decode[queueItemRequest](raw)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	key := room.Key{Kind: room.KindQuestionQueue, ActivityID: req.ActivityID}
	err = s.HostUpdateRoom(sub.ID(), key, func(r room.Room, _ time.Time) error {
		queue, ok := r.(*room.QuestionQueue)
		if !ok {
			return apperrors.NewInvalidInput("activity is not a question queue")
		}
		return apply(queue, req.QuestionID)
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: notice,
		Data:  map[string]any{"question_id": req.QuestionID},
	})
	return nil, nil
}

func (g *Gateway) handleQueueClear(sub realtime.Subscriber, raw json.RawMessage) (any, error) {
	req, err := decode[queueClearRequest](raw)
	if err != nil {
		return nil, err
	}

	s, err := g.liveSession(req.Code)
	if err != nil {
		return nil, err
	}

	key := room.Key{Kind: room.KindQuestionQueue, ActivityID: req.ActivityID}
	err = s.HostUpdateRoom(sub.ID(), key, func(r room.Room, _ time.Time) error {
		queue, ok := r.(*room.QuestionQueue)
		if !ok {
			return apperrors.NewInvalidInput("activity is not a question queue")
		}
		queue.Clear()
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(g.roomChannel(s.Code(), key), realtime.Message{
		Event: NoticeQueueCleared,
	})
	return nil, nil
}
