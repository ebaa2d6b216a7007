package gateway

import (
	"encoding/json"

	apperrors "github.com/trananhvu/classpulse/pkg/errors"
	"github.com/trananhvu/classpulse/pkg/validator"
)

// Inbound event names.
const (
	EventSessionCreate = "session:create"
	EventSessionJoin   = "session:join"
	EventSessionClose  = "session:close"
	EventRoomCreate    = "room:create"
	EventRoomClose     = "room:close"
	EventRoomSetActive = "room:set_active"
	EventRoomSync      = "room:sync"
	EventRoomState     = "room:state"
	EventPollSet       = "poll:set"
	EventPollVote      = "poll:vote"
	EventWallSubmit    = "wall:submit"
	EventWallSetMode   = "wall:set_mode"
	EventDialUpdate    = "dial:update"
	EventQueueSubmit   = "queue:submit"
	EventQueueAnswer   = "queue:answer"
	EventQueueDelete   = "queue:delete"
	EventQueueClear    = "queue:clear"
)

// Broadcast event names.
const (
	NoticeRoster           = "roster"
	NoticeHostDisconnected = "host:disconnected"
	NoticeHostReconnected  = "host:reconnected"
	NoticeSessionClosed    = "session:closed"
	NoticeRoomOpened       = "room:opened"
	NoticeRoomClosed       = "room:closed"
	NoticeRoomStatus       = "room:status"
	NoticePollResults      = "poll:results"
	NoticeWallItem         = "wall:item"
	NoticeWallMode         = "wall:mode"
	NoticeDialSummary      = "dial:summary"
	NoticeQueueQuestion    = "queue:question"
	NoticeQueueAnswered    = "queue:answered"
	NoticeQueueDeleted     = "queue:deleted"
	NoticeQueueCleared     = "queue:cleared"
)

// envelope is the inbound frame: one reply is sent per envelope, correlated
// by the client-chosen id.
type envelope struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type createSessionRequest struct {
	ExistingCode string `json:"existing_code"`
}

type joinSessionRequest struct {
	Code        string `json:"code" validate:"required,sessioncode"`
	DisplayName string `json:"display_name" validate:"required"`
	ExternalID  string `json:"external_id"`
}

type sessionRef struct {
	Code string `json:"code" validate:"required,sessioncode"`
}

// roomRef addresses one activity instance inside a session. ActivityID stays
// empty for singleton activities.
type roomRef struct {
	Code         string `json:"code" validate:"required,sessioncode"`
	ActivityType string `json:"activity_type" validate:"required"`
	ActivityID   string `json:"activity_id"`
}

type setActiveRequest struct {
	roomRef
	IsActive *bool `json:"is_active" validate:"required"`
}

type openActivity struct {
	ActivityType string `json:"activity_type" validate:"required"`
	ActivityID   string `json:"activity_id"`
}

type syncRoomsRequest struct {
	Code string         `json:"code" validate:"required,sessioncode"`
	Open []openActivity `json:"open" validate:"dive"`
}

type pollSetRequest struct {
	Code       string   `json:"code" validate:"required,sessioncode"`
	ActivityID string   `json:"activity_id"`
	Question   string   `json:"question" validate:"required"`
	Options    []string `json:"options" validate:"required,dive,required"`
}

type pollVoteRequest struct {
	Code        string `json:"code" validate:"required,sessioncode"`
	ActivityID  string `json:"activity_id"`
	OptionIndex *int   `json:"option_index" validate:"required"`
}

type wallSubmitRequest struct {
	Code       string `json:"code" validate:"required,sessioncode"`
	ActivityID string `json:"activity_id"`
	Content    string `json:"content" validate:"required"`
}

type wallSetModeRequest struct {
	Code       string `json:"code" validate:"required,sessioncode"`
	ActivityID string `json:"activity_id"`
	AcceptMode string `json:"accept_mode" validate:"required"`
}

type dialUpdateRequest struct {
	Code       string   `json:"code" validate:"required,sessioncode"`
	ActivityID string   `json:"activity_id"`
	Value      *float64 `json:"value" validate:"required"`
}

type queueSubmitRequest struct {
	Code       string `json:"code" validate:"required,sessioncode"`
	ActivityID string `json:"activity_id"`
	Text       string `json:"text" validate:"required"`
}

type queueItemRequest struct {
	Code       string `json:"code" validate:"required,sessioncode"`
	ActivityID string `json:"activity_id"`
	QuestionID string `json:"question_id" validate:"required"`
}

type queueClearRequest struct {
	Code       string `json:"code" validate:"required,sessioncode"`
	ActivityID string `json:"activity_id"`
}

// decode unmarshals and validates an event payload, mapping validation
// failures onto the stable error codes.
func decode[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, apperrors.NewInvalidInput("malformed event payload")
	}

	if err := validator.ValidateStruct(payload); err != nil {
		if failures, ok := err.(validator.ValidationErrors); ok && len(failures) > 0 {
			first := failures.First()
			if first.Missing() {
				return payload, apperrors.ErrMissingRequiredField.WithMessage(
					"missing required field " + first.Field)
			}
			return payload, apperrors.NewInvalidInput(
				"field " + first.Field + " failed " + first.Tag + " validation")
		}
		return payload, apperrors.ErrInvalidInput.WithInternal(err)
	}

	return payload, nil
}
