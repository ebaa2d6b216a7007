package room

import (
	"fmt"
	"time"

	apperrors "github.com/trananhvu/classpulse/pkg/errors"
)

// Kind identifies one of the four activity variants.
type Kind string

const (
	KindPoll          Kind = "poll"
	KindLinkWall      Kind = "linkwall"
	KindFeedbackDial  Kind = "feedback"
	KindQuestionQueue Kind = "questions"
)

// ParseKind maps a wire activity type onto a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindPoll, KindLinkWall, KindFeedbackDial, KindQuestionQueue:
		return Kind(s), true
	default:
		return "", false
	}
}

// Key uniquely identifies a room within a session. ActivityID is empty for
// singleton activities, letting several instances of the same kind coexist
// when set.
type Key struct {
	Kind       Kind   `json:"activity_type"`
	ActivityID string `json:"activity_id,omitempty"`
}

func (k Key) String() string {
	if k.ActivityID == "" {
		return string(k.Kind)
	}
	return fmt.Sprintf("%s/%s", k.Kind, k.ActivityID)
}

// Limits carries the configured caps consumed by input-accepting rooms.
type Limits struct {
	ContentMaxLen  int
	MaxSubmissions int
}

// Snapshot is the wire representation of a room's current state. Read-only
// state requests and creation acks both return it, so replays are safe.
type Snapshot struct {
	Kind       Kind   `json:"activity_type"`
	ActivityID string `json:"activity_id,omitempty"`
	IsActive   bool   `json:"is_active"`
	Data       any    `json:"data"`
}

// Room is the capability surface shared by all four variants. Mutating methods
// on a Room, including the variant-specific ones, must run under the owning
// session's lock; rooms carry no locking of their own.
type Room interface {
	Key() Key
	Active() bool
	SetActive(active bool)
	CreatedAt() time.Time
	LastActivityAt() time.Time
	Touch(now time.Time)
	RemoveParticipant(connID string)
	Snapshot() Snapshot
}

// New constructs the variant matching the key's kind.
func New(key Key, limits Limits, now time.Time) (Room, error) {
	switch key.Kind {
	case KindPoll:
		return newPoll(key, now), nil
	case KindLinkWall:
		return newLinkWall(key, limits, now), nil
	case KindFeedbackDial:
		return newFeedbackDial(key, now), nil
	case KindQuestionQueue:
		return newQuestionQueue(key, limits, now), nil
	default:
		return nil, apperrors.NewInvalidInput(fmt.Sprintf("unknown activity type %q", key.Kind))
	}
}

// base holds the attributes common to every variant.
type base struct {
	key            Key
	isActive       bool
	createdAt      time.Time
	lastActivityAt time.Time
}

func newBase(key Key, now time.Time) base {
	return base{
		key:            key,
		isActive:       true,
		createdAt:      now,
		lastActivityAt: now,
	}
}

func (b *base) Key() Key                  { return b.key }
func (b *base) Active() bool              { return b.isActive }
func (b *base) SetActive(active bool)     { b.isActive = active }
func (b *base) CreatedAt() time.Time      { return b.createdAt }
func (b *base) LastActivityAt() time.Time { return b.lastActivityAt }
func (b *base) Touch(now time.Time)       { b.lastActivityAt = now }

// gate rejects participant input while the host has the activity paused.
func (b *base) gate() error {
	if !b.isActive {
		return apperrors.ErrWidgetPaused
	}
	return nil
}
