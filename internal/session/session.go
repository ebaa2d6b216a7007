package session

import (
	"sync"
	"time"

	"github.com/trananhvu/classpulse/internal/room"
	apperrors "github.com/trananhvu/classpulse/pkg/errors"
)

// Config carries the session lifecycle parameters derived from application
// configuration.
type Config struct {
	CodeLength        int
	MaxParticipants   int
	MaxRooms          int
	HostGracePeriod   time.Duration
	MaxAge            time.Duration
	InactivityTimeout time.Duration
	RoomLimits        room.Limits
}

// Participant is one joined audience connection.
type Participant struct {
	ConnID      string    `json:"participant_id"`
	DisplayName string    `json:"display_name"`
	ExternalID  string    `json:"external_id,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Snapshot is a read-only view of the session for state requests and the
// operational HTTP surface.
type Snapshot struct {
	Code             string          `json:"code"`
	HostConnected    bool            `json:"host_connected"`
	ParticipantCount int             `json:"participant_count"`
	CreatedAt        time.Time       `json:"created_at"`
	LastActivityAt   time.Time       `json:"last_activity_at"`
	Rooms            []room.Snapshot `json:"rooms"`
}

// Session owns one host link, the participant roster and a keyed set of
// rooms. All state behind the mutex is reached only through its methods, so
// each event's mutation step is atomic with respect to other events.
type Session struct {
	code string
	cfg  Config
	now  func() time.Time

	mu                 sync.Mutex
	hostConnID         string
	hostDisconnectedAt time.Time
	participants       map[string]Participant
	rooms              map[room.Key]room.Room
	createdAt          time.Time
	lastActivityAt     time.Time

	graceTimer *time.Timer
	graceGen   uint64
}

func newSession(code string, cfg Config, now func() time.Time) *Session {
	created := now()
	return &Session{
		code:           code,
		cfg:            cfg,
		now:            now,
		participants:   make(map[string]Participant),
		rooms:          make(map[room.Key]room.Room),
		createdAt:      created,
		lastActivityAt: created,
	}
}

// Code returns the immutable session code.
func (s *Session) Code() string { return s.code }

// AttachHost claims the host role for the given connection. Any connection
// presenting the valid code with host intent becomes the host; the code is
// the credential (soft trust model, see DESIGN.md). Returns true when this
// was a reconnect replacing a dropped host.
func (s *Session) AttachHost(connID string) (reconnected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reconnected = !s.hostDisconnectedAt.IsZero()

	s.cancelGraceLocked()
	s.hostConnID = connID
	s.hostDisconnectedAt = time.Time{}
	s.touchLocked()
	return reconnected
}

// DetachHost drops the host link and arms the grace countdown. onExpire fires
// exactly once if no host reconnects within the grace period; reconnecting
// cancels it. Returns false when connID is not the current host.
func (s *Session) DetachHost(connID string, onExpire func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hostConnID == "" || s.hostConnID != connID {
		return false
	}

	s.hostConnID = ""
	s.hostDisconnectedAt = s.now()
	s.touchLocked()

	s.cancelGraceLocked()
	s.graceGen++
	gen := s.graceGen
	s.graceTimer = time.AfterFunc(s.cfg.HostGracePeriod, func() {
		s.mu.Lock()
		expired := s.graceGen == gen && s.hostConnID == ""
		s.mu.Unlock()
		if expired && onExpire != nil {
			onExpire()
		}
	})
	return true
}

// cancelGraceLocked stops a pending grace countdown. Bumping the generation
// neutralises a timer callback that already fired but has not run yet.
func (s *Session) cancelGraceLocked() {
	s.graceGen++
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

// IsHost reports whether connID currently holds the host role.
func (s *Session) IsHost(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return connID != "" && s.hostConnID == connID
}

// HostConn returns the current host connection id, empty when disconnected.
func (s *Session) HostConn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostConnID
}

// HostDisconnectedAt returns when the host dropped, if it is currently gone.
func (s *Session) HostDisconnectedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostDisconnectedAt, !s.hostDisconnectedAt.IsZero()
}

// Join adds a participant to the roster.
func (s *Session) Join(connID, displayName, externalID string) (Participant, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.participants) >= s.cfg.MaxParticipants {
		return Participant{}, len(s.participants), apperrors.ErrSessionFull
	}

	p := Participant{
		ConnID:      connID,
		DisplayName: displayName,
		ExternalID:  externalID,
		JoinedAt:    s.now(),
	}
	s.participants[connID] = p
	s.touchLocked()
	return p, len(s.participants), nil
}

// Leave removes a participant from the roster and from every room's
// per-participant state. Participants get no grace period; a rejoin is a
// fresh join.
func (s *Session) Leave(connID string) (removed bool, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[connID]; !ok {
		return false, len(s.participants)
	}

	delete(s.participants, connID)
	for _, r := range s.rooms {
		r.RemoveParticipant(connID)
	}
	s.touchLocked()
	return true, len(s.participants)
}

// HasParticipant reports roster membership for the connection.
func (s *Session) HasParticipant(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[connID]
	return ok
}

// ParticipantCount returns the current roster size.
func (s *Session) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// Participant returns the roster entry for a connection.
func (s *Session) Participant(connID string) (Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[connID]
	return p, ok
}

// CreateRoom adds a room for the key, or returns the existing one so that a
// replayed create is safe. Host-only.
func (s *Session) CreateRoom(connID string, key room.Key) (room.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hostConnID == "" || s.hostConnID != connID {
		return room.Snapshot{}, apperrors.ErrNotHost
	}

	if existing, ok := s.rooms[key]; ok {
		return existing.Snapshot(), nil
	}
	if len(s.rooms) >= s.cfg.MaxRooms {
		return room.Snapshot{}, apperrors.ErrMaxRoomsReached
	}

	r, err := room.New(key, s.cfg.RoomLimits, s.now())
	if err != nil {
		return room.Snapshot{}, err
	}
	s.rooms[key] = r
	s.touchLocked()
	return r.Snapshot(), nil
}

// CloseRoom removes a room. Host-only.
func (s *Session) CloseRoom(connID string, key room.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hostConnID == "" || s.hostConnID != connID {
		return apperrors.ErrNotHost
	}
	if _, ok := s.rooms[key]; !ok {
		return apperrors.ErrRoomNotFound
	}

	delete(s.rooms, key)
	s.touchLocked()
	return nil
}

// SyncRooms closes every room not present in the host's authoritative list of
// still-open activities and returns the keys that were closed.
func (s *Session) SyncRooms(connID string, open []room.Key) ([]room.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hostConnID == "" || s.hostConnID != connID {
		return nil, apperrors.ErrNotHost
	}

	keep := make(map[room.Key]struct{}, len(open))
	for _, key := range open {
		keep[key] = struct{}{}
	}

	var closed []room.Key
	for key := range s.rooms {
		if _, ok := keep[key]; !ok {
			delete(s.rooms, key)
			closed = append(closed, key)
		}
	}
	if len(closed) > 0 {
		s.touchLocked()
	}
	return closed, nil
}

// HostUpdateRoom runs fn against the room under the session lock after
// verifying the caller holds the host role. Authorization and mutation are a
// single critical section.
func (s *Session) HostUpdateRoom(connID string, key room.Key, fn func(r room.Room, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hostConnID == "" || s.hostConnID != connID {
		return apperrors.ErrNotHost
	}
	return s.updateRoomLocked(key, fn)
}

// ParticipantUpdateRoom runs fn against the room under the session lock after
// verifying roster membership.
func (s *Session) ParticipantUpdateRoom(connID string, key room.Key, fn func(r room.Room, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[connID]; !ok {
		return apperrors.ErrNotParticipant
	}
	return s.updateRoomLocked(key, fn)
}

func (s *Session) updateRoomLocked(key room.Key, fn func(r room.Room, now time.Time) error) error {
	r, ok := s.rooms[key]
	if !ok {
		return apperrors.ErrRoomNotFound
	}

	now := s.now()
	if err := fn(r, now); err != nil {
		return err
	}
	r.Touch(now)
	s.touchLocked()
	return nil
}

// RoomSnapshot returns the room's current state. State requests are read-only
// and always succeed regardless of the room's active flag.
func (s *Session) RoomSnapshot(key room.Key) (room.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[key]
	if !ok {
		return room.Snapshot{}, apperrors.ErrRoomNotFound
	}
	return r.Snapshot(), nil
}

// OpenRooms lists snapshots of every open room.
func (s *Session) OpenRooms() []room.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]room.Snapshot, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Snapshot())
	}
	return out
}

// Snapshot returns the full session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]room.Snapshot, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r.Snapshot())
	}
	return Snapshot{
		Code:             s.code,
		HostConnected:    s.hostConnID != "",
		ParticipantCount: len(s.participants),
		CreatedAt:        s.createdAt,
		LastActivityAt:   s.lastActivityAt,
		Rooms:            rooms,
	}
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// LastActivityAt returns the time of the last mutating operation.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

// Expired reports whether the sweeper may delete this session at the given
// instant. A session with participants is only ever reaped on absolute age;
// the inactivity path additionally requires an empty roster and a dropped
// host, so a session is never reaped early.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.createdAt) > s.cfg.MaxAge {
		return true
	}
	return len(s.participants) == 0 &&
		s.hostConnID == "" &&
		now.Sub(s.lastActivityAt) > s.cfg.InactivityTimeout
}

// Close stops the grace timer. Called when the session leaves the registry.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelGraceLocked()
}

func (s *Session) touchLocked() {
	s.lastActivityAt = s.now()
}
