package room

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/trananhvu/classpulse/pkg/errors"
)

// AcceptMode controls which submissions a link wall takes.
type AcceptMode string

const (
	AcceptLinksOnly   AcceptMode = "links_only"
	AcceptLinksOrText AcceptMode = "links_or_text"
)

// ParseAcceptMode maps a wire mode string onto an AcceptMode.
func ParseAcceptMode(s string) (AcceptMode, bool) {
	switch AcceptMode(s) {
	case AcceptLinksOnly, AcceptLinksOrText:
		return AcceptMode(s), true
	default:
		return "", false
	}
}

// WallItem is a single accepted submission.
type WallItem struct {
	ID         string    `json:"id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	IsLink     bool      `json:"is_link"`
	Timestamp  time.Time `json:"timestamp"`
}

// LinkWall collects link or free-text submissions in insertion order.
// Duplicate submissions are allowed.
type LinkWall struct {
	base
	mode   AcceptMode
	limits Limits
	items  []WallItem
}

func newLinkWall(key Key, limits Limits, now time.Time) *LinkWall {
	return &LinkWall{
		base:   newBase(key, now),
		mode:   AcceptLinksOnly,
		limits: limits,
	}
}

// Mode returns the current accept mode.
func (w *LinkWall) Mode() AcceptMode { return w.mode }

// SetMode switches between links-only and mixed submissions.
func (w *LinkWall) SetMode(mode AcceptMode) { w.mode = mode }

// Submit validates content against the accept mode and appends it. Bare hosts
// such as "example.com" are normalized to absolute https URLs before the
// links-only check.
func (w *LinkWall) Submit(authorName, content string, now time.Time) (WallItem, error) {
	if err := w.gate(); err != nil {
		return WallItem{}, err
	}
	if w.limits.MaxSubmissions > 0 && len(w.items) >= w.limits.MaxSubmissions {
		return WallItem{}, apperrors.ErrRoomFull
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return WallItem{}, apperrors.NewInvalidInput("content must not be empty")
	}

	normalized, isLink := NormalizeURL(content)
	switch {
	case isLink:
		content = normalized
	case w.mode == AcceptLinksOnly:
		return WallItem{}, apperrors.NewInvalidInput("this wall accepts links only")
	case utf8.RuneCountInString(content) > w.limits.ContentMaxLen:
		return WallItem{}, apperrors.NewInvalidInput(
			fmt.Sprintf("content exceeds %d characters", w.limits.ContentMaxLen))
	}

	item := WallItem{
		ID:         uuid.NewString(),
		AuthorName: authorName,
		Content:    content,
		IsLink:     isLink,
		Timestamp:  now,
	}
	w.items = append(w.items, item)
	return item, nil
}

// Items returns the submissions in insertion order.
func (w *LinkWall) Items() []WallItem {
	out := make([]WallItem, len(w.items))
	copy(out, w.items)
	return out
}

func (w *LinkWall) RemoveParticipant(string) {}

func (w *LinkWall) Snapshot() Snapshot {
	return Snapshot{
		Kind:       w.key.Kind,
		ActivityID: w.key.ActivityID,
		IsActive:   w.isActive,
		Data: map[string]any{
			"accept_mode": w.mode,
			"items":       w.Items(),
		},
	}
}

// NormalizeURL reports whether the input is a usable absolute URL, prepending
// https:// to scheme-less hosts that look like one. The returned string is
// only meaningful when ok is true.
func NormalizeURL(raw string) (normalized string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return "", false
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		if !strings.Contains(candidate, ".") {
			return "", false
		}
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	host := parsed.Hostname()
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}

	return parsed.String(), true
}
