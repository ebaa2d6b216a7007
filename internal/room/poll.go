package room

import (
	"fmt"
	"slices"
	"time"

	apperrors "github.com/trananhvu/classpulse/pkg/errors"
)

// Poll tallies one vote per participant across a fixed option set.
type Poll struct {
	base
	question string
	options  []string
	votes    map[int]int
	voters   map[string]int // connection id -> chosen option index
}

func newPoll(key Key, now time.Time) *Poll {
	return &Poll{
		base:   newBase(key, now),
		votes:  make(map[int]int),
		voters: make(map[string]int),
	}
}

// PollResults is the aggregate view broadcast after each vote.
type PollResults struct {
	Question   string      `json:"question"`
	Options    []string    `json:"options"`
	Votes      map[int]int `json:"votes"`
	TotalVotes int         `json:"total_votes"`
}

// SetData replaces the question and options. Editing only the question keeps
// the tally; changing the option set (compared by value) starts a fresh poll.
func (p *Poll) SetData(question string, options []string) {
	p.question = question
	if !slices.Equal(p.options, options) {
		p.options = slices.Clone(options)
		p.votes = make(map[int]int)
		p.voters = make(map[string]int)
	}
}

// Vote records a single vote for the participant. Repeat votes are rejected
// without changing the tally.
func (p *Poll) Vote(connID string, optionIndex int) error {
	if err := p.gate(); err != nil {
		return err
	}
	if optionIndex < 0 || optionIndex >= len(p.options) {
		return apperrors.NewInvalidInput(fmt.Sprintf("option index %d out of range", optionIndex))
	}
	if _, voted := p.voters[connID]; voted {
		return apperrors.ErrAlreadyVoted
	}

	p.voters[connID] = optionIndex
	p.votes[optionIndex]++
	return nil
}

// HasVoted reports whether the participant already cast a vote.
func (p *Poll) HasVoted(connID string) bool {
	_, ok := p.voters[connID]
	return ok
}

// Results returns the current tally.
func (p *Poll) Results() PollResults {
	votes := make(map[int]int, len(p.votes))
	total := 0
	for idx, count := range p.votes {
		votes[idx] = count
		total += count
	}
	return PollResults{
		Question:   p.question,
		Options:    slices.Clone(p.options),
		Votes:      votes,
		TotalVotes: total,
	}
}

// RemoveParticipant clears the participant's voted flag. The anonymous tally
// is kept; a rejoining participant counts as new and may vote again.
func (p *Poll) RemoveParticipant(connID string) {
	delete(p.voters, connID)
}

func (p *Poll) Snapshot() Snapshot {
	return Snapshot{
		Kind:       p.key.Kind,
		ActivityID: p.key.ActivityID,
		IsActive:   p.isActive,
		Data:       p.Results(),
	}
}
