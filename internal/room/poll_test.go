package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/trananhvu/classpulse/pkg/errors"
)

func newTestPoll(t *testing.T) *Poll {
	t.Helper()

	r, err := New(Key{Kind: KindPoll, ActivityID: "p1"}, Limits{}, time.Now())
	require.NoError(t, err)

	poll, ok := r.(*Poll)
	require.True(t, ok)
	poll.SetData("Favourite colour?", []string{"Red", "Blue"})
	return poll
}

func TestPollVoteTallies(t *testing.T) {
	poll := newTestPoll(t)

	require.NoError(t, poll.Vote("conn-a", 0))
	require.NoError(t, poll.Vote("conn-b", 1))

	results := poll.Results()
	require.Equal(t, map[int]int{0: 1, 1: 1}, results.Votes)
	require.Equal(t, 2, results.TotalVotes)
	require.True(t, poll.HasVoted("conn-a"))
}

func TestPollRejectsRepeatVotes(t *testing.T) {
	poll := newTestPoll(t)

	require.NoError(t, poll.Vote("conn-a", 0))

	err := poll.Vote("conn-a", 1)
	require.ErrorIs(t, err, apperrors.ErrAlreadyVoted)

	// Tally unchanged by the rejected vote.
	results := poll.Results()
	require.Equal(t, 1, results.TotalVotes)
	require.Equal(t, 1, results.Votes[0])
	require.Zero(t, results.Votes[1])
}

func TestPollRejectsOutOfRangeOption(t *testing.T) {
	poll := newTestPoll(t)

	for _, idx := range []int{-1, 2, 99} {
		err := poll.Vote("conn-a", idx)
		require.Error(t, err)
		require.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.FromError(err).Code)
	}
	require.Zero(t, poll.Results().TotalVotes)
}

func TestPollPauseGatesVotes(t *testing.T) {
	poll := newTestPoll(t)
	poll.SetActive(false)

	err := poll.Vote("conn-a", 0)
	require.ErrorIs(t, err, apperrors.ErrWidgetPaused)
	require.Zero(t, poll.Results().TotalVotes)
}

func TestPollOptionChangeResetsVotes(t *testing.T) {
	poll := newTestPoll(t)
	require.NoError(t, poll.Vote("conn-a", 0))
	require.NoError(t, poll.Vote("conn-b", 1))

	// Question-only edit keeps the tally.
	poll.SetData("Favorite color?", []string{"Red", "Blue"})
	require.Equal(t, 2, poll.Results().TotalVotes)
	require.True(t, poll.HasVoted("conn-a"))

	// Changing the option set, by value, starts a fresh poll.
	poll.SetData("Favorite color?", []string{"Red", "Blue", "Green"})
	results := poll.Results()
	require.Zero(t, results.TotalVotes)
	require.Empty(t, results.Votes)
	require.False(t, poll.HasVoted("conn-a"))

	// Everyone may vote again.
	require.NoError(t, poll.Vote("conn-a", 2))
}

func TestPollRemoveParticipantClearsVotedFlag(t *testing.T) {
	poll := newTestPoll(t)
	require.NoError(t, poll.Vote("conn-a", 0))

	poll.RemoveParticipant("conn-a")

	require.False(t, poll.HasVoted("conn-a"))
	// Aggregate tally is anonymous and survives the departure.
	require.Equal(t, 1, poll.Results().TotalVotes)
}

func TestPollSnapshotCarriesResults(t *testing.T) {
	poll := newTestPoll(t)
	require.NoError(t, poll.Vote("conn-a", 1))

	snap := poll.Snapshot()
	require.Equal(t, KindPoll, snap.Kind)
	require.Equal(t, "p1", snap.ActivityID)
	require.True(t, snap.IsActive)

	results, ok := snap.Data.(PollResults)
	require.True(t, ok)
	require.Equal(t, 1, results.TotalVotes)
}
