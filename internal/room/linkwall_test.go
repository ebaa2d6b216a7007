package room

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/trananhvu/classpulse/pkg/errors"
)

func newTestWall(t *testing.T, limits Limits) *LinkWall {
	t.Helper()

	if limits.ContentMaxLen == 0 {
		limits.ContentMaxLen = 100
	}

	r, err := New(Key{Kind: KindLinkWall}, limits, time.Now())
	require.NoError(t, err)

	wall, ok := r.(*LinkWall)
	require.True(t, ok)
	return wall
}

func TestLinkWallNormalizesBareHosts(t *testing.T) {
	wall := newTestWall(t, Limits{})
	require.Equal(t, AcceptLinksOnly, wall.Mode())

	item, err := wall.Submit("alice", "example.com/article", time.Now())
	require.NoError(t, err)
	require.True(t, item.IsLink)
	require.Equal(t, "https://example.com/article", item.Content)
	require.NotEmpty(t, item.ID)
}

func TestLinkWallLinksOnlyRejectsFreeText(t *testing.T) {
	wall := newTestWall(t, Limits{})

	_, err := wall.Submit("alice", "just a thought", time.Now())
	require.Error(t, err)
	require.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.FromError(err).Code)
	require.Empty(t, wall.Items())
}

func TestLinkWallMixedModeAcceptsTextUnderCap(t *testing.T) {
	wall := newTestWall(t, Limits{ContentMaxLen: 20})
	wall.SetMode(AcceptLinksOrText)

	item, err := wall.Submit("bob", "short note", time.Now())
	require.NoError(t, err)
	require.False(t, item.IsLink)

	_, err = wall.Submit("bob", strings.Repeat("x", 21)+" y", time.Now())
	require.Error(t, err)
	require.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.FromError(err).Code)

	require.Len(t, wall.Items(), 1)
}

func TestLinkWallAllowsDuplicates(t *testing.T) {
	wall := newTestWall(t, Limits{})

	_, err := wall.Submit("alice", "https://example.com", time.Now())
	require.NoError(t, err)
	_, err = wall.Submit("bob", "https://example.com", time.Now())
	require.NoError(t, err)

	require.Len(t, wall.Items(), 2)
}

func TestLinkWallEnforcesSubmissionCap(t *testing.T) {
	wall := newTestWall(t, Limits{MaxSubmissions: 2})

	_, err := wall.Submit("a", "https://one.example.com", time.Now())
	require.NoError(t, err)
	_, err = wall.Submit("b", "https://two.example.com", time.Now())
	require.NoError(t, err)

	_, err = wall.Submit("c", "https://three.example.com", time.Now())
	require.ErrorIs(t, err, apperrors.ErrRoomFull)
}

func TestLinkWallPauseGatesSubmissions(t *testing.T) {
	wall := newTestWall(t, Limits{})
	wall.SetActive(false)

	_, err := wall.Submit("alice", "https://example.com", time.Now())
	require.ErrorIs(t, err, apperrors.ErrWidgetPaused)
	require.Empty(t, wall.Items())
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://example.com/a?b=c", "https://example.com/a?b=c", true},
		{"http://example.com", "http://example.com", true},
		{"example.com", "https://example.com", true},
		{"  example.com/path  ", "https://example.com/path", true},
		{"ftp://example.com", "", false},
		{"not a url", "", false},
		{"plaintext", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := NormalizeURL(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			require.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}
