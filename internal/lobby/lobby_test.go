package lobby

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minebuddies/server/internal/items"
)

type recordConn struct {
	frames [][]byte
	fail   bool
}

func (c *recordConn) Enqueue(frame []byte) error {
	if c.fail {
		return errors.New("peer gone")
	}
	c.frames = append(c.frames, frame)
	return nil
}

func member(id int, name string) (Member, *recordConn) {
	c := &recordConn{}
	return Member{ClientID: id, Username: name, Conn: c}, c
}

func TestRoundStateMachine(t *testing.T) {
	l := New("lobby1", nil)
	m1, _ := member(1, "alice")
	m2, _ := member(2, "bob")
	l.Join(m1)

	// Below the member minimum the round refuses to start.
	started, err := l.StartRound(2)
	assert.False(t, started)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
	assert.Equal(t, NotStarted, l.State())

	// No NotStarted -> Ended shortcut.
	assert.ErrorIs(t, l.EndRound(), ErrRoundNotRunning)

	l.Join(m2)
	started, err = l.StartRound(2)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, InProgress, l.State())
	assert.False(t, l.StartedAt().IsZero())

	// Starting again is accepted but a no-op.
	started, err = l.StartRound(2)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, InProgress, l.State())

	require.NoError(t, l.EndRound())
	assert.Equal(t, Ended, l.State())
	assert.False(t, l.AcceptsGameplay())

	// Ended is terminal: no restart, no second end.
	assert.ErrorIs(t, l.EndRound(), ErrRoundNotRunning)
	_, err = l.StartRound(2)
	assert.ErrorIs(t, err, ErrRoundOver)
}

func TestJoinOrderAndIdempotence(t *testing.T) {
	l := New("lobby1", nil)
	for _, id := range []int{3, 1, 2} {
		m, _ := member(id, "p")
		l.Join(m)
		l.Join(m) // double join is a no-op
	}
	members := l.Members()
	require.Len(t, members, 3)
	assert.Equal(t, 3, members[0].ClientID)
	assert.Equal(t, 1, members[1].ClientID)
	assert.Equal(t, 2, members[2].ClientID)

	assert.True(t, l.Leave(1))
	assert.False(t, l.Leave(1))
	assert.Equal(t, 2, l.Size())
}

func TestBroadcastIsolatesFailingMember(t *testing.T) {
	l := New("lobby1", nil)
	m1, c1 := member(1, "alice")
	m2, c2 := member(2, "bob")
	m3, c3 := member(3, "carol")
	c2.fail = true
	l.Join(m1)
	l.Join(m2)
	l.Join(m3)

	l.Broadcast([]byte("frame"))

	assert.Len(t, c1.frames, 1)
	assert.Empty(t, c2.frames)
	assert.Len(t, c3.frames, 1)
}

func TestBroadcastSkipsSender(t *testing.T) {
	l := New("lobby1", nil)
	m1, c1 := member(1, "alice")
	m2, c2 := member(2, "bob")
	l.Join(m1)
	l.Join(m2)

	l.Broadcast([]byte("frame"), 1)

	assert.Empty(t, c1.frames)
	assert.Len(t, c2.frames, 1)
}

func TestManagerOneLobbyPerClient(t *testing.T) {
	m := NewManager()
	mem1, _ := member(1, "alice")
	l, err := m.Join("lobby1", mem1)
	require.NoError(t, err)
	assert.Equal(t, l, m.LobbyFor(1))

	_, err = m.Join("lobby2", mem1)
	assert.Error(t, err)
	assert.Equal(t, "lobby1", m.LobbyFor(1).ID())
}

func TestManagerRemovesEmptyLobby(t *testing.T) {
	m := NewManager()
	mem1, _ := member(1, "alice")
	mem2, _ := member(2, "bob")
	_, err := m.Join("lobby1", mem1)
	require.NoError(t, err)
	_, err = m.Join("lobby1", mem2)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	m.Leave(1)
	assert.NotNil(t, m.Lobby("lobby1"))

	m.Leave(2)
	assert.Nil(t, m.Lobby("lobby1"))
	assert.Equal(t, 0, m.Count())

	// Leaving when not in any lobby is safe.
	m.Leave(2)
}

func TestManagerItemIDsUniqueAcrossLobbies(t *testing.T) {
	m := NewManager()
	mem1, _ := member(1, "alice")
	mem2, _ := member(2, "bob")
	l1, err := m.Join("lobby1", mem1)
	require.NoError(t, err)
	l2, err := m.Join("lobby2", mem2)
	require.NoError(t, err)

	a := l1.Items().Spawn(1, items.Torch, items.Vec3{})
	b := l2.Items().Spawn(2, items.Torch, items.Vec3{})
	c := l1.Items().Spawn(1, items.Heart, items.Vec3{})

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, 3, c.ID)
}

func TestManagerSnapshot(t *testing.T) {
	m := NewManager()
	mem1, _ := member(1, "alice")
	_, err := m.Join("lobby1", mem1)
	require.NoError(t, err)

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "lobby1", snap[0].ID)
	assert.Equal(t, "not_started", snap[0].State)
	assert.Equal(t, 1, snap[0].Members)
}
