/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	active := !t.stopped && !t.fired
	t.stopped = true

	return active
}

// fakeClock only moves when told to. Due timers fire on the caller's
// goroutine, in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), d: d, f: f}
	c.timers = append(c.timers, t)

	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].at.Before(due[j].at)
	})

	for _, t := range due {
		t.f()
	}
}

// Skip moves time forward without firing anything.
func (c *fakeClock) Skip(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// ForceFire runs every callback scheduled with duration d, stopped or
// not, as a timer that lost the race with Stop would.
func (c *fakeClock) ForceFire(d time.Duration) int {
	c.mu.Lock()
	var matched []*fakeTimer
	for _, t := range c.timers {
		if t.d == d {
			matched = append(matched, t)
		}
	}
	c.mu.Unlock()

	for _, t := range matched {
		t.f()
	}

	return len(matched)
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	msgs   []any
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string {
	return c.id
}

func (c *fakeConn) Send(msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = append(c.msgs, msg)
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *fakeConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]any(nil), c.msgs...)
}

// sent returns every message of type T the connection received.
func sent[T any](c *fakeConn) []T {
	var out []T
	for _, msg := range c.messages() {
		if m, ok := msg.(T); ok {
			out = append(out, m)
		}
	}

	return out
}

type mockPlaylists struct {
	mock.Mock
}

func (m *mockPlaylists) Lookup(ctx context.Context, reference string) (Playlist, error) {
	args := m.Called(ctx, reference)

	return args.Get(0).(Playlist), args.Error(1)
}

type mockClips struct {
	mock.Mock
}

func (m *mockClips) Resolve(ctx context.Context, track Track) (string, error) {
	args := m.Called(ctx, track)

	return args.String(0), args.Error(1)
}

const testPlaylist = "manifest:test"

func testTracks(n int) []Track {
	names := []string{"Song One", "Song Two", "Song Three", "Song Four", "Song Five"}

	tracks := make([]Track, 0, n)
	for i := range n {
		tracks = append(tracks, Track{
			ID:     names[i],
			Title:  names[i],
			Artist: "Artist " + names[i][5:],
			Source: "https://clips.example/" + names[i][5:] + ".mp3",
		})
	}

	return tracks
}

type harness struct {
	t     *testing.T
	clock *fakeClock
	reg   *Registry
	room  *Room
	code  string
}

func newHarness(t *testing.T, tracks []Track, rounds int, configure ...func(*Options)) *harness {
	t.Helper()

	playlists := &mockPlaylists{}
	playlists.On("Lookup", mock.Anything, testPlaylist).
		Return(Playlist{Info: PlaylistInfo{Name: "Test Mix", Owner: "tester"}, Tracks: tracks}, nil)

	clock := newFakeClock()
	opts := Options{
		Playlists: playlists,
		Clock:     clock,
		Logger:    zerolog.Nop(),
		Shuffle:   func([]Track) {},
	}
	for _, fn := range configure {
		fn(&opts)
	}

	reg := NewRegistry(opts)
	t.Cleanup(reg.Close)

	code, _, err := reg.Create(context.Background(), RoomConfig{
		HostIdentity:      "alice",
		PlaylistReference: testPlaylist,
		RoundDuration:     15 * time.Second,
		TotalRounds:       rounds,
	})
	require.NoError(t, err)

	room, err := reg.Get(code)
	require.NoError(t, err)

	return &harness{t: t, clock: clock, reg: reg, room: room, code: code}
}

// snapshot doubles as a barrier: every event posted before it has been
// handled once it returns.
func (h *harness) snapshot() Snapshot {
	h.t.Helper()

	snap, err := h.room.Snapshot()
	require.NoError(h.t, err)

	return snap
}

func (h *harness) advance(d time.Duration) Snapshot {
	h.t.Helper()

	h.clock.Advance(d)

	return h.snapshot()
}

func (h *harness) join(identity string) *fakeConn {
	h.t.Helper()

	conn := newFakeConn(identity + "-1")
	_, _, err := h.room.Join(identity, "", conn)
	require.NoError(h.t, err)

	return conn
}

func (h *harness) waitForClips(n int) {
	h.t.Helper()

	require.Eventually(h.t, func() bool {
		snap, err := h.room.Snapshot()
		return err == nil && snap.ClipsReady == n
	}, time.Second, 5*time.Millisecond)
}

func player(snap Snapshot, identity string) PlayerView {
	for _, p := range snap.Players {
		if p.Identity == identity {
			return p
		}
	}

	return PlayerView{}
}
