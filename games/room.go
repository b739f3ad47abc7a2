/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const inboxSize = 64

type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseRoundActive Phase = "round_active"
	PhaseRoundReveal Phase = "round_reveal"
	PhaseGameOver    Phase = "game_over"
)

// JoinKind tells a fresh join apart from a reconnect.
type JoinKind int

const (
	JoinFresh JoinKind = iota
	JoinRebind
)

func (k JoinKind) String() string {
	if k == JoinRebind {
		return "rebind"
	}
	return "fresh"
}

// RoomConfig is what a room is created from.
type RoomConfig struct {
	HostIdentity      string
	PlaylistReference string
	RoundDuration     time.Duration
	TotalRounds       int
}

type clipState struct {
	ref   string
	err   error
	ready bool
}

// Room is the single authority for one game. All state below the inbox
// is touched only by the run goroutine.
type Room struct {
	code          string
	hostIdentity  string
	roundDuration time.Duration
	totalRounds   int
	playlist      PlaylistInfo
	tracks        []Track
	titles        []string

	clock       Clock
	clips       ClipResolver
	clipTimeout time.Duration
	revealPause time.Duration
	emptyGrace  time.Duration
	onClose     func(*Room)
	log         zerolog.Logger

	inbox      chan any
	done       chan struct{}
	closeOnce  sync.Once
	cancelPrep context.CancelFunc
	lastActive atomic.Int64
	connected  atomic.Int32

	players     map[string]*Player
	order       []string
	phase       Phase
	round       int
	starting    bool
	waitingClip bool
	clipStates  []clipState
	clipsReady  int
	roundStart  time.Time
	deadline    time.Time
	lastReveal  *RoundResultMessage
	lastResult  *GameOverMessage

	generation    uint64
	deadlineTimer Timer
	pauseTimer    Timer
	emptyGen      uint64
	emptyTimer    Timer
}

type joinRequest struct {
	identity string
	session  string
	conn     Connection
	reply    chan joinResult
}

type joinResult struct {
	kind JoinKind
	snap Snapshot
	err  error
}

type startRequest struct {
	identity string
	reply    chan error
}

type guessRequest struct {
	identity string
	text     string
	reply    chan guessResult
}

type guessResult struct {
	points int
	err    error
}

type giveUpRequest struct {
	identity string
	reply    chan error
}

type disconnectRequest struct {
	identity string
	connID   string
	reply    chan struct{}
}

type snapshotRequest struct {
	reply chan Snapshot
}

type clipResolved struct {
	index int
	ref   string
	err   error
}

type timerKind int

const (
	timerDeadline timerKind = iota
	timerPause
	timerEmpty
)

type timerFired struct {
	kind timerKind
	gen  uint64
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) HostIdentity() string {
	return r.hostIdentity
}

// LastActive is the time of the last client event the room processed.
func (r *Room) LastActive() time.Time {
	return time.Unix(0, r.lastActive.Load())
}

// Connected is the number of players with a live connection.
func (r *Room) Connected() int {
	return int(r.connected.Load())
}

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Close shuts the room down and disconnects everyone. Safe to call more
// than once and from any goroutine.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

func (r *Room) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancelPrep = cancel
	r.touch()

	go r.prepareClips(ctx)
	go r.run()
}

func (r *Room) run() {
	r.armEmptyTimer()

	for {
		select {
		case ev := <-r.inbox:
			r.handle(ev)
		case <-r.done:
			r.shutdown()
			return
		}
	}
}

func (r *Room) shutdown() {
	r.cancelPrep()
	stopTimer(&r.deadlineTimer)
	stopTimer(&r.pauseTimer)
	stopTimer(&r.emptyTimer)

	for _, id := range r.order {
		p := r.players[id]
		if p.conn != nil {
			p.conn.Send(systemMessage(LevelError, "This room has closed."))
			p.conn.Close()
			p.conn = nil
		}
	}
	r.connected.Store(0)

	if r.onClose != nil {
		r.onClose(r)
	}

	r.log.Info().Msg("room closed")
}

// post hands an event to the run goroutine. It reports false if the
// room has shut down.
func (r *Room) post(ev any) bool {
	select {
	case r.inbox <- ev:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) handle(ev any) {
	switch ev := ev.(type) {
	case joinRequest:
		r.touch()
		kind, snap, err := r.handleJoin(ev)
		ev.reply <- joinResult{kind: kind, snap: snap, err: err}
	case startRequest:
		r.touch()
		ev.reply <- r.handleStart(ev.identity)
	case guessRequest:
		r.touch()
		points, err := r.handleGuess(ev.identity, ev.text)
		ev.reply <- guessResult{points: points, err: err}
	case giveUpRequest:
		r.touch()
		ev.reply <- r.handleGiveUp(ev.identity)
	case disconnectRequest:
		r.touch()
		r.handleDisconnect(ev.identity, ev.connID)
		close(ev.reply)
	case snapshotRequest:
		ev.reply <- r.snapshot()
	case clipResolved:
		r.handleClip(ev)
	case timerFired:
		r.handleTimer(ev)
	default:
		r.log.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("dropping unknown event")
	}
}

func (r *Room) touch() {
	r.lastActive.Store(r.clock.Now().UnixNano())
}

// Join binds conn to identity, either as a new player or by rebinding an
// existing one. The joining connection receives room_joined before the
// room sees the updated player list.
func (r *Room) Join(identity, session string, conn Connection) (JoinKind, Snapshot, error) {
	reply := make(chan joinResult, 1)
	if !r.post(joinRequest{identity: identity, session: session, conn: conn, reply: reply}) {
		return JoinFresh, Snapshot{}, ErrRoomClosed
	}

	select {
	case res := <-reply:
		return res.kind, res.snap, res.err
	case <-r.done:
		return JoinFresh, Snapshot{}, ErrRoomClosed
	}
}

// StartGame moves the room out of the lobby. Only the host may call it.
func (r *Room) StartGame(identity string) error {
	reply := make(chan error, 1)
	if !r.post(startRequest{identity: identity, reply: reply}) {
		return ErrRoomClosed
	}

	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// SubmitGuess returns the points awarded, which is zero for wrong,
// late, repeated or out-of-phase guesses.
func (r *Room) SubmitGuess(identity, text string) (int, error) {
	reply := make(chan guessResult, 1)
	if !r.post(guessRequest{identity: identity, text: text, reply: reply}) {
		return 0, ErrRoomClosed
	}

	select {
	case res := <-reply:
		return res.points, res.err
	case <-r.done:
		return 0, ErrRoomClosed
	}
}

// GiveUp marks the player done for the current round without points.
func (r *Room) GiveUp(identity string) error {
	reply := make(chan error, 1)
	if !r.post(giveUpRequest{identity: identity, reply: reply}) {
		return ErrRoomClosed
	}

	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Disconnect marks identity absent if conn is still its current
// connection. The player and their score are kept.
func (r *Room) Disconnect(identity string, conn Connection) {
	reply := make(chan struct{})
	if !r.post(disconnectRequest{identity: identity, connID: conn.ID(), reply: reply}) {
		return
	}

	select {
	case <-reply:
	case <-r.done:
	}
}

func (r *Room) Snapshot() (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !r.post(snapshotRequest{reply: reply}) {
		return Snapshot{}, ErrRoomClosed
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return Snapshot{}, ErrRoomClosed
	}
}

func (r *Room) handleJoin(req joinRequest) (JoinKind, Snapshot, error) {
	identity, err := ValidateIdentity(req.identity)
	if err != nil {
		return JoinFresh, Snapshot{}, err
	}

	kind := JoinRebind
	p, ok := r.players[identity]
	switch {
	case !ok:
		kind = JoinFresh
		p = &Player{identity: identity}
		r.players[identity] = p
		r.order = append(r.order, identity)
	case p.conn == nil, p.conn.ID() == req.conn.ID():
	case req.session != "" && req.session == p.session:
		p.conn.Send(systemMessage(LevelError, "You joined from somewhere else."))
		p.conn.Close()
	default:
		return JoinFresh, Snapshot{}, fmt.Errorf("%w: %q is already playing", ErrNameTaken, identity)
	}

	p.conn = req.conn
	if req.session != "" {
		p.session = req.session
	}

	r.emptyGen++
	stopTimer(&r.emptyTimer)

	snap := r.snapshot()
	req.conn.Send(RoomJoinedMessage{
		Type:     TypeRoomJoined,
		RoomCode: r.code,
		IsHost:   identity == r.hostIdentity,
		Rebind:   kind == JoinRebind,
		Snapshot: snap,
	})

	r.connected.Store(int32(r.connectedCount()))

	switch {
	case r.phase == PhaseRoundActive:
		req.conn.Send(StartRoundMessage{Type: TypeStartRound, RoundView: r.roundView()})
	case r.phase == PhaseGameOver && r.lastResult != nil:
		req.conn.Send(*r.lastResult)
	}

	r.broadcastPlayers()
	if kind == JoinFresh {
		r.broadcastExcept(identity, systemMessage(LevelInfo, identity+" joined the room."))
	} else {
		r.broadcastExcept(identity, systemMessage(LevelInfo, identity+" reconnected."))
	}

	r.log.Info().Str("identity", identity).Stringer("kind", kind).Str("conn", req.conn.ID()).Msg("player joined")

	return kind, snap, nil
}

func (r *Room) handleDisconnect(identity, connID string) {
	p, ok := r.players[identity]
	if !ok || p.conn == nil || p.conn.ID() != connID {
		return
	}

	p.conn = nil
	r.connected.Store(int32(r.connectedCount()))

	r.log.Info().Str("identity", identity).Str("conn", connID).Msg("player disconnected")

	r.broadcastPlayers()
	r.broadcast(systemMessage(LevelInfo, identity+" left the room."))

	if r.phase == PhaseRoundActive {
		r.checkAllAnswered()
	}

	if r.connectedCount() == 0 {
		r.armEmptyTimer()
	}
}

func (r *Room) armEmptyTimer() {
	if r.emptyGrace <= 0 || r.connectedCount() > 0 {
		return
	}

	stopTimer(&r.emptyTimer)
	r.emptyGen++
	gen := r.emptyGen
	r.emptyTimer = r.clock.AfterFunc(r.emptyGrace, func() {
		r.post(timerFired{kind: timerEmpty, gen: gen})
	})
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.connected() {
			n++
		}
	}

	return n
}

// broadcast sends the same message value to every connected player, in
// join order.
func (r *Room) broadcast(msg any) {
	for _, id := range r.order {
		r.players[id].send(msg)
	}
}

func (r *Room) broadcastExcept(identity string, msg any) {
	for _, id := range r.order {
		if id != identity {
			r.players[id].send(msg)
		}
	}
}

func (r *Room) broadcastPlayers() {
	r.broadcast(UpdatePlayersMessage{
		Type:         TypeUpdatePlayers,
		Players:      r.scoreboard(),
		HostIdentity: r.hostIdentity,
	})
}

// notify reports err to identity's connection only.
func (r *Room) notify(identity string, err error) {
	if p, ok := r.players[identity]; ok {
		p.send(errorMessage(err))
	}
}

// playerViews lists players in join order.
func (r *Room) playerViews() []PlayerView {
	views := make([]PlayerView, 0, len(r.order))
	for _, id := range r.order {
		views = append(views, r.players[id].view())
	}

	return views
}

// scoreboard lists players by score, highest first, ties in join order.
func (r *Room) scoreboard() []PlayerView {
	views := r.playerViews()
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Score > views[j].Score
	})

	return views
}

func (r *Room) roundView() RoundView {
	return RoundView{
		RoundIndex:      r.round,
		RoundNumber:     r.round + 1,
		TotalRounds:     r.totalRounds,
		DurationSeconds: int(r.roundDuration / time.Second),
		ClipReference:   r.clipStates[r.round].ref,
		Deadline:        r.deadline.UnixMilli(),
	}
}

func (r *Room) snapshot() Snapshot {
	snap := Snapshot{
		RoomCode:     r.code,
		Phase:        r.phase,
		HostIdentity: r.hostIdentity,
		Players:      r.playerViews(),
		TotalRounds:  r.totalRounds,
		RoundSeconds: int(r.roundDuration / time.Second),
		Playlist:     r.playlist,
		Titles:       r.titles,
		ClipsReady:   r.clipsReady,
		Starting:     r.starting,
	}

	if r.phase == PhaseRoundActive {
		rv := r.roundView()
		snap.Round = &rv
	}

	if r.phase == PhaseRoundReveal && r.lastReveal != nil {
		reveal := *r.lastReveal
		snap.Reveal = &reveal
	}

	return snap
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
