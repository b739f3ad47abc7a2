/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	codeAlphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength       = 5
	maxCodeAttempts  = 64
	defaultMaxRounds = 20
)

// DefaultDurations are the round lengths a room may be created with.
var DefaultDurations = []time.Duration{15 * time.Second, 20 * time.Second, 30 * time.Second, 60 * time.Second}

type Options struct {
	Playlists PlaylistProvider
	Clips     ClipResolver
	Clock     Clock
	Logger    zerolog.Logger

	Durations   []time.Duration
	MaxRounds   int
	RevealPause time.Duration
	EmptyGrace  time.Duration
	ClipTimeout time.Duration
	IdleTimeout time.Duration

	// NewCode and Shuffle default to crypto/rand codes and a random
	// permutation.
	NewCode func() (string, error)
	Shuffle func([]Track)
}

// Registry is the process-wide table of rooms keyed by code. It is the
// only state shared between rooms.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	opts Options
	log  zerolog.Logger
	stop chan struct{}
	once sync.Once
}

func NewRegistry(opts Options) *Registry {
	if opts.Clips == nil {
		opts.Clips = TrackSource
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if len(opts.Durations) == 0 {
		opts.Durations = DefaultDurations
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaultMaxRounds
	}
	if opts.RevealPause <= 0 {
		opts.RevealPause = 3 * time.Second
	}
	if opts.ClipTimeout <= 0 {
		opts.ClipTimeout = 2 * time.Minute
	}
	if opts.NewCode == nil {
		opts.NewCode = newRoomCode
	}
	if opts.Shuffle == nil {
		opts.Shuffle = func(tracks []Track) {
			mrand.Shuffle(len(tracks), func(i, j int) {
				tracks[i], tracks[j] = tracks[j], tracks[i]
			})
		}
	}

	reg := &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
		log:   opts.Logger.With().Str("component", "registry").Logger(),
		stop:  make(chan struct{}),
	}

	if opts.IdleTimeout > 0 {
		go reg.reaperLoop()
	}

	return reg
}

// Create validates cfg, looks up the playlist and registers a new room.
// Nothing is registered if any step fails.
func (reg *Registry) Create(ctx context.Context, cfg RoomConfig) (string, Snapshot, error) {
	host, err := ValidateIdentity(cfg.HostIdentity)
	if err != nil {
		return "", Snapshot{}, err
	}

	if !slices.Contains(reg.opts.Durations, cfg.RoundDuration) {
		return "", Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidDuration, cfg.RoundDuration)
	}

	if cfg.TotalRounds < 1 || cfg.TotalRounds > reg.opts.MaxRounds {
		return "", Snapshot{}, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidRounds, reg.opts.MaxRounds)
	}

	reference := strings.TrimSpace(cfg.PlaylistReference)
	if reference == "" {
		return "", Snapshot{}, fmt.Errorf("%w: empty reference", ErrInvalidPlaylist)
	}

	playlist, err := reg.opts.Playlists.Lookup(ctx, reference)
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidPlaylist, err)
	}

	tracks := usableTracks(playlist.Tracks)
	if len(tracks) == 0 {
		return "", Snapshot{}, fmt.Errorf("%w: no playable tracks", ErrInvalidPlaylist)
	}

	titles := titleList(tracks)

	reg.opts.Shuffle(tracks)
	rounds := min(cfg.TotalRounds, len(tracks))
	tracks = tracks[:rounds]

	info := playlist.Info
	info.Reference = reference

	reg.mu.Lock()
	code, err := reg.freeCodeLocked()
	if err != nil {
		reg.mu.Unlock()
		return "", Snapshot{}, err
	}

	room := &Room{
		code:          code,
		hostIdentity:  host,
		roundDuration: cfg.RoundDuration,
		totalRounds:   rounds,
		playlist:      info,
		tracks:        tracks,
		titles:        titles,
		clock:         reg.opts.Clock,
		clips:         reg.opts.Clips,
		clipTimeout:   reg.opts.ClipTimeout,
		revealPause:   reg.opts.RevealPause,
		emptyGrace:    reg.opts.EmptyGrace,
		onClose:       reg.forget,
		log:           reg.opts.Logger.With().Str("room", code).Logger(),
		inbox:         make(chan any, inboxSize),
		done:          make(chan struct{}),
		players:       make(map[string]*Player),
		phase:         PhaseLobby,
		clipStates:    make([]clipState, rounds),
	}
	reg.rooms[code] = room
	reg.mu.Unlock()

	snap := room.snapshot()
	room.start()

	reg.log.Info().
		Str("room", code).
		Str("host", host).
		Str("playlist", reference).
		Int("rounds", rounds).
		Dur("duration", cfg.RoundDuration).
		Msg("room created")

	return code, snap, nil
}

// Get returns the room registered under code.
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room, nil
}

// Remove closes and deregisters the room under code, if any.
func (reg *Registry) Remove(code string) {
	code = normalizeCode(code)

	reg.mu.Lock()
	room, ok := reg.rooms[code]
	delete(reg.rooms, code)
	reg.mu.Unlock()

	if ok {
		room.Close()
	}
}

// Len is the number of registered rooms.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}

// Close stops the reaper and closes every room.
func (reg *Registry) Close() {
	reg.once.Do(func() {
		close(reg.stop)
	})

	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for code, room := range reg.rooms {
		rooms = append(rooms, room)
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}

// forget drops room from the table if it is still the one registered
// under its code.
func (reg *Registry) forget(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.rooms[room.code] == room {
		delete(reg.rooms, room.code)
	}
}

func (reg *Registry) freeCodeLocked() (string, error) {
	for range maxCodeAttempts {
		code, err := reg.opts.NewCode()
		if err != nil {
			return "", err
		}

		if _, exists := reg.rooms[code]; !exists {
			return code, nil
		}
	}

	return "", ErrCapacityExhausted
}

// reaperLoop periodically closes rooms that have been idle longer than
// the idle timeout. Rooms with anyone still connected are left alone.
func (reg *Registry) reaperLoop() {
	ticker := time.NewTicker(reg.opts.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-reg.stop:
			return
		}

		cutoff := reg.opts.Clock.Now().Add(-reg.opts.IdleTimeout)

		var idle []*Room
		reg.mu.Lock()
		for code, room := range reg.rooms {
			if room.Connected() == 0 && room.LastActive().Before(cutoff) {
				delete(reg.rooms, code)
				idle = append(idle, room)
			}
		}
		reg.mu.Unlock()

		for _, room := range idle {
			reg.log.Info().Str("room", room.code).Msg("reaping idle room")
			room.Close()
		}
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newRoomCode() (string, error) {
	out := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))

	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating room code: %w", err)
		}
		out[i] = codeAlphabet[n.Int64()]
	}

	return string(out), nil
}

func usableTracks(tracks []Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if strings.TrimSpace(t.Title) == "" || Normalize(t.Title) == "" {
			continue
		}
		out = append(out, t)
	}

	return out
}

// titleList is every distinct title, sorted, for client-side autocomplete.
func titleList(tracks []Track) []string {
	seen := make(map[string]bool, len(tracks))
	titles := make([]string, 0, len(tracks))

	for _, t := range tracks {
		if seen[t.Title] {
			continue
		}
		seen[t.Title] = true
		titles = append(titles, t.Title)
	}

	sort.Strings(titles)

	return titles
}
