/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const maxIdentityLength = 32

// Connection is the room's handle on one live client channel.
type Connection interface {
	ID() string
	Send(msg any)
	Close()
}

// Player is owned by exactly one room and only ever mutated by it.
type Player struct {
	identity  string
	session   string
	conn      Connection
	score     int
	answered  bool
	gaveUp    bool
	guessTime time.Duration
}

func (p *Player) connected() bool {
	return p.conn != nil
}

func (p *Player) done() bool {
	return p.answered || p.gaveUp
}

func (p *Player) resetForRound() {
	p.answered = false
	p.gaveUp = false
	p.guessTime = 0
}

func (p *Player) send(msg any) {
	if p.conn != nil {
		p.conn.Send(msg)
	}
}

func (p *Player) view() PlayerView {
	v := PlayerView{
		Identity:    p.identity,
		Score:       p.score,
		HasAnswered: p.answered,
		GaveUp:      p.gaveUp,
		Connected:   p.connected(),
	}
	if p.answered {
		secs := p.guessTime.Round(100 * time.Millisecond).Seconds()
		v.GuessTime = &secs
	}

	return v
}

// ValidateIdentity trims a display name and checks it is usable.
func ValidateIdentity(name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	if utf8.RuneCountInString(name) > maxIdentityLength {
		return "", fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidName, maxIdentityLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: name contains control characters", ErrInvalidName)
		}
	}

	return name, nil
}
