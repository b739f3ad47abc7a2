/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	sendBufferSize = 32
	maxMessageSize = 4096
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10

	messagesPerSecond = 5
	messageBurst      = 10
)

// Conn wraps one websocket to one participant. Sends never block the
// caller; a dead socket is noticed by the read loop, not by Send.
type Conn struct {
	id      string
	ws      *websocket.Conn
	send    chan any
	limiter *rate.Limiter
	log     zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(ws *websocket.Conn, log zerolog.Logger) *Conn {
	id := uuid.NewString()

	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan any, sendBufferSize),
		limiter: rate.NewLimiter(messagesPerSecond, messageBurst),
		log:     log.With().Str("conn", id).Logger(),
		done:    make(chan struct{}),
	}
}

func (c *Conn) ID() string {
	return c.id
}

// Send queues msg for the write pump. It is dropped if the connection is
// closed or its buffer is full.
func (c *Conn) Send(msg any) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.log.Warn().Msg("send buffer full, dropping message")
	}
}

// Close asks the write pump to flush and close the socket. Safe to call
// more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Reject sends err to a connection that never reached a room and closes it.
func (c *Conn) Reject(err error) {
	c.Send(errorMessage(err))
	c.Close()
	c.writePump()
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			// Flush whatever is already queued, e.g. a final error.
			for {
				select {
				case msg := <-c.send:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.ws.WriteJSON(msg); err != nil {
						return
					}
				default:
					_ = c.ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

// Serve runs the connection against room until the socket closes. If
// identity is non-empty the connection joins immediately, otherwise it
// waits for a join message.
func (c *Conn) Serve(room *Room, session, identity string) {
	go c.writePump()

	var joined string
	defer func() {
		if joined != "" {
			room.Disconnect(joined, c)
		}
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	if identity != "" {
		joined = c.join(room, session, identity)
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}

		if !c.limiter.Allow() {
			c.Send(errorMessage(ErrRateLimited))
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(errorMessage(fmt.Errorf("%w: %v", ErrMalformed, err)))
			continue
		}

		if msg.Type == TypeJoin {
			switch {
			case joined == "":
				joined = c.join(room, session, msg.Identity)
			case msg.Identity == joined:
				c.join(room, session, joined)
			default:
				c.Send(errorMessage(fmt.Errorf("%w: already joined as %q", ErrInvalidState, joined)))
			}
			continue
		}

		if joined == "" {
			c.Send(errorMessage(ErrNotJoined))
			continue
		}

		if err := dispatch(room, joined, msg); errors.Is(err, ErrMalformed) {
			c.Send(errorMessage(err))
		} else if errors.Is(err, ErrRoomClosed) {
			return
		}
	}
}

func (c *Conn) join(room *Room, session, identity string) string {
	_, _, err := room.Join(identity, session, c)
	if err != nil {
		c.Send(errorMessage(err))
		if errors.Is(err, ErrRoomClosed) {
			c.Close()
		}
		return ""
	}

	name, _ := ValidateIdentity(identity)

	return name
}

// dispatch routes a message from a joined player. Errors meant for the
// player have already been delivered by the room.
func dispatch(room *Room, identity string, msg ClientMessage) error {
	switch msg.Type {
	case TypeStartGame:
		return room.StartGame(identity)
	case TypeSubmitGuess:
		_, err := room.SubmitGuess(identity, msg.Text)
		return err
	case TypeGiveUp:
		return room.GiveUp(identity)
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrMalformed, msg.Type)
	}
}
