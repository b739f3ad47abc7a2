/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrNameTaken         = errors.New("name already taken")
	ErrUnauthorized      = errors.New("only the host can do that")
	ErrInvalidState      = errors.New("action not allowed right now")
	ErrInvalidPlaylist   = errors.New("invalid playlist")
	ErrInvalidDuration   = errors.New("invalid round duration")
	ErrInvalidRounds     = errors.New("invalid number of rounds")
	ErrInvalidName       = errors.New("invalid name")
	ErrCapacityExhausted = errors.New("no room codes available")
	ErrRoomClosed        = errors.New("room closed")
	ErrNotJoined         = errors.New("join a room first")
	ErrRateLimited       = errors.New("too many messages, slow down")
	ErrMalformed         = errors.New("malformed message")
)

// ErrorCode maps an error to the stable code sent to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrNameTaken):
		return "name_taken"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidPlaylist):
		return "invalid_playlist"
	case errors.Is(err, ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, ErrInvalidRounds):
		return "invalid_rounds"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, ErrCapacityExhausted):
		return "capacity_exhausted"
	case errors.Is(err, ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "internal"
	}
}
