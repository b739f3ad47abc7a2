/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

// Inbound message types.
const (
	TypeJoin        = "join"
	TypeStartGame   = "start_game"
	TypeSubmitGuess = "submit_guess"
	TypeGiveUp      = "give_up"
)

// Outbound message types.
const (
	TypeRoomJoined    = "room_joined"
	TypeUpdatePlayers = "update_players"
	TypeSystemMessage = "system_message"
	TypeStartRound    = "start_round"
	TypeRoundResult   = "round_result"
	TypeGameOver      = "game_over"
	TypeGuessResult   = "guess_result"
	TypeError         = "error"
)

// System message levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// ClientMessage is every message a client may send.
type ClientMessage struct {
	Type     string `json:"type"`               // "join", "start_game", "submit_guess", "give_up"
	Identity string `json:"identity,omitempty"` // join
	Text     string `json:"text,omitempty"`     // submit_guess
}

// PlayerView is the public state of one player.
type PlayerView struct {
	Identity    string   `json:"identity"`
	Score       int      `json:"score"`
	HasAnswered bool     `json:"hasAnswered"`
	GaveUp      bool     `json:"gaveUp"`
	Connected   bool     `json:"connected"`
	GuessTime   *float64 `json:"guessTime,omitempty"` // seconds into the round
}

// PlaylistInfo describes the playlist a room was created from.
type PlaylistInfo struct {
	Name      string `json:"name,omitempty"`
	Owner     string `json:"owner,omitempty"`
	CoverURL  string `json:"coverUrl,omitempty"`
	Reference string `json:"reference"`
}

// RoundView is the public state of the current round. It never
// carries the answer.
type RoundView struct {
	RoundIndex      int    `json:"roundIndex"`
	RoundNumber     int    `json:"roundNumber"`
	TotalRounds     int    `json:"totalRounds"`
	DurationSeconds int    `json:"durationSeconds"`
	ClipReference   string `json:"clipReference"`
	Deadline        int64  `json:"deadline"` // unix ms
}

// Snapshot is a complete, consistent view of a room.
type Snapshot struct {
	RoomCode     string              `json:"roomCode"`
	Phase        Phase               `json:"phase"`
	HostIdentity string              `json:"hostIdentity"`
	Players      []PlayerView        `json:"players"`
	TotalRounds  int                 `json:"totalRounds"`
	RoundSeconds int                 `json:"roundSeconds"`
	Round        *RoundView          `json:"round,omitempty"`
	Reveal       *RoundResultMessage `json:"reveal,omitempty"`
	Playlist     PlaylistInfo        `json:"playlist"`
	Titles       []string            `json:"titles"`
	ClipsReady   int                 `json:"clipsReady"`
	Starting     bool                `json:"starting"`
}

type RoomJoinedMessage struct {
	Type     string   `json:"type"` // "room_joined"
	RoomCode string   `json:"roomCode"`
	IsHost   bool     `json:"isHost"`
	Rebind   bool     `json:"rebind"`
	Snapshot Snapshot `json:"snapshot"`
}

type UpdatePlayersMessage struct {
	Type         string       `json:"type"` // "update_players"
	Players      []PlayerView `json:"players"`
	HostIdentity string       `json:"hostIdentity"`
}

type SystemMessage struct {
	Type  string `json:"type"` // "system_message"
	Text  string `json:"text"`
	Level string `json:"level"`
}

type StartRoundMessage struct {
	Type string `json:"type"` // "start_round"
	RoundView
}

type RoundResultMessage struct {
	Type          string `json:"type"` // "round_result"
	RoundIndex    int    `json:"roundIndex"`
	CorrectTitle  string `json:"correctTitle"`
	CorrectArtist string `json:"correctArtist"`
}

type GameOverMessage struct {
	Type            string       `json:"type"` // "game_over"
	Winner          *PlayerView  `json:"winner"`
	FinalScoreboard []PlayerView `json:"finalScoreboard"`
	HostIdentity    string       `json:"hostIdentity"`
}

// GuessResultMessage is sent only to the player who guessed wrong.
type GuessResultMessage struct {
	Type    string `json:"type"` // "guess_result"
	Correct bool   `json:"correct"`
	Close   bool   `json:"close,omitempty"`
	Message string `json:"message"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

func systemMessage(level, text string) SystemMessage {
	return SystemMessage{Type: TypeSystemMessage, Text: text, Level: level}
}

func errorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: TypeError, Code: ErrorCode(err), Message: err.Error()}
}
