/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"context"
	"fmt"
	"time"
)

func (r *Room) handleStart(identity string) error {
	if identity != r.hostIdentity {
		r.notify(identity, ErrUnauthorized)
		return ErrUnauthorized
	}

	if r.phase != PhaseLobby || r.starting {
		err := fmt.Errorf("%w: the game has already started", ErrInvalidState)
		r.notify(identity, err)
		return err
	}

	for _, p := range r.players {
		p.resetForRound()
	}

	r.round = 0
	r.starting = true

	r.log.Info().Str("identity", identity).Msg("game starting")
	r.broadcast(systemMessage(LevelInfo, "Starting game, preparing the first round..."))

	r.beginRound()

	return nil
}

// beginRound starts the round at r.round once its clip is ready. Rounds
// whose clip failed are skipped; running out of rounds ends the game.
func (r *Room) beginRound() {
	for r.round < r.totalRounds {
		clip := r.clipStates[r.round]

		switch {
		case clip.err != nil:
			r.log.Warn().Err(clip.err).Int("round", r.round).Msg("skipping round without a clip")
			r.broadcast(systemMessage(LevelError, fmt.Sprintf("Could not load the song for round %d, skipping...", r.round+1)))
			r.round++
		case clip.ready:
			r.startRound()
			return
		default:
			r.waitingClip = true
			r.broadcast(systemMessage(LevelInfo, fmt.Sprintf("Loading the song for round %d... please wait.", r.round+1)))
			return
		}
	}

	r.endGame()
}

func (r *Room) startRound() {
	stopTimer(&r.pauseTimer)

	r.phase = PhaseRoundActive
	r.starting = false
	r.waitingClip = false
	r.lastReveal = nil
	r.generation++

	for _, p := range r.players {
		p.resetForRound()
	}

	r.roundStart = r.clock.Now()
	r.deadline = r.roundStart.Add(r.roundDuration)

	gen := r.generation
	r.deadlineTimer = r.clock.AfterFunc(r.roundDuration, func() {
		r.post(timerFired{kind: timerDeadline, gen: gen})
	})

	r.log.Info().Int("round", r.round).Str("track", r.tracks[r.round].ID).Msg("round started")

	r.broadcastPlayers()
	r.broadcast(StartRoundMessage{Type: TypeStartRound, RoundView: r.roundView()})
}

func (r *Room) handleGuess(identity, text string) (int, error) {
	p, ok := r.players[identity]
	if !ok {
		return 0, ErrNotJoined
	}

	if r.phase != PhaseRoundActive || p.done() {
		return 0, nil
	}

	now := r.clock.Now()
	if !now.Before(r.deadline) {
		return 0, nil
	}

	track := r.tracks[r.round]
	if !Matches(text, track.Title) {
		msg := GuessResultMessage{Type: TypeGuessResult, Message: "Wrong! Try again."}
		if IsClose(text, track.Title) {
			msg.Close = true
			msg.Message = "So close! Check your spelling."
		}
		p.send(msg)

		return 0, nil
	}

	elapsed := now.Sub(r.roundStart)
	points := Score(elapsed, r.roundDuration)

	p.score += points
	p.answered = true
	p.guessTime = elapsed

	r.log.Info().Str("identity", identity).Int("points", points).Dur("elapsed", elapsed).Msg("correct guess")

	r.broadcast(systemMessage(LevelSuccess, fmt.Sprintf("%s got it in %.1fs!", identity, elapsed.Seconds())))
	r.broadcastPlayers()
	r.checkAllAnswered()

	return points, nil
}

func (r *Room) handleGiveUp(identity string) error {
	p, ok := r.players[identity]
	if !ok {
		return ErrNotJoined
	}

	if r.phase != PhaseRoundActive || p.done() {
		return nil
	}

	p.gaveUp = true

	r.broadcastPlayers()
	r.broadcast(systemMessage(LevelInfo, identity+" gave up on this round."))
	r.checkAllAnswered()

	return nil
}

// checkAllAnswered reveals early once every connected player is done.
func (r *Room) checkAllAnswered() {
	connected := 0
	for _, p := range r.players {
		if !p.connected() {
			continue
		}
		if !p.done() {
			return
		}
		connected++
	}

	if connected > 0 {
		r.reveal()
	}
}

func (r *Room) reveal() {
	if r.phase != PhaseRoundActive {
		return
	}

	stopTimer(&r.deadlineTimer)

	r.phase = PhaseRoundReveal
	r.generation++

	track := r.tracks[r.round]
	msg := RoundResultMessage{
		Type:          TypeRoundResult,
		RoundIndex:    r.round,
		CorrectTitle:  track.Title,
		CorrectArtist: track.Artist,
	}
	r.lastReveal = &msg

	r.log.Info().Int("round", r.round).Msg("round revealed")

	r.broadcast(msg)
	r.broadcastPlayers()

	gen := r.generation
	r.pauseTimer = r.clock.AfterFunc(r.revealPause, func() {
		r.post(timerFired{kind: timerPause, gen: gen})
	})
}

func (r *Room) handleTimer(ev timerFired) {
	if ev.kind == timerEmpty {
		if ev.gen == r.emptyGen && r.connectedCount() == 0 {
			r.log.Info().Msg("room empty past grace period")
			r.Close()
		}
		return
	}

	// A timer from an earlier phase lost the race to another transition.
	if ev.gen != r.generation {
		r.log.Debug().Uint64("gen", ev.gen).Uint64("current", r.generation).Msg("ignoring stale timer")
		return
	}

	switch ev.kind {
	case timerDeadline:
		if r.phase == PhaseRoundActive {
			r.deadlineTimer = nil
			r.reveal()
		}
	case timerPause:
		if r.phase == PhaseRoundReveal {
			r.pauseTimer = nil
			r.round++
			r.beginRound()
		}
	}
}

func (r *Room) endGame() {
	stopTimer(&r.deadlineTimer)
	stopTimer(&r.pauseTimer)

	r.phase = PhaseGameOver
	r.starting = false
	r.waitingClip = false
	r.generation++
	r.cancelPrep()

	board := r.scoreboard()

	var winner *PlayerView
	if len(board) == 1 || (len(board) > 1 && board[0].Score > board[1].Score) {
		w := board[0]
		winner = &w
	}

	if winner != nil {
		r.log.Info().Str("winner", winner.Identity).Int("score", winner.Score).Msg("game over")
	} else {
		r.log.Info().Msg("game over without a single winner")
	}

	r.lastResult = &GameOverMessage{
		Type:            TypeGameOver,
		Winner:          winner,
		FinalScoreboard: board,
		HostIdentity:    r.hostIdentity,
	}
	r.broadcast(*r.lastResult)
}

func (r *Room) handleClip(ev clipResolved) {
	if ev.index < 0 || ev.index >= len(r.clipStates) {
		return
	}

	r.clipStates[ev.index] = clipState{ref: ev.ref, err: ev.err, ready: ev.err == nil}
	if ev.err == nil {
		r.clipsReady++
	}

	if r.waitingClip && ev.index == r.round {
		r.waitingClip = false
		r.beginRound()
	}
}

// prepareClips resolves every round's clip in round order, off the room
// goroutine, and reports each result back through the inbox.
func (r *Room) prepareClips(ctx context.Context) {
	for i, track := range r.tracks {
		clipCtx, cancel := context.WithTimeout(ctx, r.clipTimeout)
		started := time.Now()
		ref, err := r.clips.Resolve(clipCtx, track)
		cancel()

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			r.log.Warn().Err(err).Str("track", track.ID).Msg("clip resolution failed")
		} else {
			r.log.Debug().Str("track", track.ID).Dur("took", time.Since(started)).Msg("clip ready")
		}

		if !r.post(clipResolved{index: i, ref: ref, err: err}) {
			return
		}
	}
}
