/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentity(t *testing.T) {
	t.Parallel()

	name, err := ValidateIdentity("  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	name, err = ValidateIdentity(strings.Repeat("é", maxIdentityLength))
	require.NoError(t, err)
	assert.Equal(t, maxIdentityLength, len([]rune(name)))

	for _, bad := range []string{"", "   ", strings.Repeat("a", maxIdentityLength+1), "ali\x00ce", "bo\nb"} {
		_, err := ValidateIdentity(bad)
		assert.ErrorIs(t, err, ErrInvalidName, "%q", bad)
	}
}

func TestPlayerView(t *testing.T) {
	t.Parallel()

	p := &Player{identity: "alice", score: 85}
	v := p.view()
	assert.False(t, v.Connected)
	assert.Nil(t, v.GuessTime)

	p.conn = newFakeConn("c")
	p.answered = true
	p.guessTime = 3240 * time.Millisecond

	v = p.view()
	assert.True(t, v.Connected)
	assert.True(t, v.HasAnswered)
	require.NotNil(t, v.GuessTime)
	assert.InDelta(t, 3.2, *v.GuessTime, 0.001)

	p.resetForRound()
	assert.False(t, p.done())
	assert.Equal(t, 85, p.score)
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "name_taken", ErrorCode(ErrNameTaken))
	assert.Equal(t, "invalid_playlist", ErrorCode(fmt.Errorf("%w: %w", ErrInvalidPlaylist, assert.AnError)))
	assert.Equal(t, "internal", ErrorCode(assert.AnError))

	msg := errorMessage(ErrUnauthorized)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "unauthorized", msg.Code)
	assert.Equal(t, ErrUnauthorized.Error(), msg.Message)
}
