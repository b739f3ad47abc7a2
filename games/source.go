/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"context"
	"errors"
)

// Track is one song a round can be built from.
type Track struct {
	ID     string
	Title  string
	Artist string
	Source string // opaque reference handed to the ClipResolver
}

// Playlist is the result of a playlist lookup.
type Playlist struct {
	Info   PlaylistInfo
	Tracks []Track
}

// PlaylistProvider resolves a playlist reference into its tracks. It is
// called once, when a room is created.
type PlaylistProvider interface {
	Lookup(ctx context.Context, reference string) (Playlist, error)
}

// ClipResolver turns a track into something a client can play, usually
// a URL. Implementations may be slow.
type ClipResolver interface {
	Resolve(ctx context.Context, track Track) (string, error)
}

// ClipResolverFunc adapts a function to ClipResolver.
type ClipResolverFunc func(ctx context.Context, track Track) (string, error)

func (f ClipResolverFunc) Resolve(ctx context.Context, track Track) (string, error) {
	return f(ctx, track)
}

// TrackSource resolves a track to its own Source reference.
var TrackSource = ClipResolverFunc(func(_ context.Context, track Track) (string, error) {
	if track.Source == "" {
		return "", errors.New("track has no clip reference")
	}
	return track.Source, nil
})
